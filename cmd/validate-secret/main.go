package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/marcelsud/webhook-receiver/webhook/signature"
)

/* validate-secret - Standalone CLI tool to validate a shared secret file
 * Usage: go run cmd/validate-secret/main.go [sharedSecretKey.txt]
 * Exit codes: 0 = valid, 1 = invalid
 */

func main() {
	secretFile := "sharedSecretKey.txt"
	if len(os.Args) > 1 {
		secretFile = os.Args[1]
	}

	fmt.Printf("Validating shared secret file: %s\n", secretFile)
	fmt.Println(strings.Repeat("-", 50))

	secret, ok, err := signature.LoadSharedSecret(secretFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if !ok {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: file is missing or is not in algorithm:key form\n")
		os.Exit(1)
	}
	if err := secret.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ VALIDATION FAILED\n\n")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		fmt.Fprintf(os.Stderr, "Supported algorithms: %s\n", strings.Join(signature.Algorithms(), ", "))
		os.Exit(1)
	}

	fmt.Printf("✓ VALIDATION PASSED\n\n")
	fmt.Printf("   Algorithm:  %s\n", strings.ToLower(secret.Algorithm))
	fmt.Printf("   Key length: %d\n", len(secret.Key))
	os.Exit(0)
}
