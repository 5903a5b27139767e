package main

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/marcelsud/webhook-receiver/webhook/payload"
	"github.com/marcelsud/webhook-receiver/webhook/signature"
)

/* send-webhook - posts a signed sample webhook to a running receiver
 * Usage: send-webhook [url] [body] [secret file]
 * Defaults: https://localhost:3000/ {"hello":"world"} sharedSecretKey.txt
 */

func main() {
	url := "https://localhost:3000/"
	body := `{"hello":"world"}`
	secretFile := "sharedSecretKey.txt"
	if len(os.Args) > 1 {
		url = os.Args[1]
	}
	if len(os.Args) > 2 {
		body = os.Args[2]
	}
	if len(os.Args) > 3 {
		secretFile = os.Args[3]
	}

	parsed, err := payload.Parse([]byte(body))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	wh := webhook.ReceivedWebhook{
		Headers: webhook.Headers{},
		Body:    parsed,
	}
	wh.Headers.Set(signature.HeaderVersion, "1")
	wh.Headers.Set(signature.HeaderID, uuid.New().String())
	wh.Headers.Set(signature.HeaderTimestamp, strconv.FormatInt(time.Now().Unix(), 10))

	secret, ok, err := signature.LoadSharedSecret(secretFile)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if ok {
		sig, err := signature.SignWebhook(secret, wh)
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		wh.Headers.Set(signature.HeaderPrimary, sig)
	} else {
		fmt.Printf("No shared secret in %s, sending unsigned\n", secretFile)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(parsed))
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	req.Header.Set("Content-Type", "application/json")
	for _, name := range wh.Headers.Names() {
		req.Header.Set(name, wh.Headers.Get(name))
	}

	// The receiver serves a self-signed certificate
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	}
	resp, err := client.Do(req)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	fmt.Printf("Sent webhook %s: %s\n", wh.Headers.Get(signature.HeaderID), resp.Status)
}
