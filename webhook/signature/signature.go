package signature

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha3"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"hash"
	"os"
	"sort"
	"strings"

	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/marcelsud/webhook-receiver/webhook/payload"
	"github.com/zeebo/blake3"
)

const (
	// HeaderVersion carries the webhook protocol version
	HeaderVersion = "x-halm-webhook-version"

	// HeaderID carries the unique delivery id
	HeaderID = "x-halm-webhook-id"

	// HeaderTimestamp carries the sender's timestamp
	HeaderTimestamp = "x-halm-webhook-timestamp"

	// HeaderPrimary carries the signature computed with the current key
	HeaderPrimary = "x-halm-webhook-signature-primary"

	// HeaderSecondary carries the signature computed with the previous key during rotation
	HeaderSecondary = "x-halm-webhook-signature-secondary"
)

// ErrUnsupportedAlgorithm is returned for hash names with no known implementation
var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

var algorithms = map[string]func() hash.Hash{
	"md5":        md5.New,
	"sha1":       sha1.New,
	"sha224":     sha256.New224,
	"sha256":     sha256.New,
	"sha384":     sha512.New384,
	"sha512":     sha512.New,
	"sha512-224": sha512.New512_224,
	"sha512-256": sha512.New512_256,
	"sha3-224":   func() hash.Hash { return sha3.New224() },
	"sha3-256":   func() hash.Hash { return sha3.New256() },
	"sha3-384":   func() hash.Hash { return sha3.New384() },
	"sha3-512":   func() hash.Hash { return sha3.New512() },
	"blake3":     func() hash.Hash { return blake3.New() },
}

// Algorithms returns the supported hash algorithm names, sorted
func Algorithms() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SharedSecret is the hash algorithm and key configured out-of-band
type SharedSecret struct {
	Algorithm string
	Key       string
}

/* ParseSharedSecret parses "algorithm:key", splitting on the first colon
 * Returns false when the content is empty, has no colon, or starts with one
 */
func ParseSharedSecret(content string) (SharedSecret, bool) {
	idx := strings.Index(content, ":")
	if idx <= 0 {
		return SharedSecret{}, false
	}

	return SharedSecret{
		Algorithm: strings.TrimSpace(content[:idx]),
		Key:       strings.TrimSpace(content[idx+1:]),
	}, true
}

// LoadSharedSecret reads and parses the secret file; a missing file is not an error
func LoadSharedSecret(path string) (SharedSecret, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return SharedSecret{}, false, nil
	}
	if err != nil {
		return SharedSecret{}, false, fmt.Errorf("reading shared secret file: %w", err)
	}

	secret, ok := ParseSharedSecret(string(data))
	return secret, ok, nil
}

// Validate checks that the algorithm is supported
func (s SharedSecret) Validate() error {
	if _, ok := algorithms[strings.ToLower(s.Algorithm)]; !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, s.Algorithm)
	}
	return nil
}

// SignedContent builds version, id, timestamp and the normalized JSON body, without separators
func SignedContent(wh webhook.ReceivedWebhook) ([]byte, error) {
	body, err := payload.Normalize(wh.Body)
	if err != nil {
		return nil, fmt.Errorf("serializing body: %w", err)
	}

	var b strings.Builder
	b.WriteString(wh.Headers.Get(HeaderVersion))
	b.WriteString(wh.Headers.Get(HeaderID))
	b.WriteString(wh.Headers.Get(HeaderTimestamp))
	b.Write(body)
	return []byte(b.String()), nil
}

// Sign computes the base64 encoded HMAC of content
func Sign(secret SharedSecret, content []byte) (string, error) {
	newHash, ok := algorithms[strings.ToLower(secret.Algorithm)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, secret.Algorithm)
	}

	mac := hmac.New(newHash, []byte(secret.Key))
	mac.Write(content)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

// SignWebhook computes the signature a sender would put on the webhook
func SignWebhook(secret SharedSecret, wh webhook.ReceivedWebhook) (string, error) {
	content, err := SignedContent(wh)
	if err != nil {
		return "", err
	}
	return Sign(secret, content)
}

// Verify compares the computed signature against the primary header, then the secondary one
func Verify(secret SharedSecret, wh webhook.ReceivedWebhook) (webhook.Verdict, error) {
	calculated, err := SignWebhook(secret, wh)
	if err != nil {
		return webhook.NotChecked, fmt.Errorf("calculating signature: %w", err)
	}

	// Constant-time comparison
	if hmac.Equal([]byte(wh.Headers.Get(HeaderPrimary)), []byte(calculated)) {
		return webhook.MatchedPrimary, nil
	}
	if hmac.Equal([]byte(wh.Headers.Get(HeaderSecondary)), []byte(calculated)) {
		return webhook.MatchedSecondary, nil
	}
	return webhook.NoMatch, nil
}

/* FileVerifier re-reads the shared secret file on every delivery
 * so the key can be rotated while the listener is running
 */
type FileVerifier struct {
	Path string
}

// NewFileVerifier creates a verifier backed by the secret file at path
func NewFileVerifier(path string) *FileVerifier {
	return &FileVerifier{Path: path}
}

// Verify implements webhook.Verifier
func (v *FileVerifier) Verify(wh webhook.ReceivedWebhook) (webhook.Verdict, error) {
	secret, ok, err := LoadSharedSecret(v.Path)
	if err != nil || !ok {
		// An unreadable file counts as "no secret configured"
		return webhook.NotChecked, nil
	}
	return Verify(secret, wh)
}
