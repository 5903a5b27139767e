package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exampleSignature is HMAC-SHA256("142100{"a":1}", "secret"), base64 encoded
// The headers are version "1", id "42" and timestamp "100"
const exampleSignature = "Ygh9KeJnysdaLcWRMejMrHnhmrrJjEOsntPcRD5C4v0="

func exampleWebhook() webhook.ReceivedWebhook {
	return webhook.ReceivedWebhook{
		Headers: webhook.Headers{
			HeaderVersion:   {"1"},
			HeaderID:        {"42"},
			HeaderTimestamp: {"100"},
		},
		Body: json.RawMessage(`{"a":1}`),
	}
}

func writeSecretFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sharedSecretKey.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseSharedSecret(t *testing.T) {
	t.Run("success - trims both parts", func(t *testing.T) {
		secret, ok := ParseSharedSecret(" sha256 : abc123 \n")
		require.True(t, ok)
		assert.Equal(t, SharedSecret{Algorithm: "sha256", Key: "abc123"}, secret)
	})

	t.Run("splits on the first colon only", func(t *testing.T) {
		secret, ok := ParseSharedSecret("sha256:abc:def")
		require.True(t, ok)
		assert.Equal(t, "abc:def", secret.Key)
	})

	t.Run("empty key is still a secret", func(t *testing.T) {
		secret, ok := ParseSharedSecret("sha256:")
		require.True(t, ok)
		assert.Equal(t, "", secret.Key)
	})

	t.Run("not configured - empty, no colon, leading colon", func(t *testing.T) {
		for _, content := range []string{"", "sha256", ":secret"} {
			_, ok := ParseSharedSecret(content)
			assert.False(t, ok, content)
		}
	})
}

func TestLoadSharedSecret(t *testing.T) {
	t.Run("missing file is not an error", func(t *testing.T) {
		_, ok, err := LoadSharedSecret(filepath.Join(t.TempDir(), "absent.txt"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("reads the file", func(t *testing.T) {
		secret, ok, err := LoadSharedSecret(writeSecretFile(t, "sha512:key\n"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "sha512", secret.Algorithm)
	})

	t.Run("error - path is a directory", func(t *testing.T) {
		_, _, err := LoadSharedSecret(t.TempDir())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading shared secret file")
	})
}

func TestSignedContent(t *testing.T) {
	t.Run("concatenates version, id, timestamp and body", func(t *testing.T) {
		content, err := SignedContent(exampleWebhook())
		require.NoError(t, err)
		assert.Equal(t, `142100{"a":1}`, string(content))
	})

	t.Run("missing headers contribute nothing", func(t *testing.T) {
		content, err := SignedContent(webhook.ReceivedWebhook{Headers: webhook.Headers{}, Body: json.RawMessage(`{ "b" : 2 }`)})
		require.NoError(t, err)
		assert.Equal(t, `{"b":2}`, string(content))
	})

	t.Run("body is signed in normalized form", func(t *testing.T) {
		for _, body := range []string{`{"a":1.0}`, `{"a":0,"a":1}`, `{"a":1e0}`} {
			wh := exampleWebhook()
			wh.Body = json.RawMessage(body)

			content, err := SignedContent(wh)
			require.NoError(t, err, body)
			assert.Equal(t, `142100{"a":1}`, string(content), body)
		}
	})
}

func TestSign(t *testing.T) {
	t.Run("matches an independently computed example", func(t *testing.T) {
		sig, err := SignWebhook(SharedSecret{Algorithm: "sha256", Key: "secret"}, exampleWebhook())
		require.NoError(t, err)
		assert.Equal(t, exampleSignature, sig)
	})

	t.Run("deterministic and reproducible independently", func(t *testing.T) {
		secret := SharedSecret{Algorithm: "SHA256", Key: "rotation-key"}
		first, err := SignWebhook(secret, exampleWebhook())
		require.NoError(t, err)
		second, err := SignWebhook(secret, exampleWebhook())
		require.NoError(t, err)

		mac := hmac.New(sha256.New, []byte("rotation-key"))
		mac.Write([]byte(`142100{"a":1}`))
		independent := base64.StdEncoding.EncodeToString(mac.Sum(nil))

		assert.Equal(t, first, second)
		assert.Equal(t, independent, first)
	})

	t.Run("sha1 known value", func(t *testing.T) {
		sig, err := Sign(SharedSecret{Algorithm: "sha1", Key: "abc123"}, []byte("1idts{}"))
		require.NoError(t, err)
		assert.Equal(t, "qDIXPcO9j4y91Inr7sAku017+Rc=", sig)
	})

	t.Run("every listed algorithm signs", func(t *testing.T) {
		for _, name := range Algorithms() {
			sig, err := Sign(SharedSecret{Algorithm: name, Key: "k"}, []byte("content"))
			require.NoError(t, err, name)
			assert.NotEmpty(t, sig, name)
		}
	})

	t.Run("error - unsupported algorithm", func(t *testing.T) {
		_, err := Sign(SharedSecret{Algorithm: "whirlpool", Key: "k"}, []byte("content"))
		require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
		assert.Error(t, SharedSecret{Algorithm: "whirlpool"}.Validate())
		assert.NoError(t, SharedSecret{Algorithm: "sha3-256"}.Validate())
	})
}

func TestVerify(t *testing.T) {
	secret := SharedSecret{Algorithm: "sha256", Key: "secret"}

	t.Run("primary match", func(t *testing.T) {
		wh := exampleWebhook()
		wh.Headers.Set(HeaderPrimary, exampleSignature)
		wh.Headers.Set(HeaderSecondary, "something-else")

		verdict, err := Verify(secret, wh)
		require.NoError(t, err)
		assert.Equal(t, webhook.MatchedPrimary, verdict)
	})

	t.Run("primary wins when both match", func(t *testing.T) {
		wh := exampleWebhook()
		wh.Headers.Set(HeaderPrimary, exampleSignature)
		wh.Headers.Set(HeaderSecondary, exampleSignature)

		verdict, err := Verify(secret, wh)
		require.NoError(t, err)
		assert.Equal(t, webhook.MatchedPrimary, verdict)
	})

	t.Run("secondary match", func(t *testing.T) {
		wh := exampleWebhook()
		wh.Headers.Set(HeaderPrimary, "stale")
		wh.Headers.Set(HeaderSecondary, exampleSignature)

		verdict, err := Verify(secret, wh)
		require.NoError(t, err)
		assert.Equal(t, webhook.MatchedSecondary, verdict)
	})

	t.Run("primary match for an equivalent body", func(t *testing.T) {
		wh := exampleWebhook()
		wh.Body = json.RawMessage(`{"a":1.0}`)
		wh.Headers.Set(HeaderPrimary, exampleSignature)

		verdict, err := Verify(secret, wh)
		require.NoError(t, err)
		assert.Equal(t, webhook.MatchedPrimary, verdict)
	})

	t.Run("no match", func(t *testing.T) {
		wh := exampleWebhook()
		wh.Headers.Set(HeaderPrimary, "stale")

		verdict, err := Verify(secret, wh)
		require.NoError(t, err)
		assert.Equal(t, webhook.NoMatch, verdict)
	})

	t.Run("error - unsupported algorithm", func(t *testing.T) {
		verdict, err := Verify(SharedSecret{Algorithm: "crc32", Key: "k"}, exampleWebhook())
		require.Error(t, err)
		assert.Equal(t, webhook.NotChecked, verdict)
	})
}

func TestFileVerifier(t *testing.T) {
	t.Run("not checked without a secret", func(t *testing.T) {
		for _, content := range []string{"", "no-colon-here"} {
			v := NewFileVerifier(writeSecretFile(t, content))
			verdict, err := v.Verify(exampleWebhook())
			require.NoError(t, err)
			assert.Equal(t, webhook.NotChecked, verdict)
		}

		v := NewFileVerifier(filepath.Join(t.TempDir(), "missing.txt"))
		verdict, err := v.Verify(exampleWebhook())
		require.NoError(t, err)
		assert.Equal(t, webhook.NotChecked, verdict)
	})

	t.Run("re-reads the file for every delivery", func(t *testing.T) {
		path := writeSecretFile(t, "sha256:secret")
		v := NewFileVerifier(path)

		wh := exampleWebhook()
		wh.Headers.Set(HeaderPrimary, exampleSignature)

		verdict, err := v.Verify(wh)
		require.NoError(t, err)
		assert.Equal(t, webhook.MatchedPrimary, verdict)

		require.NoError(t, os.WriteFile(path, []byte("sha256:rotated"), 0o600))

		verdict, err = v.Verify(wh)
		require.NoError(t, err)
		assert.Equal(t, webhook.NoMatch, verdict)
	})
}
