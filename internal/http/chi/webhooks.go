package chi

import (
	"fmt"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/marcelsud/webhook-receiver/webhook"
	"github.com/marcelsud/webhook-receiver/webhook/payload"
)

// maxBodyBytes bounds a single delivery
const maxBodyBytes = 10 << 20

// isJSON reports whether the request declares an application/json body
func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

// postWebhook handles POST on the receiver path
func postWebhook(receiver Receiver) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		// Bodies of any other content type are captured as an empty object
		parsed := json.RawMessage(`{}`)
		if isJSON(r) {
			parsed, err = payload.Parse(body)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid payload: %v", err), http.StatusBadRequest)
				return
			}
		}

		wh := webhook.ReceivedWebhook{
			Headers: webhook.HeadersFromRequest(r),
			Body:    parsed,
		}

		// The sender gets its answer before anything else happens to the delivery
		w.WriteHeader(receiver.StatusCode())
		receiver.Accept(wh)
	})
}
