package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// SignatureHeader carries the provider's HMAC of the request body.
const SignatureHeader = "X-Dropbox-Signature"

// maxWebhookBody bounds how much of a notification we are willing to read.
const maxWebhookBody = 1 << 20

// SignatureMiddleware verifies the webhook notification signature: a
// hex-encoded HMAC-SHA256 of the raw request body keyed with the app
// secret. The body is re-attached for downstream handlers.
func SignatureMiddleware(appSecret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
			if err != nil {
				logger.Debug("Failed to read webhook body", zap.Error(err))
				RespondWithError(w, http.StatusBadRequest, "unreadable request body")
				return
			}
			r.Body.Close()
			r.Body = io.NopCloser(bytes.NewReader(body))

			if !ValidSignature(appSecret, body, r.Header.Get(SignatureHeader)) {
				logger.Warn("Webhook signature verification failed",
					zap.String("remote_addr", r.RemoteAddr),
				)
				RespondWithError(w, http.StatusForbidden, "invalid signature")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ValidSignature reports whether header is the correct HMAC-SHA256 of body.
func ValidSignature(appSecret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(header))
}
