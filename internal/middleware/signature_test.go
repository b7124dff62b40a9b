package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestSignatureMiddlewareAcceptsValidSignature(t *testing.T) {
	secret := "app-secret"
	body := []byte(`{"list_folder":{"accounts":["dbid:abc"]}}`)

	var seenBody []byte
	handler := SignatureMiddleware(secret, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook/source", bytes.NewReader(body))
	req.Header.Set(SignatureHeader, sign(secret, body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	// The body must survive verification for downstream handlers.
	assert.Equal(t, body, seenBody)
}

func TestSignatureMiddlewareRejectsBadSignature(t *testing.T) {
	handler := SignatureMiddleware("app-secret", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on signature failure")
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook/source", bytes.NewReader([]byte("payload")))
	req.Header.Set(SignatureHeader, sign("wrong-secret", []byte("payload")))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestSignatureMiddlewareRejectsMissingHeader(t *testing.T) {
	handler := SignatureMiddleware("app-secret", zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a signature")
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhook/source", bytes.NewReader([]byte("payload")))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestProperty_OnlyMatchingSecretValidates(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("a signature validates only under the signing secret", prop.ForAll(
		func(secret string, other string, body string) bool {
			if secret == "" {
				secret = "s"
			}
			header := sign(secret, []byte(body))

			if !ValidSignature(secret, []byte(body), header) {
				return false
			}
			if other != secret && ValidSignature(other, []byte(body), header) {
				return false
			}
			return true
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
