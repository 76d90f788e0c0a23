package identity

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakeTokenInfo(t *testing.T, status int, payload map[string]string) *Verifier {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id_token") == "" {
			t.Error("id_token query parameter missing")
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(payload)
	}))
	t.Cleanup(server.Close)

	v := NewVerifier("client-123", discardLogger())
	v.SetTestTransport(server.URL)
	return v
}

func TestVerify_Success(t *testing.T) {
	v := fakeTokenInfo(t, http.StatusOK, map[string]string{
		"aud":     "client-123",
		"email":   "user@example.com",
		"name":    "Test User",
		"picture": "https://example.com/p.jpg",
	})

	id, err := v.Verify(context.Background(), "token")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Email != "user@example.com" || id.Name != "Test User" {
		t.Errorf("unexpected identity: %+v", id)
	}
}

func TestVerify_WrongAudience(t *testing.T) {
	v := fakeTokenInfo(t, http.StatusOK, map[string]string{
		"aud":   "someone-else",
		"email": "user@example.com",
	})

	if _, err := v.Verify(context.Background(), "token"); err == nil || !strings.Contains(err.Error(), "different client") {
		t.Fatalf("expected audience error, got %v", err)
	}
}

func TestVerify_RejectedToken(t *testing.T) {
	v := fakeTokenInfo(t, http.StatusBadRequest, map[string]string{"error": "invalid_token"})

	if _, err := v.Verify(context.Background(), "token"); err == nil || !strings.Contains(err.Error(), "token rejected") {
		t.Fatalf("expected rejection error, got %v", err)
	}
}

func TestVerify_MissingEmail(t *testing.T) {
	v := fakeTokenInfo(t, http.StatusOK, map[string]string{"aud": "client-123"})

	if _, err := v.Verify(context.Background(), "token"); err == nil || !strings.Contains(err.Error(), "no email") {
		t.Fatalf("expected missing email error, got %v", err)
	}
}
