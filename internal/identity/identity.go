// Package identity resolves the requester behind a dispatch from a Google
// ID token, so the notification can carry a verified email address.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const defaultTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"

// Identity is the verified requester.
type Identity struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

type Verifier struct {
	clientID string
	apiURL   string
	client   *http.Client
	logger   *slog.Logger
}

func NewVerifier(clientID string, logger *slog.Logger) *Verifier {
	return &Verifier{
		clientID: clientID,
		apiURL:   defaultTokenInfoURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

// SetTestTransport points the verifier at a test server.
func (v *Verifier) SetTestTransport(url string) {
	v.apiURL = url
}

// Verify checks an ID token against Google's tokeninfo endpoint and
// returns the identity it asserts. The token must have been issued for
// this application's client id.
func (v *Verifier) Verify(ctx context.Context, idToken string) (*Identity, error) {
	reqURL := v.apiURL + "?id_token=" + url.QueryEscape(idToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token rejected: status %d", resp.StatusCode)
	}

	var info struct {
		Aud     string `json:"aud"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("unmarshal token info: %w", err)
	}

	if info.Aud != v.clientID {
		return nil, fmt.Errorf("token issued for a different client")
	}
	if info.Email == "" {
		return nil, fmt.Errorf("token carries no email")
	}

	v.logger.Debug("identity verified", "email", info.Email)
	return &Identity{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}
