package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrTokenProvider is the generic failure surfaced to callers; provider
// infrastructure detail stays in the logs.
var ErrTokenProvider = errors.New("token provider unavailable")

// TokenClient requests opaque video credentials from the external provider.
// The provider is a black box: given an identity and a room it returns a
// credential string.
type TokenClient struct {
	url    string
	apiKey string
	client *http.Client
}

func NewTokenClient(url, apiKey string) *TokenClient {
	return &TokenClient{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type tokenRequest struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Issue requests a credential for identity in room, retrying transient
// provider failures with exponential backoff.
func (c *TokenClient) Issue(ctx context.Context, identity, room string) (string, error) {
	if c.url == "" {
		return "", ErrTokenProvider
	}

	token, err := backoff.Retry(ctx, func() (string, error) {
		return c.issueOnce(ctx, identity, room)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(3))
	if err != nil {
		slog.Error("Token issuance failed", "identity", identity, "room", room, "error", err)
		return "", ErrTokenProvider
	}
	return token, nil
}

func (c *TokenClient) issueOnce(ctx context.Context, identity, room string) (string, error) {
	jsonData, err := json.Marshal(tokenRequest{Identity: identity, Room: room})
	if err != nil {
		return "", backoff.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		slog.Error("Token provider error", "status", resp.StatusCode, "body", string(body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return "", backoff.Permanent(fmt.Errorf("provider rejected request: %s", resp.Status))
		}
		return "", fmt.Errorf("provider error: %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", backoff.Permanent(err)
	}
	if tr.Token == "" {
		return "", backoff.Permanent(errors.New("provider returned empty token"))
	}
	return tr.Token, nil
}
