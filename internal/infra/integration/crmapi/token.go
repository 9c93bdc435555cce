package crmapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// TokenSource supplies the bearer token and renews it after a 401.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

type StaticToken string

func (t StaticToken) Token(context.Context) (string, error)   { return string(t), nil }
func (t StaticToken) Refresh(context.Context) (string, error) { return string(t), nil }

// RefreshingToken exchanges the current token at refreshURL when the CRM API rejects it.
type RefreshingToken struct {
	refreshURL string
	httpClient *http.Client

	mu    sync.Mutex
	token string
}

func NewRefreshingToken(initial, refreshURL string, httpClient *http.Client) *RefreshingToken {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &RefreshingToken{refreshURL: refreshURL, httpClient: httpClient, token: initial}
}

func (t *RefreshingToken) Token(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.token, nil
}

func (t *RefreshingToken) Refresh(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	payload, err := json.Marshal(map[string]string{"token": t.token})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", newRemoteError(http.MethodPost, t.refreshURL, resp.StatusCode, body)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := decodeEnvelope(body, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrShapeMismatch)
	}
	t.token = out.Token
	return t.token, nil
}
