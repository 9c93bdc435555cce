package crmapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrShapeMismatch means the CRM API answered with a body that is not the expected envelope.
	ErrShapeMismatch = errors.New("crm api: unexpected response shape")
	ErrNotFound      = errors.New("crm api: not found")
)

// Envelope is the single response shape of the CRM API.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

type rawEnvelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

// decodeEnvelope parses body into out. A missing or null data member is a shape mismatch.
func decodeEnvelope(body []byte, out any) error {
	var env rawEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrShapeMismatch)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrShapeMismatch, err)
	}
	return nil
}

// RemoteError is any non-2xx answer from the CRM API.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *RemoteError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("crm api %s %s: %d - %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("crm api %s %s: %d %s", e.Method, e.Path, e.StatusCode, http.StatusText(e.StatusCode))
}

// ServerMessage is the message the server put in the body, empty when it gave none.
func (e *RemoteError) ServerMessage() string {
	return e.Message
}

func (e *RemoteError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

func newRemoteError(method, path string, status int, body []byte) *RemoteError {
	var env rawEnvelope
	msg := ""
	if err := json.Unmarshal(body, &env); err == nil {
		msg = env.Message
		if msg == "" {
			msg = env.Error
		}
	}
	return &RemoteError{Method: method, Path: path, StatusCode: status, Message: msg}
}
