package board

import (
	"context"
	"time"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a transient message for the people looking at a board.
type Notification struct {
	PipelineID string    `json:"pipeline"`
	Level      Level     `json:"level"`
	Message    string    `json:"message"`
	LeadID     string    `json:"lead_id,omitempty"`
	At         time.Time `json:"at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Notification) {}

// MultiNotifier fans a notification out to every notifier.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n Notification) {
	if n.At.IsZero() {
		n.At = time.Now().UTC()
	}
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
