package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

type Interest string

const (
	InterestHigh   Interest = "high"
	InterestMedium Interest = "medium"
	InterestLow    Interest = "low"
)

func (i Interest) Valid() bool {
	switch i {
	case InterestHigh, InterestMedium, InterestLow:
		return true
	}
	return false
}

// MemberSet is the set of member ids assigned to a lead. The CRM API carries it
// as a JSON-encoded string ("[\"u1\",\"u2\"]"), a plain array is accepted too.
type MemberSet []string

func (m MemberSet) MarshalJSON() ([]byte, error) {
	ids := m
	if ids == nil {
		ids = MemberSet{}
	}
	inner, err := json.Marshal([]string(ids))
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(inner))
}

func (m *MemberSet) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = nil
		return nil
	}

	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		if encoded == "" {
			*m = nil
			return nil
		}
		data = []byte(encoded)
	}

	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("members: %w", err)
	}
	*m = MemberSet(dedupe(ids))
	return nil
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

type Lead struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Email       string          `json:"email,omitempty"`
	PipelineID  string          `json:"pipeline"`
	LeadStage   string          `json:"leadStage"`
	Interest    Interest        `json:"interest,omitempty"`
	LeadValue   decimal.Decimal `json:"leadValue"`
	CurrencyID  string          `json:"currency,omitempty"`
	SourceID    string          `json:"source,omitempty"`
	StatusID    string          `json:"status,omitempty"`
	CategoryID  string          `json:"category,omitempty"`
	Members     MemberSet       `json:"members"`
	IsConverted bool            `json:"is_converted"`
	UpdatedBy   string          `json:"updated_by,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// CanMove reports whether the lead may change stage. Converted leads are frozen.
func (l Lead) CanMove() bool {
	return !l.IsConverted
}

// LeadStageUpdate is the body of a stage move sent to the CRM API.
type LeadStageUpdate struct {
	ID        string `json:"id"`
	LeadStage string `json:"leadStage"`
	UpdatedBy string `json:"updated_by"`
}

type LeadFilter struct {
	PipelineID string
}

type LeadRepositoryInterface interface {
	ListLeads(ctx context.Context, filter LeadFilter) ([]Lead, error)
	GetLead(ctx context.Context, id string) (*Lead, error)
	CreateLead(ctx context.Context, lead *Lead) (*Lead, error)
	UpdateLead(ctx context.Context, lead *Lead) (*Lead, error)
	UpdateLeadStage(ctx context.Context, update LeadStageUpdate) error
	DeleteLead(ctx context.Context, id string) error
}
