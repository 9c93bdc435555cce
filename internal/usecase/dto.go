package usecase

import "github.com/xavierca1/leadboard/internal/entity"

type CreateLeadInput struct {
	Title      string   `json:"title" validate:"required,min=2,max=200"`
	PipelineID string   `json:"pipeline" validate:"required"`
	LeadStage  string   `json:"leadStage"`
	Interest   string   `json:"interest" validate:"omitempty,oneof=high medium low"`
	LeadValue  string   `json:"leadValue" validate:"omitempty,numeric"`
	CurrencyID string   `json:"currency" validate:"required_with=LeadValue"`
	SourceID   string   `json:"source"`
	StatusID   string   `json:"status"`
	CategoryID string   `json:"category"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Members    []string `json:"members" validate:"omitempty,dive,required"`
	ActorID    string   `json:"-"`
}

type UpdateLeadInput struct {
	ID         string   `json:"id" validate:"required"`
	Title      string   `json:"title" validate:"required,min=2,max=200"`
	LeadStage  string   `json:"leadStage"`
	Interest   string   `json:"interest" validate:"omitempty,oneof=high medium low"`
	LeadValue  string   `json:"leadValue" validate:"omitempty,numeric"`
	CurrencyID string   `json:"currency" validate:"required_with=LeadValue"`
	SourceID   string   `json:"source"`
	StatusID   string   `json:"status"`
	CategoryID string   `json:"category"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Members    []string `json:"members" validate:"omitempty,dive,required"`
	ActorID    string   `json:"-"`
}

type DeleteLeadInput struct {
	ID      string `json:"id" validate:"required"`
	ActorID string `json:"-"`
}

type CreateStageInput struct {
	Name       string `json:"name" validate:"required,min=1,max=100"`
	PipelineID string `json:"pipeline" validate:"required"`
	Order      int    `json:"order" validate:"gte=0,lte=1000"`
	IsDefault  bool   `json:"isDefault"`
}

type LeadOutput struct {
	Lead *entity.Lead `json:"lead"`
	Msg  string       `json:"msg"`
}

type StageOutput struct {
	Stage *entity.Stage `json:"stage"`
	Msg   string        `json:"msg"`
}
