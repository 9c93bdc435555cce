package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/xavierca1/leadboard/internal/infra/http/middleware"
	"github.com/xavierca1/leadboard/internal/usecase"
)

type LeadHandler struct {
	CreateLeadUC *usecase.CreateLeadUseCase
	UpdateLeadUC *usecase.UpdateLeadUseCase
	DeleteLeadUC *usecase.DeleteLeadUseCase
}

func NewLeadHandler(create *usecase.CreateLeadUseCase, update *usecase.UpdateLeadUseCase, del *usecase.DeleteLeadUseCase) *LeadHandler {
	return &LeadHandler{CreateLeadUC: create, UpdateLeadUC: update, DeleteLeadUC: del}
}

// HandleCreate (POST /leads)
func (h *LeadHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input usecase.CreateLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.ActorID = middleware.ActorFromContext(r.Context())

	output, err := h.CreateLeadUC.Execute(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, output.Lead, output.Msg)
}

// HandleUpdate (PUT /leads/{leadID})
func (h *LeadHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var input usecase.UpdateLeadInput
	if !decodeJSON(w, r, &input) {
		return
	}
	input.ID = chi.URLParam(r, "leadID")
	input.ActorID = middleware.ActorFromContext(r.Context())

	output, err := h.UpdateLeadUC.Execute(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, output.Lead, output.Msg)
}

// HandleDelete (DELETE /leads/{leadID})
func (h *LeadHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	input := usecase.DeleteLeadInput{
		ID:      chi.URLParam(r, "leadID"),
		ActorID: middleware.ActorFromContext(r.Context()),
	}
	if err := h.DeleteLeadUC.Execute(r.Context(), input); err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusOK, nil, "Lead deleted successfully")
}

type StageHandler struct {
	CreateStageUC *usecase.CreateStageUseCase
}

func NewStageHandler(uc *usecase.CreateStageUseCase) *StageHandler {
	return &StageHandler{CreateStageUC: uc}
}

// HandleCreate (POST /stages)
func (h *StageHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var input usecase.CreateStageInput
	if !decodeJSON(w, r, &input) {
		return
	}
	output, err := h.CreateStageUC.Execute(r.Context(), input)
	if err != nil {
		writeError(w, err)
		return
	}
	writeData(w, http.StatusCreated, output.Stage, output.Msg)
}
