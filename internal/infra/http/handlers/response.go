package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xavierca1/leadboard/internal/board"
	"github.com/xavierca1/leadboard/internal/usecase"
)

// ApiResponse is the envelope of every JSON response.
type ApiResponse struct {
	Data    any                       `json:"data"`
	Message string                    `json:"message,omitempty"`
	Code    string                    `json:"code,omitempty"`
	Errors  []usecase.ValidationError `json:"errors,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, resp ApiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, ApiResponse{Data: data, Message: message})
}

func writeErrorResponse(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ApiResponse{Message: message, Code: code})
}

// writeError maps board and usecase errors to status codes: validation 422,
// precondition 409, not found 404, anything remote 502.
func writeError(w http.ResponseWriter, err error) {
	var de *usecase.DomainError
	if errors.As(err, &de) {
		resp := ApiResponse{Message: de.Message, Code: de.Code, Errors: de.Fields}
		switch de.Code {
		case usecase.CodeValidation:
			writeJSON(w, http.StatusUnprocessableEntity, resp)
		case usecase.CodeLeadNotFound, usecase.CodeStageNotFound:
			writeJSON(w, http.StatusNotFound, resp)
		default:
			writeJSON(w, http.StatusConflict, resp)
		}
		return
	}

	var te *usecase.TechnicalError
	if errors.As(err, &te) {
		writeErrorResponse(w, http.StatusBadGateway, te.Code, board.RemoteMessage(err, te.Message))
		return
	}

	switch {
	case errors.Is(err, board.ErrInvalidItem):
		writeErrorResponse(w, http.StatusUnprocessableEntity, "INVALID_ITEM", err.Error())
	case errors.Is(err, board.ErrConvertedLead):
		writeErrorResponse(w, http.StatusConflict, "LEAD_CONVERTED", board.MsgConvertedLead)
	case errors.Is(err, board.ErrMoveInFlight):
		writeErrorResponse(w, http.StatusConflict, "MOVE_IN_FLIGHT", board.MsgMoveInFlight)
	case errors.Is(err, board.ErrDragInProgress):
		writeErrorResponse(w, http.StatusConflict, "DRAG_IN_PROGRESS", err.Error())
	case errors.Is(err, board.ErrNoDragSession):
		writeErrorResponse(w, http.StatusConflict, "NO_DRAG_SESSION", err.Error())
	case errors.Is(err, board.ErrLeadNotFound):
		writeErrorResponse(w, http.StatusNotFound, "LEAD_NOT_FOUND", err.Error())
	case errors.Is(err, board.ErrStageNotFound):
		writeErrorResponse(w, http.StatusNotFound, "STAGE_NOT_FOUND", err.Error())
	default:
		writeErrorResponse(w, http.StatusBadGateway, usecase.CodeRemote, board.RemoteMessage(err, "CRM API request failed"))
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "INVALID_JSON", "invalid JSON body")
		return false
	}
	return true
}
