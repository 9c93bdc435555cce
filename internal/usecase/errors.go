package usecase

import (
	"errors"
	"fmt"
)

const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeLeadNotFound  = "LEAD_NOT_FOUND"
	CodeLeadConverted = "LEAD_CONVERTED"
	CodeNoStage       = "NO_STAGE_AVAILABLE"
	CodeStageNotFound = "STAGE_NOT_FOUND"
	CodeRemote        = "CRM_API_ERROR"
	CodeDefaultSwitch = "DEFAULT_STAGE_SWITCH_FAILED"
)

// DomainError is a rule the input broke. Fields is set for validation failures.
type DomainError struct {
	Code    string
	Message string
	Fields  []ValidationError
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// TechnicalError is a failure outside the caller's control, usually the CRM API.
type TechnicalError struct {
	Code    string
	Message string
	Err     error
}

func (e *TechnicalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TechnicalError) Unwrap() error {
	return e.Err
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

func remoteError(msg string, err error) error {
	return &TechnicalError{Code: CodeRemote, Message: msg, Err: err}
}
