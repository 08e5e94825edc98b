package services

import (
	"errors"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrorInvalid      ErrorCode = "invalid"
	ErrorForbidden    ErrorCode = "forbidden"
	ErrorNotFound     ErrorCode = "not_found"
	ErrorConflict     ErrorCode = "conflict"
	ErrorUnauthorized ErrorCode = "unauthorized"
	ErrorUnavailable  ErrorCode = "unavailable"
)

type ServiceError struct {
	Code    ErrorCode
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func NewInvalidError(msg string) error   { return &ServiceError{Code: ErrorInvalid, Message: msg} }
func NewForbiddenError(msg string) error { return &ServiceError{Code: ErrorForbidden, Message: msg} }
func NewNotFoundError(msg string) error  { return &ServiceError{Code: ErrorNotFound, Message: msg} }
func NewConflictError(msg string) error  { return &ServiceError{Code: ErrorConflict, Message: msg} }
func NewUnauthorizedError(msg string) error {
	return &ServiceError{Code: ErrorUnauthorized, Message: msg}
}

func NewUnavailableError(msg string) error {
	return &ServiceError{Code: ErrorUnavailable, Message: msg}
}

func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// Respondent is a lead identified primarily by email or whatsapp number.
type Respondent struct {
	ID          string         `json:"id"`
	Email       string         `json:"email,omitempty"`
	WhatsApp    string         `json:"whatsapp,omitempty"`
	UserType    string         `json:"user_type,omitempty"`
	Origin      string         `json:"origin,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
}

// Question is externally-owned reference data; the submission flow only reads it.
type Question struct {
	ID   string `json:"id"`
	Code string `json:"code"`
}

// QuestionOption is a choice scoped to a question, also externally owned.
type QuestionOption struct {
	ID         string `json:"id"`
	QuestionID string `json:"question_id"`
	Code       string `json:"code"`
}

// Response is one answered question for one respondent. At most one row
// exists per (respondent, question); resubmission overwrites it.
type Response struct {
	RespondentID string    `json:"respondent_id"`
	QuestionID   string    `json:"question_id"`
	OptionID     string    `json:"option_id,omitempty"`
	AnswerText   *string   `json:"answer_text,omitempty"`
	AnswerNumber *float64  `json:"answer_number,omitempty"`
	AnswerBool   *bool     `json:"answer_bool,omitempty"`
	AnswerJSON   any       `json:"answer_json,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at,omitempty"`
}

// Roles accepted for respondent.user_type.
const (
	UserTypePassenger = "passenger"
	UserTypeCargo     = "cargo"
	UserTypePartner   = "partner"
)

// RespondentPayload mirrors the inbound respondent object. Every field is
// optional at this layer; callers are expected to supply email or whatsapp.
type RespondentPayload struct {
	Email       string         `json:"email,omitempty"`
	WhatsApp    string         `json:"whatsapp,omitempty"`
	UserType    string         `json:"user_type,omitempty"`
	Origin      string         `json:"origin,omitempty"`
	Destination string         `json:"destination,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// AnswerPayload is one inbound response entry. reference_table/reference_id
// are accepted for wire compatibility but unused.
type AnswerPayload struct {
	QuestionCode   string   `json:"question_code"`
	AnswerText     *string  `json:"answer_text,omitempty"`
	AnswerNumber   *float64 `json:"answer_number,omitempty"`
	AnswerBool     *bool    `json:"answer_bool,omitempty"`
	AnswerJSON     any      `json:"answer_json,omitempty"`
	OptionCode     string   `json:"option_code,omitempty"`
	ReferenceTable string   `json:"reference_table,omitempty"`
	ReferenceID    string   `json:"reference_id,omitempty"`
}

// SubmitRequest is the full lead submission payload.
type SubmitRequest struct {
	Respondent RespondentPayload `json:"respondent"`
	Responses  []AnswerPayload   `json:"responses"`
}

// Validate rejects structurally invalid submissions before any persistence
// side effect. Wrong JSON types are already rejected during decoding; the
// remaining structural rules live here. The whole request fails on the first
// violation, never partially.
func (r *SubmitRequest) Validate() error {
	if r.Responses == nil {
		return NewInvalidError("responses array required")
	}
	switch r.Respondent.UserType {
	case "", UserTypePassenger, UserTypeCargo, UserTypePartner:
	default:
		return NewInvalidError("user_type must be one of passenger, cargo, partner")
	}
	for i, a := range r.Responses {
		if strings.TrimSpace(a.QuestionCode) == "" {
			return NewInvalidError("responses[" + itoa(i) + "]: question_code required")
		}
	}
	return nil
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	bp := len(b)
	for i > 0 {
		bp--
		b[bp] = byte('0' + i%10)
		i /= 10
	}
	return string(b[bp:])
}
