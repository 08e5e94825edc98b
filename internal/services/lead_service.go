package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"strconv"
	"time"
)

// LeadStore exposes the read side of the lead data for the admin surface.
type LeadStore interface {
	ListRespondents(ctx context.Context, limit int) ([]*Respondent, error)
	ListAnswers(ctx context.Context, respondentID string) ([]*Answer, error)
}

// Answer is a persisted response joined back to its reference codes for
// display and export.
type Answer struct {
	QuestionCode string    `json:"question_code"`
	OptionCode   string    `json:"option_code,omitempty"`
	AnswerText   *string   `json:"answer_text,omitempty"`
	AnswerNumber *float64  `json:"answer_number,omitempty"`
	AnswerBool   *bool     `json:"answer_bool,omitempty"`
	AnswerJSON   any       `json:"answer_json,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Lead pairs a respondent with its answer count for listings.
type Lead struct {
	Respondent *Respondent `json:"respondent"`
	Answers    int         `json:"answers"`
}

const defaultLeadLimit = 200

type LeadService struct {
	store LeadStore
}

func NewLeadService(store LeadStore) *LeadService {
	return &LeadService{store: store}
}

// ListLeads returns the most recent respondents, newest first.
func (s *LeadService) ListLeads(ctx context.Context, limit int) ([]*Lead, error) {
	if s.store == nil {
		return nil, NewUnavailableError("lead store not configured")
	}
	if limit <= 0 || limit > defaultLeadLimit {
		limit = defaultLeadLimit
	}
	respondents, err := s.store.ListRespondents(ctx, limit)
	if err != nil {
		return nil, err
	}
	leads := make([]*Lead, 0, len(respondents))
	for _, r := range respondents {
		answers, err := s.store.ListAnswers(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		leads = append(leads, &Lead{Respondent: r, Answers: len(answers)})
	}
	return leads, nil
}

// ExportCSV renders every lead in long format: one row per
// (respondent, question), respondent profile columns repeated.
func (s *LeadService) ExportCSV(ctx context.Context) ([]byte, error) {
	if s.store == nil {
		return nil, NewUnavailableError("lead store not configured")
	}
	respondents, err := s.store.ListRespondents(ctx, defaultLeadLimit)
	if err != nil {
		return nil, err
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{
		"respondent_id", "email", "whatsapp", "user_type", "origin", "destination",
		"question_code", "option_code", "answer_text", "answer_number", "answer_bool", "answer_json", "submitted_at",
	})
	for _, r := range respondents {
		answers, err := s.store.ListAnswers(ctx, r.ID)
		if err != nil {
			return nil, err
		}
		for _, a := range answers {
			rec := []string{
				r.ID, r.Email, r.WhatsApp, r.UserType, r.Origin, r.Destination,
				a.QuestionCode, a.OptionCode,
				derefString(a.AnswerText),
				formatNumber(a.AnswerNumber),
				formatBool(a.AnswerBool),
				formatJSON(a.AnswerJSON),
				a.SubmittedAt.UTC().Format(time.RFC3339),
			}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatNumber(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatBool(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}

func formatJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
