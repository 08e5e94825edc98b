// Package dataapi talks to a PostgREST-compatible data API (Supabase-style)
// with a privileged service key. It is the fallback persistence backend when
// no direct database is configured: the same reconciliation logic runs, but
// without transaction support, so a mid-request failure leaves earlier
// writes committed.
package dataapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kookoo-caribbean/kookoo/internal/services"
)

type Client struct {
	baseURL string
	key     string
	hc      *http.Client
}

// New builds a client against the REST root (e.g. https://x.supabase.co/rest/v1).
// The key is the privileged service-role credential and must never reach a browser.
func New(baseURL, key string) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" || strings.TrimSpace(key) == "" {
		return nil, errors.New("dataapi: base URL and service key are both required")
	}
	return &Client{
		baseURL: baseURL,
		key:     key,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, prefer string) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("dataapi: encode body: %w", err)
		}
		rd = bytes.NewReader(b)
	}
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.key)
	req.Header.Set("Authorization", "Bearer "+c.key)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if prefer != "" {
		req.Header.Set("Prefer", prefer)
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dataapi: %s %s: %w", method, path, err)
	}
	defer func() { _ = res.Body.Close() }()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("dataapi: read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, fmt.Errorf("dataapi: %s %s: status %d: %s", method, path, res.StatusCode, compactError(data))
	}
	return data, nil
}

func compactError(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

type idRow struct {
	ID string `json:"id"`
}

func (c *Client) selectID(ctx context.Context, path string, query url.Values) (string, error) {
	query.Set("select", "id")
	query.Set("limit", "1")
	data, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return "", err
	}
	var rows []idRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("dataapi: decode id rows: %w", err)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].ID, nil
}

// --- services.SubmissionStore ---

func (c *Client) FindRespondentIDByEmail(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil
	}
	q := url.Values{}
	// ilike without wildcards gives the case-insensitive equality match;
	// PostgREST pattern characters in the value must be escaped.
	q.Set("email", "ilike."+escapePattern(email))
	return c.selectID(ctx, "/respondents", q)
}

func (c *Client) FindRespondentIDByWhatsApp(ctx context.Context, number string) (string, error) {
	if strings.TrimSpace(number) == "" {
		return "", nil
	}
	q := url.Values{}
	q.Set("whatsapp", "eq."+number)
	return c.selectID(ctx, "/respondents", q)
}

func escapePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

type respondentRow struct {
	ID          string         `json:"id"`
	Email       *string        `json:"email"`
	WhatsApp    *string        `json:"whatsapp"`
	UserType    *string        `json:"user_type"`
	Origin      *string        `json:"origin"`
	Destination *string        `json:"destination"`
	Metadata    map[string]any `json:"metadata"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func respondentBody(r *services.Respondent, includeID bool) map[string]any {
	body := map[string]any{
		"email":       nullable(r.Email),
		"whatsapp":    nullable(r.WhatsApp),
		"user_type":   nullable(r.UserType),
		"origin":      nullable(r.Origin),
		"destination": nullable(r.Destination),
		"metadata":    r.Metadata,
		"updated_at":  r.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if includeID {
		body["id"] = r.ID
		body["created_at"] = r.CreatedAt.UTC().Format(time.RFC3339Nano)
	}
	return body
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func (c *Client) InsertRespondent(ctx context.Context, r *services.Respondent) error {
	_, err := c.do(ctx, http.MethodPost, "/respondents", nil,
		[]map[string]any{respondentBody(r, true)}, "return=minimal")
	return err
}

func (c *Client) UpdateRespondent(ctx context.Context, r *services.Respondent) error {
	q := url.Values{}
	q.Set("id", "eq."+r.ID)
	_, err := c.do(ctx, http.MethodPatch, "/respondents", q, respondentBody(r, false), "return=minimal")
	return err
}

func (c *Client) QuestionIDByCode(ctx context.Context, code string) (string, error) {
	q := url.Values{}
	q.Set("code", "eq."+code)
	return c.selectID(ctx, "/questions", q)
}

func (c *Client) OptionIDByCode(ctx context.Context, questionID, code string) (string, error) {
	q := url.Values{}
	q.Set("question_id", "eq."+questionID)
	q.Set("code", "eq."+code)
	return c.selectID(ctx, "/question_options", q)
}

// UpsertResponse merges on the (respondent_id, question_id) natural key, so a
// resubmission overwrites every non-key column of the existing row.
func (c *Client) UpsertResponse(ctx context.Context, r *services.Response) error {
	q := url.Values{}
	q.Set("on_conflict", "respondent_id,question_id")
	row := map[string]any{
		"respondent_id": r.RespondentID,
		"question_id":   r.QuestionID,
		"option_id":     nullable(r.OptionID),
		"answer_text":   r.AnswerText,
		"answer_number": r.AnswerNumber,
		"answer_bool":   r.AnswerBool,
		"answer_json":   r.AnswerJSON,
		"submitted_at":  r.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
	_, err := c.do(ctx, http.MethodPost, "/responses", q,
		[]map[string]any{row}, "resolution=merge-duplicates,return=minimal")
	return err
}

// --- services.LeadStore ---

func (c *Client) ListRespondents(ctx context.Context, limit int) ([]*services.Respondent, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "created_at.desc")
	q.Set("limit", strconv.Itoa(limit))
	data, err := c.do(ctx, http.MethodGet, "/respondents", q, nil, "")
	if err != nil {
		return nil, err
	}
	var rows []respondentRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("dataapi: decode respondents: %w", err)
	}
	out := make([]*services.Respondent, 0, len(rows))
	for _, row := range rows {
		out = append(out, &services.Respondent{
			ID:          row.ID,
			Email:       deref(row.Email),
			WhatsApp:    deref(row.WhatsApp),
			UserType:    deref(row.UserType),
			Origin:      deref(row.Origin),
			Destination: deref(row.Destination),
			Metadata:    row.Metadata,
			CreatedAt:   row.CreatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type answerRow struct {
	AnswerText   *string   `json:"answer_text"`
	AnswerNumber *float64  `json:"answer_number"`
	AnswerBool   *bool     `json:"answer_bool"`
	AnswerJSON   any       `json:"answer_json"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Question     *idCode   `json:"question"`
	Option       *idCode   `json:"option"`
}

type idCode struct {
	Code string `json:"code"`
}

func (c *Client) ListAnswers(ctx context.Context, respondentID string) ([]*services.Answer, error) {
	q := url.Values{}
	q.Set("respondent_id", "eq."+respondentID)
	q.Set("select", "answer_text,answer_number,answer_bool,answer_json,submitted_at,question:questions(code),option:question_options(code)")
	q.Set("order", "question_id.asc")
	data, err := c.do(ctx, http.MethodGet, "/responses", q, nil, "")
	if err != nil {
		return nil, err
	}
	var rows []answerRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("dataapi: decode answers: %w", err)
	}
	out := make([]*services.Answer, 0, len(rows))
	for _, row := range rows {
		a := &services.Answer{
			AnswerText:   row.AnswerText,
			AnswerNumber: row.AnswerNumber,
			AnswerBool:   row.AnswerBool,
			AnswerJSON:   row.AnswerJSON,
			SubmittedAt:  row.SubmittedAt,
		}
		if row.Question != nil {
			a.QuestionCode = row.Question.Code
		}
		if row.Option != nil {
			a.OptionCode = row.Option.Code
		}
		out = append(out, a)
	}
	return out, nil
}

var (
	_ services.SubmissionStore = (*Client)(nil)
	_ services.LeadStore       = (*Client)(nil)
)
