package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/kookoo-caribbean/kookoo/internal/services"
)

// dbtx is satisfied by both *sql.DB and *sql.Tx so the same query methods
// serve the direct and the transactional path.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore is the transactional persistence backend. It implements
// services.AtomicSubmissionStore and services.LeadStore.
type SQLiteStore struct {
	db *sql.DB
	q  dbtx
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db, q: db}, nil
}

// RunAtomic executes fn against a transaction-scoped copy of the store.
// Any error from fn rolls the whole transaction back.
func (s *SQLiteStore) RunAtomic(ctx context.Context, fn func(services.SubmissionStore) error) error {
	if s.db == nil {
		return errors.New("sqlite store: not backed by a database handle")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&SQLiteStore{q: tx}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			log.Printf("sqlite store: rollback: %v", rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func encodeJSON(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeMetadata(ns sql.NullString) map[string]any {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		log.Printf("sqlite store: decode metadata: %v", err)
		return nil
	}
	return out
}

func toNullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func toNullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	v := int64(0)
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

// --- Respondents ---

func (s *SQLiteStore) FindRespondentIDByEmail(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(email) == "" {
		return "", nil
	}
	var id string
	err := s.q.QueryRowContext(ctx,
		`SELECT id FROM respondents WHERE lower(email) = lower(?) LIMIT 1`, email).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find respondent by email: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) FindRespondentIDByWhatsApp(ctx context.Context, number string) (string, error) {
	if strings.TrimSpace(number) == "" {
		return "", nil
	}
	var id string
	err := s.q.QueryRowContext(ctx,
		`SELECT id FROM respondents WHERE whatsapp = ? LIMIT 1`, number).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find respondent by whatsapp: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) InsertRespondent(ctx context.Context, r *services.Respondent) error {
	meta, err := encodeJSON(r.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	// The unique partial indexes on email/whatsapp make a concurrent
	// insert for the same identity fail here instead of duplicating the lead.
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO respondents (id, email, whatsapp, user_type, origin, destination, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, toNullString(r.Email), toNullString(r.WhatsApp), toNullString(r.UserType),
		toNullString(r.Origin), toNullString(r.Destination), meta, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert respondent: %w", err)
	}
	return nil
}

func (s *SQLiteStore) UpdateRespondent(ctx context.Context, r *services.Respondent) error {
	meta, err := encodeJSON(r.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`UPDATE respondents SET email = ?, whatsapp = ?, user_type = ?, origin = ?, destination = ?, metadata = ?, updated_at = ?
		 WHERE id = ?`,
		toNullString(r.Email), toNullString(r.WhatsApp), toNullString(r.UserType),
		toNullString(r.Origin), toNullString(r.Destination), meta, r.UpdatedAt, r.ID)
	if err != nil {
		return fmt.Errorf("update respondent: %w", err)
	}
	return nil
}

// --- Reference data ---

func (s *SQLiteStore) QuestionIDByCode(ctx context.Context, code string) (string, error) {
	var id string
	err := s.q.QueryRowContext(ctx, `SELECT id FROM questions WHERE code = ? LIMIT 1`, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("question by code: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) OptionIDByCode(ctx context.Context, questionID, code string) (string, error) {
	var id string
	err := s.q.QueryRowContext(ctx,
		`SELECT id FROM question_options WHERE question_id = ? AND code = ? LIMIT 1`, questionID, code).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("option by code: %w", err)
	}
	return id, nil
}

// --- Responses ---

// UpsertResponse writes the row keyed by (respondent_id, question_id). On
// conflict every non-key column is overwritten, including nulling out
// previously set values the new submission left empty.
func (s *SQLiteStore) UpsertResponse(ctx context.Context, r *services.Response) error {
	answerJSON, err := encodeJSON(r.AnswerJSON)
	if err != nil {
		return fmt.Errorf("encode answer_json: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO responses (respondent_id, question_id, option_id, answer_text, answer_number, answer_bool, answer_json, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(respondent_id, question_id) DO UPDATE SET
		   option_id = excluded.option_id,
		   answer_text = excluded.answer_text,
		   answer_number = excluded.answer_number,
		   answer_bool = excluded.answer_bool,
		   answer_json = excluded.answer_json,
		   submitted_at = excluded.submitted_at`,
		r.RespondentID, r.QuestionID, toNullString(r.OptionID),
		nullStringPtr(r.AnswerText), toNullFloat(r.AnswerNumber), toNullBool(r.AnswerBool),
		answerJSON, r.SubmittedAt)
	if err != nil {
		return fmt.Errorf("upsert response: %w", err)
	}
	return nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// --- Lead reads (admin surface) ---

func (s *SQLiteStore) ListRespondents(ctx context.Context, limit int) ([]*services.Respondent, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, email, whatsapp, user_type, origin, destination, metadata, created_at, updated_at
		 FROM respondents ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list respondents: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Printf("sqlite store: ListRespondents rows.Close: %v", cerr)
		}
	}()
	out := []*services.Respondent{}
	for rows.Next() {
		var r services.Respondent
		var email, whatsapp, userType, origin, dest, meta sql.NullString
		if err := rows.Scan(&r.ID, &email, &whatsapp, &userType, &origin, &dest, &meta, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan respondent: %w", err)
		}
		r.Email = email.String
		r.WhatsApp = whatsapp.String
		r.UserType = userType.String
		r.Origin = origin.String
		r.Destination = dest.String
		r.Metadata = decodeMetadata(meta)
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list respondents: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) ListAnswers(ctx context.Context, respondentID string) ([]*services.Answer, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT q.code, COALESCE(o.code, ''), r.answer_text, r.answer_number, r.answer_bool, r.answer_json, r.submitted_at
		 FROM responses r
		 JOIN questions q ON q.id = r.question_id
		 LEFT JOIN question_options o ON o.id = r.option_id
		 WHERE r.respondent_id = ?
		 ORDER BY q.code ASC`, respondentID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Printf("sqlite store: ListAnswers rows.Close: %v", cerr)
		}
	}()
	out := []*services.Answer{}
	for rows.Next() {
		var (
			a          services.Answer
			text       sql.NullString
			number     sql.NullFloat64
			boolVal    sql.NullInt64
			answerJSON sql.NullString
		)
		if err := rows.Scan(&a.QuestionCode, &a.OptionCode, &text, &number, &boolVal, &answerJSON, &a.SubmittedAt); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		if text.Valid {
			v := text.String
			a.AnswerText = &v
		}
		if number.Valid {
			v := number.Float64
			a.AnswerNumber = &v
		}
		if boolVal.Valid {
			v := boolVal.Int64 != 0
			a.AnswerBool = &v
		}
		if answerJSON.Valid && strings.TrimSpace(answerJSON.String) != "" {
			var v any
			if err := json.Unmarshal([]byte(answerJSON.String), &v); err != nil {
				log.Printf("sqlite store: decode answer_json: %v", err)
			} else {
				a.AnswerJSON = v
			}
		}
		out = append(out, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return out, nil
}

var (
	_ services.AtomicSubmissionStore = (*SQLiteStore)(nil)
	_ services.LeadStore             = (*SQLiteStore)(nil)
)
