package services

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SubmissionStore abstracts the persistence operations the reconciler needs.
// Lookup methods return an empty id (not an error) when nothing matches.
type SubmissionStore interface {
	FindRespondentIDByEmail(ctx context.Context, email string) (string, error)
	FindRespondentIDByWhatsApp(ctx context.Context, number string) (string, error)
	InsertRespondent(ctx context.Context, r *Respondent) error
	UpdateRespondent(ctx context.Context, r *Respondent) error
	QuestionIDByCode(ctx context.Context, code string) (string, error)
	OptionIDByCode(ctx context.Context, questionID, code string) (string, error)
	UpsertResponse(ctx context.Context, r *Response) error
}

// AtomicSubmissionStore is the optional capability of running the whole
// reconciliation inside one transaction. Stores that implement it guarantee
// all-or-nothing persistence per request; stores that don't leave earlier
// writes committed when a later one fails.
type AtomicSubmissionStore interface {
	SubmissionStore
	RunAtomic(ctx context.Context, fn func(SubmissionStore) error) error
}

// SubmitResult carries what the HTTP layer needs to answer the client.
type SubmitResult struct {
	RespondentID string
	Persisted    int
	SkippedCodes []string
	Atomic       bool
}

// SubmissionService reconciles a validated lead submission into the store:
// respondent de-duplication by identity, code-to-id resolution, and one
// response upsert per answered question.
type SubmissionService struct {
	store        SubmissionStore
	codes        *CodeResolver
	now          func() time.Time
	idGenerator  func() string
	degradedOnce sync.Once
}

func NewSubmissionService(store SubmissionStore) *SubmissionService {
	return &SubmissionService{
		store:       store,
		codes:       NewCodeResolver(),
		now:         func() time.Time { return time.Now().UTC() },
		idGenerator: defaultRespondentID,
	}
}

func defaultRespondentID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Submit validates, normalizes and persists a submission. When the store
// supports transactions the whole flow is atomic; otherwise it degrades to a
// best-effort sequence of independent writes.
func (s *SubmissionService) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResult, error) {
	if s.store == nil {
		return nil, NewUnavailableError("no persistence backend configured")
	}
	if req == nil {
		return nil, NewInvalidError("empty request body")
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	respondent := normalizeRespondent(req.Respondent)

	if atomic, ok := s.store.(AtomicSubmissionStore); ok {
		var result *SubmitResult
		err := atomic.RunAtomic(ctx, func(tx SubmissionStore) error {
			var rerr error
			result, rerr = s.reconcile(ctx, tx, respondent, req.Responses)
			return rerr
		})
		if err != nil {
			return nil, err
		}
		result.Atomic = true
		return result, nil
	}

	s.degradedOnce.Do(func() {
		log.Printf("submission service: store has no transaction support; writes are best-effort, a mid-request failure leaves earlier writes committed")
	})
	return s.reconcile(ctx, s.store, respondent, req.Responses)
}

// normalizeRespondent applies the identity normalization rules: email is
// lower-cased and trimmed, whatsapp is trimmed, everything else passes as-is.
func normalizeRespondent(p RespondentPayload) *Respondent {
	return &Respondent{
		Email:       strings.ToLower(strings.TrimSpace(p.Email)),
		WhatsApp:    strings.TrimSpace(p.WhatsApp),
		UserType:    p.UserType,
		Origin:      p.Origin,
		Destination: p.Destination,
		Metadata:    p.Metadata,
	}
}

func (s *SubmissionService) reconcile(ctx context.Context, store SubmissionStore, respondent *Respondent, answers []AnswerPayload) (*SubmitResult, error) {
	if err := s.resolveRespondent(ctx, store, respondent); err != nil {
		return nil, err
	}

	result := &SubmitResult{RespondentID: respondent.ID}
	submittedAt := s.now()

	for _, a := range answers {
		questionID, err := s.codes.QuestionID(ctx, store, a.QuestionCode)
		if err != nil {
			return nil, err
		}
		if questionID == "" {
			// Unknown codes from older or newer client builds must not abort
			// the whole submission.
			result.SkippedCodes = append(result.SkippedCodes, a.QuestionCode)
			continue
		}

		optionID := ""
		if a.OptionCode != "" {
			optionID, err = s.codes.OptionID(ctx, store, questionID, a.OptionCode)
			if err != nil {
				return nil, err
			}
			// Unknown option code: still record the response, option left empty.
		}

		resp := &Response{
			RespondentID: respondent.ID,
			QuestionID:   questionID,
			OptionID:     optionID,
			AnswerText:   a.AnswerText,
			AnswerNumber: a.AnswerNumber,
			AnswerBool:   a.AnswerBool,
			AnswerJSON:   a.AnswerJSON,
			SubmittedAt:  submittedAt,
		}
		if err := store.UpsertResponse(ctx, resp); err != nil {
			return nil, err
		}
		result.Persisted++
	}
	return result, nil
}

// resolveRespondent maps the normalized identity to a persisted row: lookup
// by case-insensitive email first, then exact whatsapp, insert when absent.
// A matched row has every profile field overwritten by the incoming values;
// the latest submission always wins, there is no field-by-field merge.
func (s *SubmissionService) resolveRespondent(ctx context.Context, store SubmissionStore, r *Respondent) error {
	existingID := ""
	if r.Email != "" {
		id, err := store.FindRespondentIDByEmail(ctx, r.Email)
		if err != nil {
			return err
		}
		existingID = id
	}
	if existingID == "" && r.WhatsApp != "" {
		id, err := store.FindRespondentIDByWhatsApp(ctx, r.WhatsApp)
		if err != nil {
			return err
		}
		existingID = id
	}

	now := s.now()
	r.UpdatedAt = now
	if existingID != "" {
		r.ID = existingID
		return store.UpdateRespondent(ctx, r)
	}
	r.ID = s.idGenerator()
	r.CreatedAt = now
	return store.InsertRespondent(ctx, r)
}
