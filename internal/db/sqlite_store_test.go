package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kookoo-caribbean/kookoo/internal/services"
)

var testDBCounter int

// openTestStore gives each test its own shared in-memory database with the
// migrations (schema + reference seed) applied.
func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	testDBCounter++
	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", testDBCounter)
	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = handle.Close() })
	// An in-memory database vanishes when its last connection closes.
	handle.SetMaxIdleConns(2)
	if err := RunMigrations(handle, ""); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	store, err := NewSQLiteStore(handle)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store
}

func testRespondent(id, email, whatsapp string) *services.Respondent {
	now := time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC)
	return &services.Respondent{
		ID:        id,
		Email:     email,
		WhatsApp:  whatsapp,
		UserType:  services.UserTypePassenger,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFindRespondentByEmailCaseInsensitive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.InsertRespondent(ctx, testRespondent("R1", "lead@example.com", "")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, err := store.FindRespondentIDByEmail(ctx, "LEAD@Example.COM")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if id != "R1" {
		t.Fatalf("id = %q, want R1", id)
	}
	id, err = store.FindRespondentIDByEmail(ctx, "other@example.com")
	if err != nil || id != "" {
		t.Fatalf("unexpected match: id=%q err=%v", id, err)
	}
}

func TestFindRespondentByWhatsAppExact(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.InsertRespondent(ctx, testRespondent("R1", "", "+18681234567")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, err := store.FindRespondentIDByWhatsApp(ctx, "+18681234567")
	if err != nil || id != "R1" {
		t.Fatalf("find = (%q, %v), want (R1, nil)", id, err)
	}
	id, err = store.FindRespondentIDByWhatsApp(ctx, "+18680000000")
	if err != nil || id != "" {
		t.Fatalf("unexpected match: id=%q err=%v", id, err)
	}
}

func TestDuplicateEmailInsertRejected(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.InsertRespondent(ctx, testRespondent("R1", "lead@example.com", "")); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err := store.InsertRespondent(ctx, testRespondent("R2", "LEAD@example.com", ""))
	if err == nil {
		t.Fatal("second insert for the same email succeeded")
	}
}

func TestSeededReferenceCodesResolve(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	qid, err := store.QuestionIDByCode(ctx, "cargo.weight")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	if qid == "" {
		t.Fatal("seeded question cargo.weight not found")
	}
	oid, err := store.OptionIDByCode(ctx, qid, "over_500kg")
	if err != nil {
		t.Fatalf("option: %v", err)
	}
	if oid == "" {
		t.Fatal("seeded option over_500kg not found")
	}
	// Option codes are scoped to their question.
	other, err := store.QuestionIDByCode(ctx, "passenger.timeline")
	if err != nil {
		t.Fatalf("question: %v", err)
	}
	oid, err = store.OptionIDByCode(ctx, other, "over_500kg")
	if err != nil || oid != "" {
		t.Fatalf("option leaked across questions: id=%q err=%v", oid, err)
	}
	qid, err = store.QuestionIDByCode(ctx, "bogus.code")
	if err != nil || qid != "" {
		t.Fatalf("unknown code resolved: id=%q err=%v", qid, err)
	}
}

func TestUpsertResponseOverwrites(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.InsertRespondent(ctx, testRespondent("R1", "lead@example.com", "")); err != nil {
		t.Fatalf("insert respondent: %v", err)
	}
	qid, err := store.QuestionIDByCode(ctx, "community.notify")
	if err != nil || qid == "" {
		t.Fatalf("question lookup: id=%q err=%v", qid, err)
	}

	yes := true
	first := &services.Response{
		RespondentID: "R1",
		QuestionID:   qid,
		AnswerBool:   &yes,
		SubmittedAt:  time.Date(2026, 2, 14, 9, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertResponse(ctx, first); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	no := false
	second := &services.Response{
		RespondentID: "R1",
		QuestionID:   qid,
		AnswerBool:   &no,
		SubmittedAt:  time.Date(2026, 2, 15, 9, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertResponse(ctx, second); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	answers, err := store.ListAnswers(ctx, "R1")
	if err != nil {
		t.Fatalf("list answers: %v", err)
	}
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1 (keyed by respondent+question)", len(answers))
	}
	if answers[0].AnswerBool == nil || *answers[0].AnswerBool {
		t.Fatalf("answer_bool = %v, want false after overwrite", answers[0].AnswerBool)
	}
	if answers[0].QuestionCode != "community.notify" {
		t.Fatalf("question code = %q", answers[0].QuestionCode)
	}
}

func TestUpsertResponseClearsStaleSlots(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	if err := store.InsertRespondent(ctx, testRespondent("R1", "lead@example.com", "")); err != nil {
		t.Fatalf("insert respondent: %v", err)
	}
	qid, _ := store.QuestionIDByCode(ctx, "cta.email")

	text := "lead@example.com"
	if err := store.UpsertResponse(ctx, &services.Response{
		RespondentID: "R1", QuestionID: qid, AnswerText: &text,
		AnswerJSON: []string{"a", "b"}, SubmittedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	// Resubmission with only text set must null out the json slot.
	if err := store.UpsertResponse(ctx, &services.Response{
		RespondentID: "R1", QuestionID: qid, AnswerText: &text, SubmittedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	answers, err := store.ListAnswers(ctx, "R1")
	if err != nil || len(answers) != 1 {
		t.Fatalf("answers = %d err=%v", len(answers), err)
	}
	if answers[0].AnswerJSON != nil {
		t.Fatalf("answer_json = %v, want cleared", answers[0].AnswerJSON)
	}
}

func TestRunAtomicRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")
	err := store.RunAtomic(ctx, func(tx services.SubmissionStore) error {
		if err := tx.InsertRespondent(ctx, testRespondent("R1", "lead@example.com", "")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	id, err := store.FindRespondentIDByEmail(ctx, "lead@example.com")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if id != "" {
		t.Fatal("respondent survived a rolled-back transaction")
	}
}

func TestRunAtomicCommits(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	err := store.RunAtomic(ctx, func(tx services.SubmissionStore) error {
		return tx.InsertRespondent(ctx, testRespondent("R1", "lead@example.com", ""))
	})
	if err != nil {
		t.Fatalf("RunAtomic: %v", err)
	}
	id, err := store.FindRespondentIDByEmail(ctx, "lead@example.com")
	if err != nil || id != "R1" {
		t.Fatalf("find after commit = (%q, %v), want (R1, nil)", id, err)
	}
}

func TestListRespondentsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	older := testRespondent("R1", "first@example.com", "")
	newer := testRespondent("R2", "second@example.com", "")
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)
	newer.UpdatedAt = newer.CreatedAt
	if err := store.InsertRespondent(ctx, older); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := store.InsertRespondent(ctx, newer); err != nil {
		t.Fatalf("insert: %v", err)
	}
	out, err := store.ListRespondents(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(out) != 2 || out[0].ID != "R2" || out[1].ID != "R1" {
		t.Fatalf("unexpected order: %+v", out)
	}
	out, err = store.ListRespondents(ctx, 1)
	if err != nil || len(out) != 1 {
		t.Fatalf("limit ignored: n=%d err=%v", len(out), err)
	}
}
