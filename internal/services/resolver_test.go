package services

import (
	"context"
	"testing"
)

func TestCodeResolverCachesPositiveHits(t *testing.T) {
	store := newStubStore()
	store.questions["cta.email"] = "Q1"
	resolver := NewCodeResolver()

	for i := 0; i < 3; i++ {
		id, err := resolver.QuestionID(context.Background(), store, "cta.email")
		if err != nil {
			t.Fatalf("QuestionID: %v", err)
		}
		if id != "Q1" {
			t.Fatalf("id = %q, want Q1", id)
		}
	}
	if store.questionLookups != 1 {
		t.Fatalf("store lookups = %d, want 1 (cached after first hit)", store.questionLookups)
	}
}

func TestCodeResolverDoesNotCacheMisses(t *testing.T) {
	store := newStubStore()
	resolver := NewCodeResolver()

	if id, err := resolver.QuestionID(context.Background(), store, "late.code"); err != nil || id != "" {
		t.Fatalf("unexpected resolution: id=%q err=%v", id, err)
	}

	// Code seeded after the miss must resolve on the next call.
	store.questions["late.code"] = "Q9"
	id, err := resolver.QuestionID(context.Background(), store, "late.code")
	if err != nil {
		t.Fatalf("QuestionID: %v", err)
	}
	if id != "Q9" {
		t.Fatalf("id = %q, want Q9 after seeding", id)
	}
}

func TestCodeResolverOptionScopedToQuestion(t *testing.T) {
	store := newStubStore()
	store.options["Q1|weeks"] = "O1"
	resolver := NewCodeResolver()

	id, err := resolver.OptionID(context.Background(), store, "Q1", "weeks")
	if err != nil || id != "O1" {
		t.Fatalf("OptionID = (%q, %v), want (O1, nil)", id, err)
	}
	id, err = resolver.OptionID(context.Background(), store, "Q2", "weeks")
	if err != nil || id != "" {
		t.Fatalf("OptionID = (%q, %v), want empty for other question", id, err)
	}
}
