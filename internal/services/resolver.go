package services

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	codeCacheTTL     = 5 * time.Minute
	codeCacheCleanup = 10 * time.Minute
)

// CodeResolver translates question/option codes into internal identifiers,
// caching positive hits. Reference data is seeded out-of-band and never
// mutated by the submission flow, so a short TTL cache is safe; misses are
// not cached so freshly seeded codes become visible immediately.
type CodeResolver struct {
	cache *gocache.Cache
}

func NewCodeResolver() *CodeResolver {
	return &CodeResolver{cache: gocache.New(codeCacheTTL, codeCacheCleanup)}
}

// QuestionID resolves a question code, returning "" for unknown codes.
func (c *CodeResolver) QuestionID(ctx context.Context, store SubmissionStore, code string) (string, error) {
	key := "q:" + code
	if v, ok := c.cache.Get(key); ok {
		return v.(string), nil
	}
	id, err := store.QuestionIDByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if id != "" {
		c.cache.SetDefault(key, id)
	}
	return id, nil
}

// OptionID resolves an option code within a question, returning "" when the
// option is unknown.
func (c *CodeResolver) OptionID(ctx context.Context, store SubmissionStore, questionID, code string) (string, error) {
	key := "o:" + questionID + ":" + code
	if v, ok := c.cache.Get(key); ok {
		return v.(string), nil
	}
	id, err := store.OptionIDByCode(ctx, questionID, code)
	if err != nil {
		return "", err
	}
	if id != "" {
		c.cache.SetDefault(key, id)
	}
	return id, nil
}

// Flush drops all cached mappings. Intended for tests and for operators who
// reseed reference data in place.
func (c *CodeResolver) Flush() { c.cache.Flush() }
