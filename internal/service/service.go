// Package service composes the validator, code pool, resolution cache,
// durable store and click accountant into the shortening and resolution
// operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bigshort-one/bigshort/internal/cache"
	"github.com/bigshort-one/bigshort/internal/models"
	"github.com/bigshort-one/bigshort/internal/pool"
	"github.com/bigshort-one/bigshort/internal/validation"
)

// CodePool is the allocation primitive. Allocate and RegisterCustom are
// single atomic remote operations; no cross-call locking is ever needed.
type CodePool interface {
	// Allocate removes one pre-generated code from the available set and
	// returns it. Returns pool.ErrExhausted when none remain.
	Allocate(ctx context.Context) (string, error)

	// RegisterCustom claims a caller-supplied code, checking both the
	// unassigned and active namespaces. Returns pool.ErrCodeTaken on
	// collision.
	RegisterCustom(ctx context.Context, code string) error

	// Size reports how many pre-generated codes remain available.
	Size(ctx context.Context) (int64, error)
}

// ResolutionCache is the fast lookup tier. It holds derived copies only;
// a cache failure is tolerated as a miss, never as an answer.
type ResolutionCache interface {
	// Seed caches a freshly created, immutable mapping without expiry.
	Seed(ctx context.Context, code, target string) error

	// Promote caches a store-sourced mapping with a bounded TTL.
	Promote(ctx context.Context, code, target string) error

	// Lookup returns the cached target or cache.ErrCacheMiss.
	Lookup(ctx context.Context, code string) (string, error)

	// Evict drops a cached entry.
	Evict(ctx context.Context, code string) error
}

// URLRepository is the durable store contract. It owns the authoritative
// record; a code is resolvable if and only if a record exists here.
type URLRepository interface {
	// Insert persists a new URL record and returns the stored copy.
	Insert(ctx context.Context, url *models.URL) (*models.URL, error)

	// GetByShortCode retrieves a record without touching its counters.
	// Returns database.ErrURLNotFound if no record exists.
	GetByShortCode(ctx context.Context, shortCode string) (*models.URL, error)

	// ListRecent returns the most recently created records, newest first.
	ListRecent(ctx context.Context, limit int) ([]*models.URL, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}

// ClickRecorder accepts click events. Recording is fire-and-observe and
// must never block or fail the resolution path.
type ClickRecorder interface {
	Record(shortCode string)
}

// URLService implements the shortening and resolution orchestrators.
type URLService struct {
	pool   CodePool
	cache  ResolutionCache
	repo   URLRepository
	clicks ClickRecorder
	logger *slog.Logger

	customCodeMinLength int
	customCodeMaxLength int
}

// NewURLService wires the orchestrators. customMin and customMax bound the
// length of caller-supplied codes; customMax is also the upper bound for
// resolution tokens, since custom codes must remain resolvable.
func NewURLService(p CodePool, c ResolutionCache, repo URLRepository, clicks ClickRecorder, logger *slog.Logger, customMin, customMax int) *URLService {
	return &URLService{
		pool:                p,
		cache:               c,
		repo:                repo,
		clicks:              clicks,
		logger:              logger,
		customCodeMinLength: customMin,
		customCodeMaxLength: customMax,
	}
}

// Shorten creates a short code for originalURL. With a customCode it claims
// that code instead of allocating one. Persistence is synchronous: creation
// without durability is not accepted, so the record is in the store before
// the caller hears a success.
//
// A pool timeout is surfaced as exhaustion and never retried here: under
// partial failure the pop may already have committed, and a retry would
// burn a second code. A code popped for a request that subsequently fails
// is lost; that cost is bounded and accepted.
func (s *URLService) Shorten(ctx context.Context, originalURL, customCode string, isPublic bool, meta models.ClientMetadata) (*models.URL, error) {
	const op = "service.URLService.Shorten"

	target, err := validation.ValidateURL(originalURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var code string
	isCustom := customCode != ""

	if isCustom {
		if err := s.validateCustomCode(customCode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		if err := s.pool.RegisterCustom(ctx, customCode); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		code = customCode
	} else {
		code, err = s.pool.Allocate(ctx)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%s: %w", op, pool.ErrExhausted)
			}

			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	// Seed before acknowledging so a resolution immediately following
	// creation never misses. The entry carries no TTL: the mapping is
	// write-once and cannot go stale.
	if err := s.cache.Seed(ctx, code, target); err != nil {
		s.logger.Warn("failed to seed resolution cache",
			slog.String("short_code", code),
			slog.Any("err", err),
		)
	}

	created, err := s.repo.Insert(ctx, &models.URL{
		ShortCode:   code,
		OriginalURL: target,
		IsCustom:    isCustom,
		IsPublic:    isPublic,
		Metadata:    meta,
	})
	if err != nil {
		// The seeded entry must not outlive a failed insert: a cache
		// hit for a code with no durable record would break the
		// resolvable-iff-stored invariant.
		if evictErr := s.cache.Evict(ctx, code); evictErr != nil {
			s.logger.Warn("failed to evict cache entry after insert failure",
				slog.String("short_code", code),
				slog.Any("err", evictErr),
			)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

// Resolve maps a raw code token to its target. The cache answers hot codes;
// misses fall back to the durable store and promote the record back into
// the cache with a TTL. A click is recorded exactly once per successful
// resolution, regardless of which tier satisfied it, and never for a
// request that fails validation or resolves to nothing.
func (s *URLService) Resolve(ctx context.Context, rawCode string) (string, error) {
	const op = "service.URLService.Resolve"

	code := normalizeCode(rawCode)

	if err := validation.ValidateShortCode(code, s.customCodeMaxLength); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	target, err := s.cache.Lookup(ctx, code)
	if err == nil {
		s.clicks.Record(code)
		return target, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		// A cache infrastructure failure degrades to a miss; the store
		// still holds the truth.
		s.logger.Warn("resolution cache unavailable, falling back to store",
			slog.String("short_code", code),
			slog.Any("err", err),
		)
	}

	url, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		// Store errors surface as errors: "don't know" must never be
		// conflated with "doesn't exist".
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := s.cache.Promote(ctx, code, url.OriginalURL); err != nil {
		s.logger.Warn("failed to promote into resolution cache",
			slog.String("short_code", code),
			slog.Any("err", err),
		)
	}

	s.clicks.Record(code)
	return url.OriginalURL, nil
}

// Stats retrieves a record without counting a visit.
func (s *URLService) Stats(ctx context.Context, rawCode string) (*models.URL, error) {
	const op = "service.URLService.Stats"

	code := normalizeCode(rawCode)

	if err := validation.ValidateShortCode(code, s.customCodeMaxLength); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	url, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return url, nil
}

// RecentURLs lists the most recently created records.
func (s *URLService) RecentURLs(ctx context.Context, limit int) ([]*models.URL, error) {
	const op = "service.URLService.RecentURLs"

	urls, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list recent urls: %w", op, err)
	}

	return urls, nil
}

// PoolSize reports the remaining supply of pre-generated codes.
func (s *URLService) PoolSize(ctx context.Context) (int64, error) {
	return s.pool.Size(ctx)
}

// Ping verifies that both the durable store and the pool's backing store
// are reachable.
func (s *URLService) Ping(ctx context.Context) error {
	const op = "service.URLService.Ping"

	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, err := s.pool.Size(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *URLService) validateCustomCode(code string) error {
	if len(code) < s.customCodeMinLength || len(code) > s.customCodeMaxLength {
		return &validation.RejectionError{
			Reason: fmt.Sprintf("custom code must be between %d and %d characters long",
				s.customCodeMinLength, s.customCodeMaxLength),
		}
	}

	return validation.ValidateShortCode(code, s.customCodeMaxLength)
}

// normalizeCode extracts the code token from a path-like input, so both
// "abc1234" and "bigshort.one/abc1234" resolve the same way.
func normalizeCode(rawCode string) string {
	code := strings.TrimSpace(rawCode)
	if i := strings.LastIndexByte(code, '/'); i >= 0 {
		code = code[i+1:]
	}
	return code
}
