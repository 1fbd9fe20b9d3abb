// Package numerator implements core/numerator.Generator on the sys_sequences table.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	corenumerator "ledger/internal/core/numerator"
	"ledger/internal/infrastructure/storage/postgres"
)

const defaultRangeSize = 50

// Querier is the subset of pgx used by the service.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service hands out sequence numbers.
//
// Strict numbers are taken inside the caller's transaction, so a rolled back
// posting gives its number back and the sequence stays gapless. Cached ranges
// are reserved outside of it: the in-memory range would otherwise outlive a
// rolled back reservation and hand out numbers twice.
type Service struct {
	inTx     func(ctx context.Context) Querier
	detached func(ctx context.Context) Querier

	mu     sync.Mutex
	ranges map[string]*cachedRange
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a service running every statement on querier.
func New(querier Querier) *Service {
	q := func(context.Context) Querier { return querier }
	return &Service{inTx: q, detached: q, ranges: make(map[string]*cachedRange)}
}

// NewFromContext creates a service that takes its TxManager from the request context.
func NewFromContext() *Service {
	return &Service{
		inTx: func(ctx context.Context) Querier {
			return postgres.MustGetTxManager(ctx).GetQuerier(ctx)
		},
		detached: func(ctx context.Context) Querier {
			return postgres.MustGetTxManager(ctx).Detached()
		},
		ranges: make(map[string]*cachedRange),
	}
}

// GetNextNumber returns the next number of the sequence cfg and period select,
// formatted as PREFIX/YEAR/00001 or PREFIX/00001.
func (s *Service) GetNextNumber(ctx context.Context, cfg corenumerator.Config, opts *corenumerator.Options, period time.Time) (string, error) {
	if opts == nil {
		opts = corenumerator.DefaultOptions()
	}

	key := BuildKey(cfg, period)
	var (
		num int64
		err error
	)
	switch opts.Strategy {
	case corenumerator.StrategyCached:
		num, err = s.nextCached(ctx, key, opts.RangeSize)
	default:
		num, err = s.nextStrict(ctx, key)
	}
	if err != nil {
		return "", err
	}
	return Format(cfg, period, num), nil
}

func (s *Service) nextStrict(ctx context.Context, key string) (int64, error) {
	var num int64
	err := s.inTx(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, 1)
		ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + 1
		RETURNING current_val
	`, key).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("next number %s: %w", key, err)
	}
	return num, nil
}

func (s *Service) nextCached(ctx context.Context, key string, size int64) (int64, error) {
	if size <= 0 {
		size = defaultRangeSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rng, ok := s.ranges[key]
	if !ok {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		var newMax int64
		err := s.detached(ctx).QueryRow(ctx, `
			INSERT INTO sys_sequences (key, current_val)
			VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET current_val = sys_sequences.current_val + $2
			RETURNING current_val
		`, key, size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range %s: %w", key, err)
		}
		// the reserved range is newMax-size+1 .. newMax
		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber makes value the next number handed out, for imports.
func (s *Service) SetNextNumber(ctx context.Context, cfg corenumerator.Config, period time.Time, value int64) error {
	key := BuildKey(cfg, period)

	var stored int64
	err := s.inTx(ctx).QueryRow(ctx, `
		INSERT INTO sys_sequences (key, current_val)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET current_val = EXCLUDED.current_val
		RETURNING current_val
	`, key, value-1).Scan(&stored)
	if err != nil {
		return fmt.Errorf("set next number %s: %w", key, err)
	}

	s.mu.Lock()
	delete(s.ranges, key)
	s.mu.Unlock()
	return nil
}

// BuildKey names the sequence row for cfg and period.
func BuildKey(cfg corenumerator.Config, period time.Time) string {
	switch cfg.ResetPeriod {
	case "month":
		return fmt.Sprintf("%s/%s", cfg.Prefix, period.Format("2006/01"))
	case "year":
		return fmt.Sprintf("%s/%d", cfg.Prefix, period.Year())
	default:
		return cfg.Prefix
	}
}

// Format renders num with the prefix, and the year when cfg includes it.
func Format(cfg corenumerator.Config, period time.Time, num int64) string {
	width := cfg.PadWidth
	if width == 0 {
		width = 5
	}
	if cfg.IncludeYear {
		return fmt.Sprintf("%s/%d/%0*d", cfg.Prefix, period.Year(), width, num)
	}
	return fmt.Sprintf("%s/%0*d", cfg.Prefix, width, num)
}
