package numerator

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corenumerator "ledger/internal/core/numerator"
)

type row struct {
	val int64
}

func (r row) Scan(dest ...any) error {
	*dest[0].(*int64) = r.val
	return nil
}

// fakeSequences keeps one counter per key and follows the three upserts the
// service issues.
type fakeSequences struct {
	mu      sync.Mutex
	values  map[string]int64
	queries int
}

func newFakeSequences() *fakeSequences {
	return &fakeSequences{values: make(map[string]int64)}
}

func (f *fakeSequences) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++

	key := args[0].(string)
	switch {
	case strings.Contains(sql, "EXCLUDED.current_val"):
		f.values[key] = args[1].(int64)
	case len(args) == 2:
		f.values[key] += args[1].(int64)
	default:
		f.values[key]++
	}
	return row{val: f.values[key]}
}

var jan = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func TestGetNextNumber_Strict(t *testing.T) {
	db := newFakeSequences()
	svc := New(db)
	ctx := context.Background()
	cfg := corenumerator.DefaultConfig("INV")

	first, err := svc.GetNextNumber(ctx, cfg, nil, jan)
	require.NoError(t, err)
	second, err := svc.GetNextNumber(ctx, cfg, nil, jan)
	require.NoError(t, err)

	assert.Equal(t, "INV/2024/00001", first)
	assert.Equal(t, "INV/2024/00002", second)
	assert.Equal(t, 2, db.queries)

	next, err := svc.GetNextNumber(ctx, cfg, nil, jan.AddDate(1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "INV/2025/00001", next, "yearly sequences restart")
}

func TestGetNextNumber_Cached(t *testing.T) {
	db := newFakeSequences()
	svc := New(db)
	ctx := context.Background()
	cfg := corenumerator.Config{Prefix: "FR", PadWidth: 6, ResetPeriod: "never"}
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	num, err := svc.GetNextNumber(ctx, cfg, opts, jan)
	require.NoError(t, err)
	assert.Equal(t, "FR/000001", num)
	assert.Equal(t, int64(10), db.values["FR"])

	for i := 0; i < 9; i++ {
		_, err := svc.GetNextNumber(ctx, cfg, opts, jan)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, db.queries, "the range is served from memory")

	num, err = svc.GetNextNumber(ctx, cfg, opts, jan)
	require.NoError(t, err)
	assert.Equal(t, "FR/000011", num)
	assert.Equal(t, int64(20), db.values["FR"])
}

func TestSetNextNumber_DropsCachedRange(t *testing.T) {
	db := newFakeSequences()
	svc := New(db)
	ctx := context.Background()
	cfg := corenumerator.Config{Prefix: "FR", PadWidth: 6, ResetPeriod: "never"}
	opts := &corenumerator.Options{Strategy: corenumerator.StrategyCached, RangeSize: 10}

	_, err := svc.GetNextNumber(ctx, cfg, opts, jan)
	require.NoError(t, err)

	require.NoError(t, svc.SetNextNumber(ctx, cfg, jan, 100))

	num, err := svc.GetNextNumber(ctx, cfg, opts, jan)
	require.NoError(t, err)
	assert.Equal(t, "FR/000100", num)
}

func TestBuildKey(t *testing.T) {
	cfg := corenumerator.DefaultConfig("BILL")
	assert.Equal(t, "BILL/2024", BuildKey(cfg, jan))

	cfg.ResetPeriod = "month"
	assert.Equal(t, "BILL/2024/01", BuildKey(cfg, jan))

	cfg.ResetPeriod = "never"
	assert.Equal(t, "BILL", BuildKey(cfg, jan))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "MISC/2024/00042", Format(corenumerator.DefaultConfig("MISC"), jan, 42))
	assert.Equal(t, "FR/007", Format(corenumerator.Config{Prefix: "FR", PadWidth: 3}, jan, 7))
}
