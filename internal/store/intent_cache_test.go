package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *IntentCache {
	t.Helper()
	cache, err := NewIntentCache(filepath.Join(t.TempDir(), "intent_cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestIntentCacheUpsertAndFind(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	embed := []float32{1, 0, 0}
	err := cache.Upsert(ctx, "make a bar chart of sales", embed, "sheet", "chart", "chart", 0.92)
	require.NoError(t, err)

	match, err := cache.FindSimilar(ctx, embed, 0.85)
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, "sheet", match.Intent.OutputMode)
	require.Equal(t, "chart", match.Intent.SkillID)
	require.InDelta(t, 1.0, match.Similarity, 1e-6)
	require.Equal(t, 1, match.Intent.HitCount)
}

func TestIntentCacheThresholdBoundary(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	stored := []float32{1, 0}
	require.NoError(t, cache.Upsert(ctx, "chart it", stored, "sheet", "chart", "chart", 0.9))

	// Query vector at cosine similarity 0.84999 against the stored vector:
	// just below the threshold, must miss.
	x := float32(0.84999)
	y := float32(math.Sqrt(1 - float64(x)*float64(x)))
	miss, err := cache.FindSimilar(ctx, []float32{x, y}, 0.85)
	require.NoError(t, err)
	require.Nil(t, miss)

	// At the threshold exactly, it hits.
	hit, err := cache.FindSimilar(ctx, stored, 0.85)
	require.NoError(t, err)
	require.NotNil(t, hit)
}

func TestIntentCacheUpsertOverwrites(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	embed := []float32{0, 1, 0}
	require.NoError(t, cache.Upsert(ctx, "translate it", embed, "chat", "", "", 0.5))
	require.NoError(t, cache.Upsert(ctx, "translate it", embed, "formula", "formula", "", 0.9))

	match, err := cache.FindSimilar(ctx, embed, 0.85)
	require.NoError(t, err)
	require.NotNil(t, match)
	require.Equal(t, "formula", match.Intent.OutputMode)
	require.Equal(t, 0.9, match.Intent.Confidence)
}

func TestIntentCacheRecordOutcome(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	embed := []float32{0, 0, 1}
	require.NoError(t, cache.Upsert(ctx, "summarize reviews", embed, "columns", "columns", "", 0.85))

	require.NoError(t, cache.RecordOutcome(ctx, "summarize reviews", true))
	require.NoError(t, cache.RecordOutcome(ctx, "summarize reviews", true))
	require.NoError(t, cache.RecordOutcome(ctx, "summarize reviews", false))

	match, err := cache.FindSimilar(ctx, embed, 0.85)
	require.NoError(t, err)
	require.NotNil(t, match)
	require.InDelta(t, 2.0/3.0, match.Intent.SuccessRate, 1e-9)

	// Outcome for an unknown command is a no-op, not an error.
	require.NoError(t, cache.RecordOutcome(ctx, "never promoted", true))
}

func TestIntentCacheSeedIntents(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	seeds := []CachedIntent{
		{Command: "make a chart", OutputMode: "sheet", SkillID: "chart", SheetAction: "chart", Confidence: 0.95},
		{Command: "what does this data show", OutputMode: "chat", Confidence: 0.9},
	}
	embeds := [][]float32{{1, 0}, {0, 1}}

	require.NoError(t, cache.SeedIntents(ctx, seeds, embeds))

	match, err := cache.FindSimilar(ctx, []float32{1, 0}, 0.85)
	require.NoError(t, err)
	require.NotNil(t, match)
	require.True(t, match.Intent.Seed)

	// Seeding again does not clobber.
	require.NoError(t, cache.SeedIntents(ctx, seeds, embeds))

	stats, err := cache.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats["total_intents"])
	require.Equal(t, 2, stats["seed_intents"])
}

func TestIntentCacheEmptyQueries(t *testing.T) {
	cache := newTestCache(t)
	ctx := context.Background()

	_, err := cache.FindSimilar(ctx, nil, 0.85)
	require.Error(t, err)

	require.Error(t, cache.Upsert(ctx, "", []float32{1}, "chat", "", "", 0.5))
	require.Error(t, cache.Upsert(ctx, "x", nil, "chat", "", "", 0.5))
	require.Error(t, cache.Upsert(ctx, "x", []float32{1}, "", "", "", 0.5))

	// Empty cache: no match, no error.
	match, err := cache.FindSimilar(ctx, []float32{1, 0}, 0.85)
	require.NoError(t, err)
	require.Nil(t, match)
}
