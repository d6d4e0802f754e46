// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package index_test

import (
	"context"
	"testing"

	"github.com/cohort-dev/cohort/internal/embed"
	"github.com/cohort-dev/cohort/internal/index"
	"github.com/cohort-dev/cohort/internal/roster"
	"github.com/cohort-dev/cohort/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankEmptySeedReturnsEmpty(t *testing.T) {
	enc := &fakeEncoder{}
	resolver := index.NewResolver(enc, nil)
	cache := index.NewCache(enc)

	scores := resolver.Rank(context.Background(), "", 10, []roster.Record{{Name: "A"}}, cache)
	assert.Empty(t, scores)
	assert.Equal(t, 0, enc.calls, "no tier runs for an empty seed")

	scores = resolver.Rank(context.Background(), "   ", 10, []roster.Record{{Name: "A"}}, cache)
	assert.Empty(t, scores)
}

func TestRankUsesTokenTierBeforeEncoding(t *testing.T) {
	enc := &fakeEncoder{byText: map[string][]float32{
		"near": {1, 0},
		"far":  {0, 1},
	}}
	resolver := index.NewResolver(enc, &store.Snapshot{
		Keys:    []string{"GIS"},
		Vectors: [][]float32{{1, 0}},
	})
	cache := index.NewCache(enc)
	records := []roster.Record{
		{Name: "Near", Topic: "near"},
		{Name: "Far", Topic: "far"},
	}

	// Token lookup is case-insensitive and skips the seed encode; the only
	// encoder call is the batch for the two card texts.
	scores := resolver.Rank(context.Background(), "gis", 2, records, cache)
	require.Len(t, scores, 2)
	assert.Equal(t, "Near", scores[0].Name)
	assert.InDelta(t, 1.0, scores[0].Score, 1e-9)
	assert.Equal(t, "Far", scores[1].Name)
	assert.Equal(t, 1, enc.calls)
	assert.Equal(t, []string{"near", "far"}, enc.encoded[0])
}

func TestRankEncodesSeedWhenNotAToken(t *testing.T) {
	enc := &fakeEncoder{byText: map[string][]float32{
		"spatial analysis": {1, 0},
		"near":             {1, 0},
		"far":              {0, 1},
	}}
	resolver := index.NewResolver(enc, nil)
	cache := index.NewCache(enc)
	records := []roster.Record{
		{Name: "Near", Topic: "near"},
		{Name: "Far", Topic: "far"},
	}

	scores := resolver.Rank(context.Background(), "spatial analysis", 2, records, cache)
	require.Len(t, scores, 2)
	assert.Equal(t, "Near", scores[0].Name)
	assert.InDelta(t, 1.0, scores[0].Score, 1e-9)
	// One call for the seed, one batch for the card texts.
	assert.Equal(t, 2, enc.calls)
}

func TestRankSubstringTierWhenEncoderUnavailable(t *testing.T) {
	enc := embed.NewSerialized(embed.Unavailable{})
	resolver := index.NewResolver(enc, nil)
	cache := index.NewCache(enc)
	records := []roster.Record{
		{Name: "Policy person", Topic: "policy | finance | governance"},
		{Name: "Water person", Topic: "ecology | water"},
		{Name: "Zed", Topic: "finance and policy"},
	}

	scores := resolver.Rank(context.Background(), "finance", 3, records, cache)
	require.Len(t, scores, 3)

	// Matches score 1.0 and sort by name among themselves; misses score 0.0.
	assert.Equal(t, index.Score{Name: "Policy person", Score: 1.0}, scores[0])
	assert.Equal(t, index.Score{Name: "Zed", Score: 1.0}, scores[1])
	assert.Equal(t, index.Score{Name: "Water person", Score: 0.0}, scores[2])
}

func TestRankSubstringIsCaseInsensitive(t *testing.T) {
	enc := embed.NewSerialized(embed.Unavailable{})
	resolver := index.NewResolver(enc, nil)
	cache := index.NewCache(enc)
	records := []roster.Record{{Name: "A", Topic: "Remote Sensing"}}

	scores := resolver.Rank(context.Background(), "remote sensing", 1, records, cache)
	require.Len(t, scores, 1)
	assert.Equal(t, 1.0, scores[0].Score)
}

func TestRankClampsTopK(t *testing.T) {
	enc := embed.NewSerialized(embed.Unavailable{})
	resolver := index.NewResolver(enc, nil)
	cache := index.NewCache(enc)
	records := []roster.Record{
		{Name: "A", Topic: "x"},
		{Name: "B", Topic: "x"},
	}

	scores := resolver.Rank(context.Background(), "x", 0, records, cache)
	assert.Len(t, scores, 1, "k below 1 clamps to 1")

	scores = resolver.Rank(context.Background(), "x", -5, records, cache)
	assert.Len(t, scores, 1)

	scores = resolver.Rank(context.Background(), "x", 100, records, cache)
	assert.Len(t, scores, 2, "k beyond the record count returns everything")
}

func TestRankIsDeterministic(t *testing.T) {
	enc := &fakeEncoder{byText: map[string][]float32{
		"seed": {1, 0},
		"a":    {1, 0},
		"b":    {0.5, 0.5},
		"c":    {0, 1},
	}}
	resolver := index.NewResolver(enc, nil)
	cache := index.NewCache(enc)
	records := []roster.Record{
		{Name: "C", Topic: "c"},
		{Name: "A", Topic: "a"},
		{Name: "B", Topic: "b"},
	}

	first := resolver.Rank(context.Background(), "seed", 3, records, cache)
	second := resolver.Rank(context.Background(), "seed", 3, records, cache)
	assert.Equal(t, first, second)
	assert.Equal(t, "A", first[0].Name)
	assert.Equal(t, "B", first[1].Name)
	assert.Equal(t, "C", first[2].Name)
}

func TestRankMissingVectorScoresZero(t *testing.T) {
	// Only the seed encodes; card batches fail, so every record has no
	// vector and scores 0.0 instead of erroring.
	enc := &flakyEncoder{seedVec: []float32{1, 0}}
	resolver := index.NewResolver(enc, nil)
	cache := index.NewCache(enc)
	records := []roster.Record{
		{Name: "A", Topic: "alpha"},
		{Name: "B", Topic: "beta"},
	}

	scores := resolver.Rank(context.Background(), "seed", 2, records, cache)
	require.Len(t, scores, 2)
	assert.Equal(t, 0.0, scores[0].Score)
	assert.Equal(t, 0.0, scores[1].Score)
}

// flakyEncoder serves single-text (seed) requests and fails batches.
type flakyEncoder struct {
	seedVec []float32
}

func (f *flakyEncoder) ModelID() string { return "fake:flaky" }

func (f *flakyEncoder) Encode(_ context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 1 {
		return [][]float32{f.seedVec}, nil
	}
	return nil, assert.AnError
}
