// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package index

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/cohort-dev/cohort/internal/embed"
	"github.com/cohort-dev/cohort/internal/roster"
	"github.com/cohort-dev/cohort/internal/store"
)

// Score is one ranked entry of a similarity result.
type Score struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// Resolver ranks records against a free-text seed. The query vector is
// resolved through an ordered strategy list: a precomputed token match, then
// a live encode, and finally a substring scorer needing no vector at all.
// The resolver never fails for a missing model.
type Resolver struct {
	encoder embed.Encoder
	tokens  map[string][]float32 // lowercased token -> precomputed vector
}

// NewResolver creates a Resolver. tokenSnap may be empty; the token shortcut
// is an optimization for common query seeds, not a complete vocabulary.
func NewResolver(encoder embed.Encoder, tokenSnap *store.Snapshot) *Resolver {
	tokens := make(map[string][]float32)
	if !tokenSnap.Empty() {
		for i, tok := range tokenSnap.Keys {
			tokens[strings.ToLower(tok)] = tokenSnap.Vectors[i]
		}
	}
	return &Resolver{encoder: encoder, tokens: tokens}
}

// Rank scores every record against seed and returns the top k, best first.
// k is clamped to at least 1; an empty seed short-circuits to an empty
// result before any tier runs.
func (r *Resolver) Rank(ctx context.Context, seed string, k int, records []roster.Record, cache *Cache) []Score {
	seed = strings.TrimSpace(seed)
	if seed == "" {
		return []Score{}
	}
	if k < 1 {
		k = 1
	}

	queryVec := r.queryVector(ctx, seed)
	if queryVec == nil {
		return truncate(r.substringScores(seed, records, cache), k)
	}

	vecs := cache.VectorsFor(ctx, records)
	scores := make([]Score, 0, len(records))
	for _, rec := range records {
		scores = append(scores, Score{
			Name:  rec.Name,
			Score: Cosine(queryVec, vecs[rec.Name]),
		})
	}
	// Stable keeps input order for equal scores; no secondary key.
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	return truncate(scores, k)
}

// queryVector tries tier 1 (precomputed token) then tier 2 (live encode).
// Returns nil when both fail, selecting the substring tier.
func (r *Resolver) queryVector(ctx context.Context, seed string) []float32 {
	if vec, ok := r.tokens[strings.ToLower(seed)]; ok {
		return vec
	}

	vecs, err := r.encoder.Encode(ctx, []string{seed})
	if err != nil || len(vecs) == 0 {
		slog.Debug("seed encode unavailable, falling back to substring match", "error", err)
		return nil
	}
	return vecs[0]
}

// substringScores is the degraded tier: 1.0 when the lowercased seed occurs
// in the record's lowercased card text, else 0.0, ties broken by name.
func (r *Resolver) substringScores(seed string, records []roster.Record, cache *Cache) []Score {
	needle := strings.ToLower(seed)
	scores := make([]Score, 0, len(records))
	for _, rec := range records {
		s := 0.0
		if strings.Contains(strings.ToLower(cache.TextFor(rec)), needle) {
			s = 1.0
		}
		scores = append(scores, Score{Name: rec.Name, Score: s})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Name < scores[j].Name
	})
	return scores
}

func truncate(scores []Score, k int) []Score {
	if len(scores) > k {
		return scores[:k]
	}
	return scores
}
