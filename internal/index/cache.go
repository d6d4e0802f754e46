// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package index

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cohort-dev/cohort/internal/embed"
	"github.com/cohort-dev/cohort/internal/roster"
	"github.com/cohort-dev/cohort/internal/store"
)

// Cache owns the embedding state for one record set: precomputed vectors
// loaded from a snapshot at startup, plus card texts and vectors computed
// lazily through the encoder. Once a vector exists for a name it is never
// recomputed until Invalidate evicts it.
type Cache struct {
	encoder embed.Encoder

	mu       sync.Mutex
	preIndex map[string]int // name -> row in preVectors
	preVecs  [][]float32
	texts    map[string]string
	vecs     map[string][]float32
}

// NewCache creates an empty cache. encoder is the process-wide serialized
// encoder; it may be an embed.Unavailable, in which case lazy computation
// fails and lookups serve precomputed vectors only.
func NewCache(encoder embed.Encoder) *Cache {
	return &Cache{
		encoder:  encoder,
		preIndex: make(map[string]int),
		texts:    make(map[string]string),
		vecs:     make(map[string][]float32),
	}
}

// SetPrecomputed installs a snapshot of precomputed card vectors. Replaces
// any previously installed snapshot.
func (c *Cache) SetPrecomputed(snap *store.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.preIndex = make(map[string]int)
	c.preVecs = nil
	if snap.Empty() {
		return
	}
	c.preVecs = snap.Vectors
	for i, name := range snap.Keys {
		c.preIndex[name] = i
	}
}

// TextFor returns the record's card text, computing and caching it on first
// use.
func (c *Cache) TextFor(rec roster.Record) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.textLocked(rec)
}

func (c *Cache) textLocked(rec roster.Record) string {
	if text, ok := c.texts[rec.Name]; ok {
		return text
	}
	text := rec.CardText()
	c.texts[rec.Name] = text
	return text
}

// VectorsFor resolves a vector for each record: computed cache first, then
// the precomputed snapshot, then one batched encode of everything still
// missing. Names the encoder cannot serve are simply absent from the result;
// an unavailable model degrades lookups to precomputed-only.
func (c *Cache) VectorsFor(ctx context.Context, records []roster.Record) map[string][]float32 {
	out := make(map[string][]float32, len(records))

	c.mu.Lock()
	var missing []string
	var missingTexts []string
	for _, rec := range records {
		if vec, ok := c.vecs[rec.Name]; ok {
			out[rec.Name] = vec
			continue
		}
		if i, ok := c.preIndex[rec.Name]; ok {
			out[rec.Name] = c.preVecs[i]
			continue
		}
		missing = append(missing, rec.Name)
		missingTexts = append(missingTexts, c.textLocked(rec))
	}
	c.mu.Unlock()

	if len(missing) == 0 {
		return out
	}

	// The encoder serializes model access itself; holding c.mu across the
	// call would block unrelated cache reads for the whole encode.
	vecs, err := c.encoder.Encode(ctx, missingTexts)
	if err != nil {
		slog.Debug("batch encode unavailable, serving cached vectors only",
			"missing", len(missing), "error", err)
		return out
	}

	c.mu.Lock()
	for i, name := range missing {
		if i >= len(vecs) {
			break
		}
		c.vecs[name] = vecs[i]
		out[name] = vecs[i]
	}
	c.mu.Unlock()
	return out
}

// Invalidate evicts the cached card text and vector for name, and shadows
// any precomputed entry, so the next lookup recomputes from fresh content.
// Called after a field override changes what the record's card text says.
func (c *Cache) Invalidate(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.texts, name)
	delete(c.vecs, name)
	delete(c.preIndex, name)
}

// Clear evicts all derived texts and live vectors. Precomputed entries stay,
// minus any shadowed by earlier Invalidate calls. Used when a column-mapping
// change may have altered every record's card text.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = make(map[string]string)
	c.vecs = make(map[string][]float32)
}

// CachedText reports the cached card text for name, for staleness checks.
func (c *Cache) CachedText(name string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	text, ok := c.texts[name]
	return text, ok
}

// CachedVector reports whether a computed or precomputed vector is cached
// for name.
func (c *Cache) CachedVector(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.vecs[name]; ok {
		return true
	}
	_, ok := c.preIndex[name]
	return ok
}
