// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package embed

import (
	"context"
	"sync"

	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// Encoder turns texts into fixed-length vectors, one per input and in input
// order. Implementations must be deterministic for the same text and model.
type Encoder interface {
	ModelID() string
	Encode(ctx context.Context, texts []string) ([][]float32, error)
}

// Unavailable is the Encoder used when no embedding model is configured or
// the configured one failed to load. Every Encode call reports the degraded
// mode; callers fall back to substring matching.
type Unavailable struct {
	Reason string
}

func (u Unavailable) ModelID() string { return "unavailable" }

func (u Unavailable) Encode(_ context.Context, _ []string) ([][]float32, error) {
	reason := u.Reason
	if reason == "" {
		reason = "no embedding model configured"
	}
	return nil, cohorterr.New(cohorterr.CodeEmbedUnavailable, reason)
}

// Serialized guards an Encoder with a single critical section. The model is
// not reentrant, so every encode in the process (query seeds, batches of
// uncached card texts, precompute runs) must go through the same Serialized
// instance. Callers block while another encode is in flight.
type Serialized struct {
	mu    sync.Mutex
	inner Encoder
}

// NewSerialized wraps inner so all Encode calls are mutually exclusive.
func NewSerialized(inner Encoder) *Serialized {
	return &Serialized{inner: inner}
}

func (s *Serialized) ModelID() string {
	return s.inner.ModelID()
}

func (s *Serialized) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inner.Encode(ctx, texts)
}
