// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package index

import "math"

// Cosine computes cosine similarity between two vectors. Defined as 0.0 when
// either vector is missing, empty, or has zero norm, so absent embeddings
// rank last instead of erroring. Length mismatch scores over the shorter
// prefix; snapshots and live encodes share one model so this does not occur
// in practice.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	den := math.Sqrt(na) * math.Sqrt(nb)
	if den == 0 {
		return 0
	}
	return dot / den
}
