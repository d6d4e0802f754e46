// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

import (
	"sort"
	"sync"

	"github.com/cohort-dev/cohort/internal/store"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// Dataset names used throughout the service.
const (
	DatasetECR   = "ecr"
	DatasetStaff = "staff"
)

// Catalog holds the ingested record sets and the persisted admin state
// (validation flags, field overrides). Reads apply overrides and flags on the
// fly, so an admin write is visible on the very next read without re-ingesting
// the spreadsheets.
type Catalog struct {
	mu        sync.RWMutex
	datasets  map[string][]Record
	validated *store.JSONMap[bool]
	overrides *store.JSONMap[Override]
}

// NewCatalog creates a Catalog over the two persisted stores.
func NewCatalog(validated *store.JSONMap[bool], overrides *store.JSONMap[Override]) *Catalog {
	return &Catalog{
		datasets:  make(map[string][]Record),
		validated: validated,
		overrides: overrides,
	}
}

// SetDataset installs (or fully replaces) the base records of one dataset.
func (c *Catalog) SetDataset(name string, records []Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.datasets[name] = records
}

// DatasetNames lists the installed datasets, sorted.
func (c *Catalog) DatasetNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.datasets))
	for name := range c.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Records returns the dataset's records in ingestion order, with field
// overrides and validation flags applied. The result is a deep copy.
func (c *Catalog) Records(dataset string) ([]Record, error) {
	c.mu.RLock()
	base, ok := c.datasets[dataset]
	c.mu.RUnlock()
	if !ok {
		return nil, cohorterr.Errorf(cohorterr.CodeRosterDatasetNotFound, "dataset %q not found", dataset)
	}

	out := make([]Record, 0, len(base))
	for _, rec := range base {
		out = append(out, c.effective(rec))
	}
	return out, nil
}

// Record returns one record by name with overrides and flags applied.
func (c *Catalog) Record(dataset, name string) (Record, error) {
	c.mu.RLock()
	base, ok := c.datasets[dataset]
	c.mu.RUnlock()
	if !ok {
		return Record{}, cohorterr.Errorf(cohorterr.CodeRosterDatasetNotFound, "dataset %q not found", dataset)
	}

	for _, rec := range base {
		if rec.Name == name {
			return c.effective(rec), nil
		}
	}
	return Record{}, cohorterr.Errorf(cohorterr.CodeRosterRecordNotFound, "record %q not found in dataset %q", name, dataset)
}

// SetValidated persists the validation flag for name.
func (c *Catalog) SetValidated(name string, validated bool) error {
	return c.validated.Set(name, validated)
}

// SetOverride layers update over the persisted override for name. Returns
// the merged override now in effect.
func (c *Catalog) SetOverride(name string, update Override) (Override, error) {
	current, _ := c.overrides.Get(name)
	merged := current.Merge(update)
	if err := c.overrides.Set(name, merged); err != nil {
		return Override{}, err
	}
	return merged, nil
}

// OverrideFor returns the persisted override for name.
func (c *Catalog) OverrideFor(name string) (Override, bool) {
	return c.overrides.Get(name)
}

func (c *Catalog) effective(rec Record) Record {
	out := rec.Clone()
	if ov, ok := c.overrides.Get(rec.Name); ok {
		ov.Apply(&out)
	}
	if v, ok := c.validated.Get(rec.Name); ok {
		out.Validated = v
	}
	return out
}
