// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster

// Override is a partial record edit persisted per name. Nil pointers and nil
// slices mean "not overridden"; a set field replaces the ingested value
// outright on every read.
type Override struct {
	Program    *string  `json:"program,omitempty"`
	Group      *string  `json:"group,omitempty"`
	Background *string  `json:"background,omitempty"`
	Topic      *string  `json:"topic,omitempty"`
	Methods    []string `json:"methods,omitempty"`
	Software   []string `json:"software,omitempty"`
	Offer      []string `json:"offer,omitempty"`
	Seek       []string `json:"seek,omitempty"`
}

// IsZero reports whether no field is overridden.
func (o Override) IsZero() bool {
	return o.Program == nil && o.Group == nil && o.Background == nil && o.Topic == nil &&
		o.Methods == nil && o.Software == nil && o.Offer == nil && o.Seek == nil
}

// Merge layers update over o: fields set in update win, the rest keep o's
// values. Matches how repeated admin edits accumulate per record.
func (o Override) Merge(update Override) Override {
	if update.Program != nil {
		o.Program = update.Program
	}
	if update.Group != nil {
		o.Group = update.Group
	}
	if update.Background != nil {
		o.Background = update.Background
	}
	if update.Topic != nil {
		o.Topic = update.Topic
	}
	if update.Methods != nil {
		o.Methods = update.Methods
	}
	if update.Software != nil {
		o.Software = update.Software
	}
	if update.Offer != nil {
		o.Offer = update.Offer
	}
	if update.Seek != nil {
		o.Seek = update.Seek
	}
	return o
}

// Apply writes the overridden fields onto rec.
func (o Override) Apply(rec *Record) {
	if o.Program != nil {
		rec.Program = *o.Program
	}
	if o.Group != nil {
		rec.Group = *o.Group
	}
	if o.Background != nil {
		rec.Background = *o.Background
	}
	if o.Topic != nil {
		rec.Topic = *o.Topic
	}
	if o.Methods != nil {
		rec.Methods = append([]string(nil), o.Methods...)
	}
	if o.Software != nil {
		rec.Software = append([]string(nil), o.Software...)
	}
	if o.Offer != nil {
		rec.Offer = append([]string(nil), o.Offer...)
	}
	if o.Seek != nil {
		rec.Seek = append([]string(nil), o.Seek...)
	}
}
