// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package roster_test

import (
	"testing"

	"github.com/cohort-dev/cohort/internal/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardTextJoinsFields(t *testing.T) {
	rec := roster.Record{
		Name:       "Alice",
		Background: "economics",
		Topic:      "labor markets",
		Methods:    []string{"regression"},
		Software:   []string{"Stata"},
		Offer:      []string{"econometrics"},
		Seek:       []string{"GIS"},
	}

	assert.Equal(t, "economics | labor markets | regression | Stata | econometrics | GIS", rec.CardText())
}

func TestCardTextFallsBackToName(t *testing.T) {
	rec := roster.Record{Name: "Bob"}
	assert.Equal(t, "Bob", rec.CardText())
}

func TestCardTextSkipsEmptyFields(t *testing.T) {
	rec := roster.Record{Name: "Carol", Topic: "water governance"}
	assert.Equal(t, "water governance", rec.CardText())
}

func TestMergeScalarFirstNonEmptyWins(t *testing.T) {
	a := roster.Record{Name: "Bob", Program: "Econ"}
	a.Merge(roster.Record{Name: "Bob", Program: "Sociology", Group: "Unit A"})

	assert.Equal(t, "Econ", a.Program)
	assert.Equal(t, "Unit A", a.Group)
}

func TestMergeListsUnionSorted(t *testing.T) {
	a := roster.Record{Name: "Bob", Methods: []string{"surveys", "interviews"}}
	a.Merge(roster.Record{Name: "Bob", Methods: []string{"interviews", "ethnography"}})

	assert.Equal(t, []string{"ethnography", "interviews", "surveys"}, a.Methods)
}

func TestMergeDoesNotFoldCase(t *testing.T) {
	a := roster.Record{Name: "Bob", Software: []string{"python"}}
	a.Merge(roster.Record{Name: "Bob", Software: []string{"Python"}})

	assert.Equal(t, []string{"Python", "python"}, a.Software)
}

func TestMergeValidatedIsSticky(t *testing.T) {
	a := roster.Record{Name: "Bob", Validated: true}
	a.Merge(roster.Record{Name: "Bob"})
	assert.True(t, a.Validated)

	b := roster.Record{Name: "Eve"}
	b.Merge(roster.Record{Name: "Eve", Validated: true})
	assert.True(t, b.Validated)
}

func TestMergeByNamePreservesFirstAppearanceOrder(t *testing.T) {
	records := []roster.Record{
		{Name: "Bob", Program: "Econ"},
		{Name: "Alice"},
		{Name: "Bob", Group: "Unit A"},
	}

	merged := roster.MergeByName(records)
	require.Len(t, merged, 2)
	assert.Equal(t, "Bob", merged[0].Name)
	assert.Equal(t, "Econ", merged[0].Program)
	assert.Equal(t, "Unit A", merged[0].Group)
	assert.Equal(t, "Alice", merged[1].Name)
}

func TestCloneIsDeep(t *testing.T) {
	rec := roster.Record{
		Name:            "Alice",
		Methods:         []string{"regression"},
		ExpertiseGroups: map[string][]string{"Data": {"Python"}},
	}

	clone := rec.Clone()
	clone.Methods[0] = "changed"
	clone.ExpertiseGroups["Data"][0] = "changed"

	assert.Equal(t, "regression", rec.Methods[0])
	assert.Equal(t, "Python", rec.ExpertiseGroups["Data"][0])
}
