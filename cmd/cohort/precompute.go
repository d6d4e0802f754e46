// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cohort-dev/cohort/internal/config"
	"github.com/cohort-dev/cohort/internal/embed"
	"github.com/cohort-dev/cohort/internal/roster"
	"github.com/cohort-dev/cohort/internal/store"
	storesqlite "github.com/cohort-dev/cohort/internal/store/sqlite"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// encodeBatchSize bounds the number of texts per embeddings request.
const encodeBatchSize = 100

func newPrecomputeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "precompute",
		Short: "Build embedding snapshots for the roster",
		Long:  "Encode every record's card text and the token universe, then persist the vectors so the server can rank without live encoding.",
		RunE:  runPrecompute,
	}
}

func runPrecompute(cmd *cobra.Command, _ []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	encoder := buildEncoder(cfg)
	if encoder.ModelID() == "unavailable" {
		return cohorterr.New(cohorterr.CodeEmbedUnavailable,
			"precompute requires a configured embedding provider")
	}

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Overrides affect card texts, so precompute reads through the catalog
	// exactly like the server does.
	validated, err := store.OpenJSONMap[bool](cfg.ValidatedPath(), map[string]bool{})
	if err != nil {
		return cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "opening validated store: %w", err)
	}
	overrides, err := store.OpenJSONMap[roster.Override](cfg.OverridesPath(), map[string]roster.Override{})
	if err != nil {
		return cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "opening overrides store: %w", err)
	}
	columnMap, err := store.OpenJSONMap[string](cfg.ColumnMapPath(), map[string]string{})
	if err != nil {
		return cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "opening column map store: %w", err)
	}
	catalog := roster.NewCatalog(validated, overrides)

	loader := roster.NewLoader(roster.NewXLSXSource(cfg.Roster.Path), "ECR", columnMap.All)
	records, err := loader.Load()
	if err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeCLISetupFailure, "loading roster from %s", cfg.Roster.Path)
	}
	catalog.SetDataset(roster.DatasetECR, records)

	if cfg.Roster.StaffPath != "" {
		staffRecords, staffErr := roster.LoadStaffRecords(roster.NewXLSXSource(cfg.Roster.StaffPath))
		if staffErr != nil {
			_, _ = fmt.Fprintf(out, "Skipping staff roster: %s\n", staffErr)
		} else {
			catalog.SetDataset(roster.DatasetStaff, staffRecords)
		}
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "creating data directory: %w", err)
	}
	snapshots, err := storesqlite.NewSnapshotStore(cfg.SnapshotDBPath())
	if err != nil {
		return cohorterr.Wrapf(err, cohorterr.CodeCLISetupFailure, "opening snapshot database %s", cfg.SnapshotDBPath())
	}
	defer func() { _ = snapshots.Close() }()

	kinds := map[string]store.SnapshotKind{
		roster.DatasetECR:   store.SnapshotCards,
		roster.DatasetStaff: store.SnapshotStaff,
	}

	dimension := 0
	for _, dataset := range catalog.DatasetNames() {
		kind, ok := kinds[dataset]
		if !ok {
			continue
		}
		effective, recErr := catalog.Records(dataset)
		if recErr != nil {
			return recErr
		}

		snap, encErr := encodeCards(ctx, encoder, effective)
		if encErr != nil {
			return encErr
		}
		if snap.Empty() {
			continue
		}
		dimension = len(snap.Vectors[0])

		if saveErr := snapshots.Save(ctx, kind, snap); saveErr != nil {
			return saveErr
		}
		_, _ = fmt.Fprintf(out, "Encoded %d cards for dataset %q\n", len(snap.Keys), dataset)
	}

	tokenSnap, err := encodeTokens(ctx, encoder, catalog)
	if err != nil {
		return err
	}
	if !tokenSnap.Empty() {
		if err := snapshots.Save(ctx, store.SnapshotTokens, tokenSnap); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Encoded %d tokens\n", len(tokenSnap.Keys))
	}

	manifest := &store.Manifest{
		RunID:     uuid.NewString(),
		ModelID:   encoder.ModelID(),
		Dimension: dimension,
		CreatedAt: time.Now().UTC(),
	}
	if err := snapshots.SaveManifest(ctx, manifest); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Snapshot %s written to %s (model %s, dimension %d)\n",
		manifest.RunID, cfg.SnapshotDBPath(), manifest.ModelID, manifest.Dimension)
	return nil
}

// encodeCards embeds each record's card text, batched.
func encodeCards(ctx context.Context, encoder embed.Encoder, records []roster.Record) (*store.Snapshot, error) {
	snap := &store.Snapshot{}
	texts := make([]string, 0, len(records))
	for _, rec := range records {
		snap.Keys = append(snap.Keys, rec.Name)
		texts = append(texts, rec.CardText())
	}

	for start := 0; start < len(texts); start += encodeBatchSize {
		end := min(start+encodeBatchSize, len(texts))
		vecs, err := encoder.Encode(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		snap.Vectors = append(snap.Vectors, vecs...)
	}
	return snap, nil
}

// encodeTokens embeds the lowercased token universe drawn from every
// record's topic and skill lists.
func encodeTokens(ctx context.Context, encoder embed.Encoder, catalog *roster.Catalog) (*store.Snapshot, error) {
	seen := map[string]bool{}
	for _, dataset := range catalog.DatasetNames() {
		records, err := catalog.Records(dataset)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if topic := strings.TrimSpace(strings.ToLower(rec.Topic)); topic != "" {
				seen[topic] = true
			}
			for _, list := range [][]string{rec.Methods, rec.Software, rec.Offer} {
				for _, item := range list {
					if token := strings.TrimSpace(strings.ToLower(item)); token != "" {
						seen[token] = true
					}
				}
			}
		}
	}

	tokens := make([]string, 0, len(seen))
	for token := range seen {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	snap := &store.Snapshot{Keys: tokens}
	for start := 0; start < len(tokens); start += encodeBatchSize {
		end := min(start+encodeBatchSize, len(tokens))
		vecs, err := encoder.Encode(ctx, tokens[start:end])
		if err != nil {
			return nil, err
		}
		snap.Vectors = append(snap.Vectors, vecs...)
	}
	return snap, nil
}
