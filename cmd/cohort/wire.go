// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/cohort-dev/cohort/internal/config"
	"github.com/cohort-dev/cohort/internal/embed"
	"github.com/cohort-dev/cohort/internal/index"
	"github.com/cohort-dev/cohort/internal/roster"
	"github.com/cohort-dev/cohort/internal/secrets"
	"github.com/cohort-dev/cohort/internal/server"
	"github.com/cohort-dev/cohort/internal/store"
	storesqlite "github.com/cohort-dev/cohort/internal/store/sqlite"
	cohorterr "github.com/cohort-dev/cohort/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server    *server.Server
	Catalog   *roster.Catalog
	Encoder   embed.Encoder
	Resolver  *index.Resolver
	Snapshots *storesqlite.SnapshotStore
	Caches    map[string]*index.Cache
}

// WireApp creates all subsystems and wires them together.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "creating data directory: %w", err)
	}

	// 1. Persistent JSON stores (validation flags, field overrides, column map).
	validated, err := store.OpenJSONMap[bool](cfg.ValidatedPath(), map[string]bool{})
	if err != nil {
		return nil, cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "opening validated store: %w", err)
	}
	overrides, err := store.OpenJSONMap[roster.Override](cfg.OverridesPath(), map[string]roster.Override{})
	if err != nil {
		return nil, cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "opening overrides store: %w", err)
	}
	columnMap, err := store.OpenJSONMap[string](cfg.ColumnMapPath(), map[string]string{})
	if err != nil {
		return nil, cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "opening column map store: %w", err)
	}

	catalog := roster.NewCatalog(validated, overrides)

	// 2. Encoder: live embeddings when configured, substring-only otherwise.
	encoder := buildEncoder(cfg)

	// 3. Roster datasets. The primary roster is required; the staff roster
	// is optional and failures there are not fatal.
	loader := roster.NewLoader(roster.NewXLSXSource(cfg.Roster.Path), "ECR", columnMap.All)
	records, err := loader.Load()
	if err != nil {
		return nil, cohorterr.Wrapf(err, cohorterr.CodeCLISetupFailure, "loading roster from %s", cfg.Roster.Path)
	}
	catalog.SetDataset(roster.DatasetECR, records)
	slog.Info("loaded roster", "dataset", roster.DatasetECR, "records", len(records))

	if cfg.Roster.StaffPath != "" {
		staffRecords, staffErr := roster.LoadStaffRecords(roster.NewXLSXSource(cfg.Roster.StaffPath))
		if staffErr != nil {
			slog.Warn("staff roster unavailable", "path", cfg.Roster.StaffPath, "error", staffErr)
		} else {
			catalog.SetDataset(roster.DatasetStaff, staffRecords)
			slog.Info("loaded roster", "dataset", roster.DatasetStaff, "records", len(staffRecords))
		}
	}

	// 4. Snapshot store and per-dataset caches. A missing snapshot database
	// only disables precomputed vectors.
	snapshots, err := storesqlite.OpenSnapshotStore(cfg.SnapshotDBPath())
	if err != nil {
		slog.Warn("snapshot store unavailable", "path", cfg.SnapshotDBPath(), "error", err)
	}

	caches := map[string]*index.Cache{
		roster.DatasetECR:   index.NewCache(encoder),
		roster.DatasetStaff: index.NewCache(encoder),
	}
	var tokenSnap *store.Snapshot
	if snapshots != nil {
		tokenSnap = loadSnapshots(ctx, snapshots, encoder, caches)
	}

	resolver := index.NewResolver(encoder, tokenSnap)

	// 5. HTTP server with service adapters.
	services, err := server.NewServices(
		&rosterServiceAdapter{catalog: catalog, loader: loader, columnMap: columnMap, caches: caches},
		&similarityServiceAdapter{catalog: catalog, caches: caches, resolver: resolver},
		&statusServiceAdapter{catalog: catalog, encoder: encoder, snapshots: snapshots},
	)
	if err != nil {
		return nil, cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "creating services: %w", err)
	}

	srv, err := server.New(server.Config{
		ListenAddr:  cfg.Networking.Listen,
		CORSOrigins: cfg.Networking.CORSOrigins,
		Services:    services,
	})
	if err != nil {
		return nil, cohorterr.Errorf(cohorterr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return &App{
		Server:    srv,
		Catalog:   catalog,
		Encoder:   encoder,
		Resolver:  resolver,
		Snapshots: snapshots,
		Caches:    caches,
	}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	var errs []error
	if a.Snapshots != nil {
		if err := a.Snapshots.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildEncoder resolves the embedder config into an encoder. Any failure
// degrades to the substring tier instead of refusing to start.
func buildEncoder(cfg *config.Config) embed.Encoder {
	if cfg.Embedder.Provider != "openai" {
		return embed.NewSerialized(embed.Unavailable{Reason: "embedding provider disabled"})
	}

	apiKey := cfg.Embedder.APIKey
	if secrets.IsKeyringURI(apiKey) {
		resolved, err := secrets.ResolveKeyringURI(secrets.NewKeyringStore(), apiKey)
		if err != nil {
			slog.Warn("resolving API key from keyring failed", "error", err)
			return embed.NewSerialized(embed.Unavailable{Reason: "API key unavailable"})
		}
		apiKey = resolved
	}

	enc, err := embed.NewOpenAIEncoder(embed.OpenAIConfig{
		APIKey:  apiKey,
		Model:   cfg.Embedder.Model,
		BaseURL: cfg.Embedder.BaseURL,
	})
	if err != nil {
		slog.Warn("embedding encoder unavailable", "error", err)
		return embed.NewSerialized(embed.Unavailable{Reason: "encoder initialization failed"})
	}
	return embed.NewSerialized(enc)
}

// loadSnapshots seeds the dataset caches and returns the token snapshot.
// Snapshots built under a different model than the live encoder are skipped
// so stale vectors never mix with fresh ones.
func loadSnapshots(ctx context.Context, snapshots store.SnapshotStore, encoder embed.Encoder, caches map[string]*index.Cache) *store.Snapshot {
	manifest, err := snapshots.Manifest(ctx)
	if err != nil {
		slog.Warn("reading snapshot manifest failed", "error", err)
		return nil
	}
	if manifest == nil {
		return nil
	}
	if encoder.ModelID() != "unavailable" && manifest.ModelID != encoder.ModelID() {
		slog.Warn("snapshot model differs from configured encoder, skipping snapshots",
			"snapshot_model", manifest.ModelID, "encoder_model", encoder.ModelID())
		return nil
	}

	kinds := map[string]store.SnapshotKind{
		roster.DatasetECR:   store.SnapshotCards,
		roster.DatasetStaff: store.SnapshotStaff,
	}
	for dataset, kind := range kinds {
		snap, loadErr := snapshots.Load(ctx, kind)
		if loadErr != nil {
			slog.Warn("loading snapshot failed", "kind", kind, "error", loadErr)
			continue
		}
		if !snap.Empty() {
			caches[dataset].SetPrecomputed(snap)
			slog.Info("loaded precomputed vectors", "dataset", dataset, "count", len(snap.Keys))
		}
	}

	tokenSnap, err := snapshots.Load(ctx, store.SnapshotTokens)
	if err != nil {
		slog.Warn("loading token snapshot failed", "error", err)
		return nil
	}
	if tokenSnap.Empty() {
		return nil
	}
	slog.Info("loaded token vectors", "count", len(tokenSnap.Keys))
	return tokenSnap
}

// --- Service adapters ---

// rosterServiceAdapter bridges the catalog and loader to the server's
// RosterService.
type rosterServiceAdapter struct {
	catalog   *roster.Catalog
	loader    *roster.Loader
	columnMap *store.JSONMap[string]
	caches    map[string]*index.Cache
}

func (a *rosterServiceAdapter) Records(_ context.Context, dataset string) ([]roster.Record, error) {
	return a.catalog.Records(dataset)
}

func (a *rosterServiceAdapter) Columns(_ context.Context) (server.ColumnsInfo, error) {
	sheets, err := a.loader.Columns()
	if err != nil {
		return server.ColumnsInfo{}, err
	}
	return server.ColumnsInfo{
		Sheets:    sheets,
		Overrides: a.columnMap.All(),
	}, nil
}

func (a *rosterServiceAdapter) SetValidated(_ context.Context, name string, validated bool) error {
	return a.catalog.SetValidated(name, validated)
}

func (a *rosterServiceAdapter) SetOverrides(_ context.Context, name string, update roster.Override) (roster.Override, error) {
	merged, err := a.catalog.SetOverride(name, update)
	if err != nil {
		return roster.Override{}, err
	}
	// Card text may have changed; evict cached vectors everywhere the name
	// could appear.
	for _, cache := range a.caches {
		cache.Invalidate(name)
	}
	return merged, nil
}

func (a *rosterServiceAdapter) SetColumnMap(_ context.Context, mapping map[string]string) (map[string]string, error) {
	for field := range mapping {
		if !isLogicalField(field) {
			return nil, cohorterr.Errorf(cohorterr.CodeServerRequestInvalid, "unknown field %q in column mapping", field)
		}
	}
	if err := a.columnMap.SetAll(mapping); err != nil {
		return nil, err
	}

	// Re-run inference with the new pins and rebuild cached card texts.
	records, err := a.loader.Load()
	if err != nil {
		return nil, err
	}
	a.catalog.SetDataset(roster.DatasetECR, records)
	a.caches[roster.DatasetECR].Clear()

	return a.columnMap.All(), nil
}

func isLogicalField(name string) bool {
	for _, f := range roster.LogicalFields {
		if string(f) == name {
			return true
		}
	}
	return false
}

// similarityServiceAdapter bridges the resolver to the server's
// SimilarityService.
type similarityServiceAdapter struct {
	catalog  *roster.Catalog
	caches   map[string]*index.Cache
	resolver *index.Resolver
}

func (a *similarityServiceAdapter) Rank(ctx context.Context, dataset, seed string, topK int) ([]index.Score, error) {
	records, err := a.catalog.Records(dataset)
	if err != nil {
		return nil, err
	}
	cache, ok := a.caches[dataset]
	if !ok {
		return nil, cohorterr.Errorf(cohorterr.CodeRosterDatasetNotFound, "dataset %q not found", dataset)
	}
	return a.resolver.Rank(ctx, seed, topK, records, cache), nil
}

// statusServiceAdapter reports dataset counts and encoder/snapshot state.
type statusServiceAdapter struct {
	catalog   *roster.Catalog
	encoder   embed.Encoder
	snapshots *storesqlite.SnapshotStore
}

func (a *statusServiceAdapter) Status(ctx context.Context) (server.StatusInfo, error) {
	info := server.StatusInfo{
		Datasets: map[string]int{},
		Encoder:  a.encoder.ModelID(),
	}
	for _, dataset := range a.catalog.DatasetNames() {
		records, err := a.catalog.Records(dataset)
		if err != nil {
			return server.StatusInfo{}, err
		}
		info.Datasets[dataset] = len(records)
	}

	if a.snapshots != nil {
		manifest, err := a.snapshots.Manifest(ctx)
		if err == nil && manifest != nil {
			info.Snapshot = &server.SnapshotInfo{
				RunID:     manifest.RunID,
				ModelID:   manifest.ModelID,
				Dimension: manifest.Dimension,
				CreatedAt: manifest.CreatedAt,
			}
		}
	}
	return info, nil
}
