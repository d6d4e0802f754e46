// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Cohort Contributors

package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Long:  "Check the running server's health endpoint and display status information.",
		RunE:  runStatus,
	}

	cmd.Flags().String("address", "127.0.0.1:8600", "server address to check")

	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	out := cmd.OutOrStdout()

	client := newServerClient(addr)
	var health struct {
		Status string `json:"status"`
	}
	if err := client.getJSON("/health", &health); err != nil {
		if errors.Is(err, ErrServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, health.Status)

	var status struct {
		Datasets map[string]int `json:"datasets"`
		Encoder  string         `json:"encoder"`
		Snapshot *struct {
			ModelID   string `json:"model_id"`
			Dimension int    `json:"dimension"`
			CreatedAt string `json:"created_at"`
		} `json:"snapshot"`
	}
	if err := client.getJSON("/api/v1/status", &status); err != nil {
		// Health alone is still a useful answer.
		return nil
	}

	datasets := make([]string, 0, len(status.Datasets))
	for name := range status.Datasets {
		datasets = append(datasets, name)
	}
	sort.Strings(datasets)
	for _, name := range datasets {
		_, _ = fmt.Fprintf(out, "  %s: %d records\n", name, status.Datasets[name])
	}
	_, _ = fmt.Fprintf(out, "  encoder: %s\n", status.Encoder)
	if status.Snapshot != nil {
		_, _ = fmt.Fprintf(out, "  snapshot: %s (dimension %d, created %s)\n",
			status.Snapshot.ModelID, status.Snapshot.Dimension, status.Snapshot.CreatedAt)
	} else {
		_, _ = fmt.Fprintln(out, "  snapshot: none")
	}
	return nil
}
