// plugins.go: plugin list, sync and activation commands
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	goextend "github.com/agilira/go-extend"
	"github.com/spf13/cobra"
)

func newPluginsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "plugins",
		Aliases: []string{"plugin"},
		Short:   "Manage plugin activation records",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List plugin records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				records, err := a.kernel.Plugins().List(cmd.Context())
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), records, func(out io.Writer) error {
					return writePluginTable(out, records)
				})
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Record every discovered plugin in the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				report, err := a.kernel.Plugins().Sync(cmd.Context())
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), newSyncView(report), func(out io.Writer) error {
					return writeSyncReport(out, report)
				})
			},
		},
		newTransitionCommand(a, "activate", "Activate a plugin", (*goextend.ModuleResolver).Activate),
		newTransitionCommand(a, "deactivate", "Deactivate a plugin", (*goextend.ModuleResolver).Deactivate),
		newTransitionCommand(a, "broken", "Mark a plugin broken", (*goextend.ModuleResolver).MarkBroken),
	)
	return cmd
}

type transition func(*goextend.ModuleResolver, context.Context, string) error

func newTransitionCommand(a *app, use, short string, apply transition) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <vendor/module>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := apply(a.kernel.Plugins(), cmd.Context(), name); err != nil {
				return err
			}
			record, err := a.kernel.Plugins().Get(cmd.Context(), name)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), record, func(out io.Writer) error {
				_, err := fmt.Fprintf(out, "%s is %s\n", record.Name, record.Status)
				return err
			})
		},
	}
}

func writePluginTable(out io.Writer, records []goextend.PluginRecord) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTATUS\tVERSION\tNAMESPACE")
	for _, record := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", record.Name, record.Status, record.Version, record.Namespace)
	}
	return w.Flush()
}

// syncView is the JSON form of a SyncReport.
type syncView struct {
	Created   []string `json:"created"`
	Updated   []string `json:"updated"`
	Unchanged []string `json:"unchanged"`
	Missing   []string `json:"missing"`
	Skipped   []string `json:"skipped,omitempty"`
}

func newSyncView(report goextend.SyncReport) syncView {
	view := syncView{
		Created:   report.Created,
		Updated:   report.Updated,
		Unchanged: report.Unchanged,
		Missing:   report.Missing,
	}
	for _, err := range (goextend.DiscoveryReport{Skipped: report.Skipped}).SkippedErrors() {
		view.Skipped = append(view.Skipped, err.Error())
	}
	return view
}

func writeSyncReport(out io.Writer, report goextend.SyncReport) error {
	view := newSyncView(report)
	lines := []struct {
		label string
		items []string
	}{
		{"created", view.Created},
		{"updated", view.Updated},
		{"unchanged", view.Unchanged},
		{"missing", view.Missing},
		{"skipped", view.Skipped},
	}
	for _, line := range lines {
		if _, err := fmt.Fprintf(out, "%-10s %d %s\n", line.label+":", len(line.items), strings.Join(line.items, ", ")); err != nil {
			return err
		}
	}
	return nil
}
