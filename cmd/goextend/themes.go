// themes.go: theme list, sync, activation and load commands
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	goextend "github.com/agilira/go-extend"
	"github.com/spf13/cobra"
)

func newThemesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "themes",
		Aliases: []string{"theme"},
		Short:   "Manage theme records and the active theme",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List theme records",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				records, err := a.kernel.Themes().List(cmd.Context())
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), records, func(out io.Writer) error {
					return writeThemeTable(out, records)
				})
			},
		},
		&cobra.Command{
			Use:   "sync",
			Short: "Record every discovered theme in the store",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				report, err := a.kernel.Themes().Sync(cmd.Context())
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), newSyncView(report), func(out io.Writer) error {
					return writeSyncReport(out, report)
				})
			},
		},
		&cobra.Command{
			Use:   "activate <slug>",
			Short: "Make a theme the only active theme",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := a.kernel.Themes().Activate(cmd.Context(), args[0]); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s is active\n", args[0])
				return err
			},
		},
		&cobra.Command{
			Use:   "load [slug]",
			Short: "Resolve and install a theme, falling back when it is missing",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				explicit := ""
				if len(args) == 1 {
					explicit = args[0]
				}
				theme, err := a.kernel.Themes().LoadActive(cmd.Context(), explicit)
				if err != nil {
					return err
				}
				return a.render(cmd.OutOrStdout(), theme, func(out io.Writer) error {
					return writeLoadedTheme(out, theme)
				})
			},
		},
	)
	return cmd
}

func writeThemeTable(out io.Writer, records []goextend.ThemeRecord) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SLUG\tNAME\tVERSION\tACTIVE")
	for _, record := range records {
		active := ""
		if record.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", record.Slug, record.Name, record.Version, active)
	}
	return w.Flush()
}

func writeLoadedTheme(out io.Writer, theme *goextend.LoadedTheme) error {
	if theme == nil {
		_, err := fmt.Fprintln(out, "no theme loaded")
		return err
	}
	suffix := ""
	if theme.Fallback {
		suffix = " (fallback)"
	}
	_, err := fmt.Fprintf(out, "%s%s\n  dir:   %s\n  views: %s\n", theme.Slug, suffix, theme.Dir, theme.ViewsDir)
	return err
}
