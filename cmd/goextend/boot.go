// boot.go: resolve and boot commands
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sort"

	goextend "github.com/agilira/go-extend"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

func newResolveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <symbol>",
		Short: "Resolve a namespaced symbol to a source file",
		Long: `Registers the autoload mappings of every discovered plugin and resolves
the symbol against them. Matching prefixes are tried in registration order
and the first existing file wins.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plugins := a.kernel.Plugins()
			discovery, err := plugins.Discover(cmd.Context())
			if err != nil {
				return err
			}
			for _, manifest := range discovery.Modules {
				if err := plugins.RegisterAutoload(manifest); err != nil {
					return err
				}
			}

			path, err := a.kernel.Loader().Resolve(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}

// bootView is the JSON form of a KernelBootReport.
type bootView struct {
	Booted   []string          `json:"booted"`
	Failed   map[string]string `json:"failed,omitempty"`
	Sources  map[string]string `json:"sources,omitempty"`
	Theme    string            `json:"theme,omitempty"`
	Fallback bool              `json:"fallback,omitempty"`
	Duration string            `json:"duration"`
}

func newBootView(report goextend.KernelBootReport) bootView {
	view := bootView{
		Booted:   report.Plugins.Booted,
		Sources:  report.Plugins.Sources,
		Duration: report.Duration.String(),
	}
	if len(report.Plugins.Failed) > 0 {
		view.Failed = make(map[string]string, len(report.Plugins.Failed))
		for _, failure := range report.Plugins.Failed {
			view.Failed[failure.Module] = failure.Phase + ": " + failure.Err.Error()
		}
	}
	if report.Theme != nil {
		view.Theme = report.Theme.Slug
		view.Fallback = report.Theme.Fallback
	}
	return view
}

func newBootCommand(a *app) *cobra.Command {
	var healthAddr string

	cmd := &cobra.Command{
		Use:   "boot",
		Short: "Sync and boot active plugins, then load the active theme",
		Long: `Runs the full boot sequence. Plugins whose manifests declare providers
need those providers compiled into the host, so from the command line only
provider-less plugins boot cleanly; the others are reported as failed.

With --health-addr the gRPC health service is served until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := a.kernel.Boot(cmd.Context())
			if err != nil {
				return err
			}
			view := newBootView(report)
			if err := a.render(cmd.OutOrStdout(), view, func(out io.Writer) error {
				return writeBootReport(out, view)
			}); err != nil {
				return err
			}

			if healthAddr == "" {
				return nil
			}
			return serveHealth(cmd, a.kernel, healthAddr)
		},
	}
	cmd.Flags().StringVar(&healthAddr, "health-addr", "", "serve gRPC health on this address after boot")
	return cmd
}

func serveHealth(cmd *cobra.Command, kernel *goextend.Kernel, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	server := grpc.NewServer()
	kernel.Health().Register(server)

	go func() {
		<-cmd.Context().Done()
		kernel.Health().Shutdown()
		server.GracefulStop()
	}()

	kernel.Logger().Info("Serving health", "addr", listener.Addr().String())
	if err := server.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}

func writeBootReport(out io.Writer, view bootView) error {
	fmt.Fprintf(out, "booted: %d\n", len(view.Booted))
	for _, name := range view.Booted {
		fmt.Fprintf(out, "  %s\n", name)
	}
	if len(view.Failed) > 0 {
		fmt.Fprintf(out, "failed: %d\n", len(view.Failed))
		names := make([]string, 0, len(view.Failed))
		for name := range view.Failed {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(out, "  %s (%s)\n", name, view.Failed[name])
		}
	}
	theme := view.Theme
	if theme == "" {
		theme = "none"
	} else if view.Fallback {
		theme += " (fallback)"
	}
	_, err := fmt.Fprintf(out, "theme: %s\nduration: %s\n", theme, view.Duration)
	return err
}
