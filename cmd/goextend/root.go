// root.go: root command, global flags and kernel construction
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"

	goextend "github.com/agilira/go-extend"
	"github.com/spf13/cobra"
)

// app carries state shared by every subcommand.
type app struct {
	configFile  string
	logLevel    string
	pluginRoot  string
	themeRoot   string
	storeDriver string
	storeDSN    string
	output      string

	logger *goextend.ZapAdapter
	kernel *goextend.Kernel
}

// newRootCommand builds the command tree. Call app.teardown after Execute;
// cobra skips PersistentPostRunE when a command fails.
func newRootCommand() (*cobra.Command, *app) {
	a := &app{}

	root := &cobra.Command{
		Use:   "goextend",
		Short: "Manage plugin and theme activation state",
		Long: `goextend discovers plugins and themes, keeps their activation records in
sync with the configured store and boots the active set.

Configuration is read from --config (JSON, YAML or TOML), then GOEXTEND_*
environment variables, then the flags below.

Examples:
  goextend plugins sync
  goextend plugins activate acme/blog
  goextend themes load
  goextend boot`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "config file (JSON, YAML or TOML)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.StringVar(&a.pluginRoot, "plugins", "", "plugin root directory")
	flags.StringVar(&a.themeRoot, "themes", "", "theme root directory")
	flags.StringVar(&a.storeDriver, "store", "", "store driver: memory, sqlite, bolt")
	flags.StringVar(&a.storeDSN, "dsn", "", "store database file")
	flags.StringVarP(&a.output, "output", "o", "text", "output format: text, json")

	root.AddCommand(
		newPluginsCommand(a),
		newThemesCommand(a),
		newResolveCommand(a),
		newBootCommand(a),
	)
	return root, a
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	a.logger = goextend.NewZapLogger(cfg.LogLevel)
	store, err := openStore(cfg.Store)
	if err != nil {
		return err
	}

	kernel, err := goextend.New(cfg, store, goextend.WithLogger(a.logger))
	if err != nil {
		_ = store.Close()
		return err
	}
	a.kernel = kernel
	return nil
}

func (a *app) loadConfig() (goextend.Config, error) {
	cfg, err := goextend.LoadConfig(a.configFile)
	if err != nil {
		return cfg, err
	}

	overrides := []struct {
		flag   string
		target *string
	}{
		{a.logLevel, &cfg.LogLevel},
		{a.pluginRoot, &cfg.PluginRoot},
		{a.themeRoot, &cfg.ThemeRoot},
		{a.storeDriver, &cfg.Store.Driver},
		{a.storeDSN, &cfg.Store.DSN},
	}
	for _, override := range overrides {
		if override.flag != "" {
			*override.target = override.flag
		}
	}
	return cfg, cfg.Validate()
}

func (a *app) teardown() error {
	var err error
	if a.kernel != nil {
		err = a.kernel.Close()
		a.kernel = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	return err
}

// render writes value as indented JSON when -o json is set, otherwise calls
// text.
func (a *app) render(out io.Writer, value any, text func(io.Writer) error) error {
	switch a.output {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(value)
	case "", "text":
		return text(out)
	default:
		return fmt.Errorf("unknown output format %q", a.output)
	}
}
