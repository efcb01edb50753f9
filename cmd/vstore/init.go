package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/internal/errors"
)

func initCmd() *cobra.Command {
	var (
		format string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Write a default config file",
		Long: `Write vstore.json (or vstore.toml with --format toml) with default
settings and an example store.

Examples:
  vstore init
  vstore init ./app --format toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			name := config.ConfigFileName
			switch format {
			case "json":
			case "toml":
				name = config.TOMLConfigFileName
			default:
				return errors.New("V400").WithDetail("--format must be json or toml, got " + format)
			}

			if !force && config.Exists(dir) {
				return errors.New("V400").
					WithDetail("A config file already exists in " + dir).
					WithSuggestion("Pass --force to overwrite it")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return errors.New("V401").Wrap(err)
			}

			path := filepath.Join(dir, name)
			if err := defaultConfig().SaveTo(path); err != nil {
				return err
			}
			success(cmd.OutOrStdout(), "Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "json", "Config format: json or toml")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")

	return cmd
}

// defaultConfig returns the config written by init: defaults plus a
// counter store driven by the built-in set action.
func defaultConfig() *config.Config {
	cfg := config.New()
	cfg.Stores = map[string]config.StoreConfig{
		"counter": {
			Values: map[string]any{"count": 0},
		},
	}
	return cfg
}
