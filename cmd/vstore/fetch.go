package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/internal/errors"
	"github.com/vango-dev/vstore/pkg/store"
)

const (
	fetchStore  = "fetch"
	fetchAction = "request"
)

type fetchOptions struct {
	method  string
	data    string
	baseURL string
}

func fetchCmd(load func() (*config.Config, error)) *cobra.Command {
	var opts fetchOptions

	cmd := &cobra.Command{
		Use:   "fetch <path>",
		Short: "Run one HTTP action and print its slot",
		Long: `Dispatch a single HTTP action through a one-off store and print the
resulting slot as JSON. Failures are reported with the same codes the
devtools server uses.

Examples:
  vstore fetch /users/42
  vstore fetch /users --method POST --data '{"name":"ada"}'
  vstore fetch /health --base-url http://localhost:8080`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadFetchConfig(load, opts.baseURL)
			if err != nil {
				return err
			}
			return runFetch(cmd.Context(), cmd, cfg, args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&opts.data, "data", "d", "", "JSON request body")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Base URL (default from config)")

	return cmd
}

// loadFetchConfig loads the config, falling back to defaults when only a
// base URL is given.
func loadFetchConfig(load func() (*config.Config, error), baseURL string) (*config.Config, error) {
	cfg, err := load()
	if err != nil {
		if baseURL == "" {
			return nil, err
		}
		cfg = config.New()
	}
	if baseURL != "" {
		cfg.Transport.BaseURL = baseURL
	}
	if cfg.Transport.BaseURL == "" {
		return nil, errors.New("V102").WithDetail("transport.baseURL is required for fetch")
	}
	return cfg, nil
}

func runFetch(ctx context.Context, cmd *cobra.Command, cfg *config.Config, path string, opts fetchOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := newLogger(cfg, cmd.ErrOrStderr())
	api, _ := newTransports(cfg, logger)

	var args []any
	if opts.data != "" {
		var body any
		if err := json.Unmarshal([]byte(opts.data), &body); err != nil {
			return errors.New("V400").WithDetail(fmt.Sprintf("--data is not valid JSON: %v", err)).Wrap(err)
		}
		args = append(args, body)
	}

	reg, err := store.Create(store.Declarations{
		fetchStore: {
			fetchAction: api.Action(strings.ToUpper(opts.method), path),
		},
	}, store.WithLogger(logger.With("component", "store")))
	if err != nil {
		return err
	}

	action := reg.MustStore(fetchStore).MustAsync(fetchAction)
	slot, err := action.Run(ctx, args...)
	if err != nil {
		return err
	}
	if slot.Error != nil {
		return errors.FromSlotError(slot.Error)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(slot.Data)
}
