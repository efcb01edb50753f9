package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/pkg/middleware"
	"github.com/vango-dev/vstore/pkg/store"
	"github.com/vango-dev/vstore/pkg/transport"
)

// setAction is the sync action added to every configured store. It merges
// its first argument, a map of field values, into the state.
const setAction = "set"

func storesCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List configured stores",
		Long: `List the stores declared in the config file with their fields.

Examples:
  vstore stores
  vstore stores --config ./vstore.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			printStores(cmd.OutOrStdout(), cfg)
			return nil
		},
	}
}

func printStores(w io.Writer, cfg *config.Config) {
	names := cfg.StoreNames()
	if len(names) == 0 {
		warn(w, "No stores declared in %s", cfg.Path())
		return
	}
	for _, name := range names {
		st := cfg.Stores[name]
		fmt.Fprintln(w, accentStyle.Render(name))
		for _, field := range sortedKeys(st.Values) {
			info(w, "%-16s %s  %v", field, mutedStyle.Render("value"), st.Values[field])
		}
		for _, action := range sortedKeys(st.Actions) {
			a := st.Actions[action]
			target := a.Key
			if a.Kind == config.ActionHTTP {
				target = a.Method + " " + a.Path
			}
			info(w, "%-16s %s  %s", action, mutedStyle.Render("async/"+a.Kind), target)
		}
		_, isValue := st.Values[setAction]
		_, isAction := st.Actions[setAction]
		if !isValue && !isAction {
			info(w, "%-16s %s", setAction, mutedStyle.Render("sync"))
		}
	}
}

// newLogger builds the slog logger described by cfg.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	var handler slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// newTransports builds the HTTP client and S3 source the config asks for.
// Either may be nil.
func newTransports(cfg *config.Config, logger *slog.Logger) (*transport.Client, *transport.S3Source) {
	var api *transport.Client
	if cfg.Transport.BaseURL != "" {
		opts := []transport.ClientOption{
			transport.WithTimeout(cfg.TimeoutDuration()),
			transport.WithLogger(logger),
		}
		for _, key := range sortedKeys(cfg.Transport.Headers) {
			opts = append(opts, transport.WithHeader(key, cfg.Transport.Headers[key]))
		}
		api = transport.NewClient(cfg.Transport.BaseURL, opts...)
	}

	var objects *transport.S3Source
	if cfg.S3.Bucket != "" {
		client := transport.NewS3Client(transport.S3Config{
			Region:       cfg.S3.Region,
			Endpoint:     cfg.S3.Endpoint,
			UsePathStyle: cfg.S3.UsePathStyle,
		})
		objects = transport.NewS3Source(client, cfg.S3.Bucket, logger)
	}
	return api, objects
}

// buildDeclarations turns the configured stores into declarations.
func buildDeclarations(cfg *config.Config, api *transport.Client, objects *transport.S3Source) (store.Declarations, error) {
	decls := make(store.Declarations, len(cfg.Stores))
	for _, name := range cfg.StoreNames() {
		st := cfg.Stores[name]
		decl := make(store.Declaration, len(st.Values)+len(st.Actions)+1)
		for field, v := range st.Values {
			decl[field] = v
		}
		if _, declared := decl[setAction]; !declared {
			decl[setAction] = store.SyncFunc(setFields)
		}
		for action, a := range st.Actions {
			switch a.Kind {
			case config.ActionHTTP:
				if api == nil {
					return nil, fmt.Errorf("%w: store %q action %q needs transport.baseURL", store.ErrInvalidDeclaration, name, action)
				}
				decl[action] = api.Action(a.Method, a.Path)
			case config.ActionS3:
				if objects == nil {
					return nil, fmt.Errorf("%w: store %q action %q needs s3.bucket", store.ErrInvalidDeclaration, name, action)
				}
				decl[action] = objects.Action(a.Key)
			default:
				return nil, fmt.Errorf("%w: store %q action %q has kind %q", store.ErrInvalidDeclaration, name, action, a.Kind)
			}
		}
		decls[name] = decl
	}
	return decls, nil
}

// setFields merges a map of field values into the state.
func setFields(args ...any) store.Result {
	if len(args) == 0 {
		return nil
	}
	fields, ok := args[0].(map[string]any)
	if !ok || len(fields) == 0 {
		return nil
	}
	return store.Delta(fields)
}

// newRegistry builds a registry for cfg with its observability middleware.
// promReg receives the dispatch metrics when metrics are enabled.
func newRegistry(cfg *config.Config, logger *slog.Logger, promReg prometheus.Registerer) (*store.Registry, error) {
	api, objects := newTransports(cfg, logger)
	decls, err := buildDeclarations(cfg, api, objects)
	if err != nil {
		return nil, err
	}

	mw := []store.Middleware{middleware.Logging(logger)}
	if cfg.Metrics.Enabled {
		mw = append(mw, middleware.Prometheus(
			middleware.WithNamespace(cfg.Metrics.Namespace),
			middleware.WithRegistry(promReg),
		))
	}
	if cfg.Tracing.Enabled {
		mw = append(mw, middleware.OpenTelemetry(middleware.WithTracerName(cfg.Tracing.TracerName)))
	}

	return store.Create(decls,
		store.WithLogger(logger.With("component", "store")),
		store.WithMiddleware(mw...),
	)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
