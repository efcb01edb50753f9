package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	"github.com/vango-dev/vstore/internal/config"
	"github.com/vango-dev/vstore/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬  ┬┌─┐┌┬┐┌─┐┬─┐┌─┐
  └┐┌┘└─┐ │ │ │├┬┘├┤
   └┘ └─┘ ┴ └─┘┴└─└─┘
`

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#98C379")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#E5C07B"))
	accentStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#61AFEF"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5C6370"))
)

func main() {
	root, opts := newRootCmd()
	if err := root.Execute(); err != nil {
		printError(os.Stderr, err, opts)
		os.Exit(1)
	}
}

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	output     string
	noColor    bool
}

// printError writes err in the format chosen by --output.
func printError(w io.Writer, err error, opts *globalOptions) {
	format, ferr := errors.ParseOutputFormat(opts.output)
	if ferr != nil {
		format = errors.OutputText
	}
	errors.FprintAs(w, errors.FromError(err, "V401"), format)
}

func newRootCmd() (*cobra.Command, *globalOptions) {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "vstore",
		Short: "Named stores with async action slots",
		Long: `vstore runs declarative stores and serves them for inspection.

Stores hold plain values and async actions whose results land in
data/loading/error slots. Actions are backed by an HTTP API or an
S3 bucket. Features include:

  • Devtools HTTP API with a websocket snapshot stream
  • Prometheus metrics and OpenTelemetry tracing per dispatch
  • One-shot requests through the same error classification`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if _, err := errors.ParseOutputFormat(opts.output); err != nil {
				return err
			}
			if opts.noColor {
				errors.DisableColors()
				lipgloss.SetColorProfile(termenv.Ascii)
			}
			return nil
		},
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to vstore.json or vstore.toml (default: search upwards)")
	flags.StringVarP(&opts.output, "output", "o", string(errors.OutputText), "Error output format: text, compact or json")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable styled output")

	load := func() (*config.Config, error) {
		return loadConfig(opts.configPath)
	}

	rootCmd.AddCommand(
		initCmd(),
		serveCmd(load),
		fetchCmd(load),
		storesCmd(load),
		codesCmd(),
		versionCmd(),
	)
	return rootCmd, opts
}

// loadConfig reads the config at path, or searches from the working
// directory when path is empty.
func loadConfig(path string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// printBanner prints the vstore banner.
func printBanner(w io.Writer) {
	fmt.Fprint(w, accentStyle.Render(banner))
	fmt.Fprintln(w)
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", successStyle.Render("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", warnStyle.Render("⚠"), fmt.Sprintf(format, args...))
}
