// Command dcf runs the valuation pipeline from local input files and writes
// the report to stdout or a file.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"dcfengine/pkg/config"
	"dcfengine/pkg/core/pipeline"
	"dcfengine/pkg/ingest"
	"dcfengine/pkg/report"
)

var version = "dev"

type runFlags struct {
	statements string
	market     string
	peers      string
	configPath string
	out        string
	format     string
	timeout    time.Duration
	verbose    bool
}

func main() {
	// Optional; DCF_* variables may come from the shell instead.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dcf",
		Short:         "DCF equity valuation engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newRunCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a full valuation: normalize, project, value, audit, report",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValuation(cmd.Context(), f)
		},
	}
	cmd.Flags().StringVarP(&f.statements, "statements", "s", "", "historical statements file (hjson)")
	cmd.Flags().StringVarP(&f.market, "market", "m", "", "market data file (hjson)")
	cmd.Flags().StringVar(&f.peers, "peers", "", "peer comp table (html, optional)")
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "run configuration file (yaml, optional)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&f.format, "format", "markdown", "output format: markdown, html, json")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "run timeout")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")
	_ = cmd.MarkFlagRequired("statements")
	_ = cmd.MarkFlagRequired("market")
	return cmd
}

func runValuation(ctx context.Context, f runFlags) error {
	log := newLogger(f.verbose)

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}

	company, raw, err := ingest.LoadStatements(f.statements)
	if err != nil {
		return err
	}
	if cfg.Company != "" {
		company = cfg.Company
	}

	market, err := ingest.LoadMarket(f.market)
	if err != nil {
		return err
	}
	if f.peers != "" {
		peers, err := ingest.LoadPeersHTML(f.peers)
		if err != nil {
			return err
		}
		market.Peers = append(market.Peers, peers...)
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	run, err := pipeline.New(cfg, log).Execute(ctx, pipeline.Input{
		Company: company,
		Raw:     raw,
		Market:  market,
	})
	if err != nil {
		return err
	}

	out, err := renderRun(run, f.format)
	if err != nil {
		return err
	}
	if f.out == "" {
		_, err = os.Stdout.Write(out)
		return err
	}
	if err := os.WriteFile(f.out, out, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", f.out, err)
	}
	log.Info().Str("path", f.out).Str("format", f.format).Msg("report written")
	return nil
}

func renderRun(run *pipeline.Run, format string) ([]byte, error) {
	switch format {
	case "markdown", "md":
		return []byte(report.RenderMarkdown(run)), nil
	case "html":
		return report.RenderHTML(run)
	case "json":
		return json.MarshalIndent(run, "", "  ")
	default:
		return nil, fmt.Errorf("unknown format %q (want markdown, html, or json)", format)
	}
}

func newLogger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()
}
