// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/quarry"
	"github.com/poiesic/quarry/config"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/orchestrator"
	"github.com/poiesic/quarry/reembed"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "quarry",
		Usage: "Iterative web research with retrieval augmented answers",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
				EnvVars: []string{"QUARRY_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides store.path)",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address, e.g. :2112",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "ask",
				Usage:     "Research a question on the web and answer it",
				ArgsUsage: "<question>",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-iterations",
						Usage: "Override session.max_iterations",
					},
					&cli.BoolFlag{
						Name:  "sources",
						Usage: "Print every source the session discovered",
					},
				},
			},
			{
				Name:      "retrieve",
				Usage:     "Search previously stored evidence",
				ArgsUsage: "<query>",
				Action:    retrieveCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "k",
						Aliases: []string{"n"},
						Usage:   "Number of documents to return",
						Value:   core.DefaultResultCount,
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed all stored chunks with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: reembed.DefaultBatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func setup(c *cli.Context) error {
	if err := setupLogger(c); err != nil {
		return err
	}
	if addr := c.String("metrics-addr"); addr != "" {
		serveMetrics(addr)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "err", err)
		}
	}()
}

// loadConfig reads --config when given and applies command line overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return nil, err
		}
	}
	if db := c.String("db"); db != "" {
		cfg.Store.Path = db
		cfg.Store.InMemory = false
	}
	return cfg, nil
}

func openEngine(cfg *config.Config) (*quarry.Engine, error) {
	engine, err := quarry.NewEngine(cfg, quarry.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open engine: %w", err)
	}
	return engine, nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return fmt.Errorf("a question is required")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if n := c.Int("max-iterations"); n > 0 {
		cfg.Session.MaxIterations = n
	}

	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := engine.Ask(ctx, question, nil)
	if session != nil {
		printSession(c.App.Writer, session, c.Bool("sources"))
	}
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}
	return nil
}

func printSession(w io.Writer, s *orchestrator.Session, sources bool) {
	fmt.Fprintln(w, s.Answer)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status: %s after %d rounds (crawl depth %d, %d pages visited)\n",
		s.Status, s.Iteration, s.CrawlDepth, s.VisitedCount())

	if !sources {
		return
	}
	fmt.Fprintln(w, "Sources:")
	for _, rec := range s.Sources {
		state := "not fetched"
		switch {
		case rec.Persisted:
			state = "persisted"
		case rec.Fetched:
			state = "fetched"
		case s.Visited(rec.URL):
			state = "failed"
		}
		fmt.Fprintf(w, "  %s [%s, reliability %.2f]\n", rec.URL, state, rec.Reliability)
	}
}

func retrieveCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}
	k := c.Int("k")
	if k <= 0 {
		return fmt.Errorf("k must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	docs, err := engine.Retrieve(c.Context, query, k)
	if err != nil {
		return fmt.Errorf("retrieval failed: %w", err)
	}
	if len(docs) == 0 {
		fmt.Fprintln(c.App.Writer, "No documents stored")
		return nil
	}
	for i, doc := range docs {
		fmt.Fprintf(c.App.Writer, "%d. %.3f %s\n", i+1, doc.Score, doc.Metadata[core.MetaLink])
		fmt.Fprintf(c.App.Writer, "   %s\n", doc.Text)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	engine, err := openEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	fmt.Fprintf(os.Stderr, "Database: %s\n", cfg.Store.Path)
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(os.Stderr)

	if _, err := engine.Reembed(c.Context, reembedConfig, os.Stderr); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}
