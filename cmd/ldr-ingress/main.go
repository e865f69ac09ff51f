package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/uchicago-library/ldr-ingress/internal/checksum"
	"github.com/uchicago-library/ldr-ingress/internal/clients"
	"github.com/uchicago-library/ldr-ingress/internal/config"
	"github.com/uchicago-library/ldr-ingress/internal/handlers"
	"github.com/uchicago-library/ldr-ingress/internal/logger"
	"github.com/uchicago-library/ldr-ingress/internal/metrics"
	"github.com/uchicago-library/ldr-ingress/internal/workflows"
	"github.com/uchicago-library/ldr-ingress/internal/workspace"
	"github.com/uchicago-library/ldr-ingress/pkg/client"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "ldr-ingress",
		Usage: "Ingest files into the digital repository",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error, critical)",
				Value:   "warn",
				EnvVars: []string{"VERBOSITY"},
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log output format (text, json)",
				Value:   "text",
				EnvVars: []string{"INGRESS_LOG_FORMAT"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the ingest HTTP service",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to a YAML config file",
						EnvVars: []string{config.ConfigFileEnv},
					},
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address, overrides the config file",
					},
				},
			},
			{
				Name:      "upload",
				Usage:     "Upload a file to a running ingest service",
				ArgsUsage: "FILE",
				Action:    uploadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "server",
						Usage: "Base URL of the ingest service",
						Value: "http://localhost:8080",
					},
					&cli.StringFlag{
						Name:     "accession",
						Aliases:  []string{"a"},
						Usage:    `Accession identifier, or "new" to mint one`,
						Required: true,
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Display name sent with the file (defaults to the file name)",
					},
					&cli.StringFlag{
						Name:  "md5",
						Usage: "Declared MD5 checksum (computed when omitted)",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Overall request timeout",
						Value: 30 * time.Minute,
					},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	format := c.String("log-format")
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format %q: must be text or json", format)
	}
	logger.Setup(c.String("log-level"), format)
	return nil
}

func serveCommand(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	// Flags win over the config file for logging.
	if !c.IsSet("log-level") || !c.IsSet("log-format") {
		level, format := cfg.Logging.Level, cfg.Logging.Format
		if c.IsSet("log-level") {
			level = c.String("log-level")
		}
		if c.IsSet("log-format") {
			format = c.String("log-format")
		}
		logger.Setup(level, format)
	}

	server, err := newServer(cfg, prometheus.NewRegistry())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("ingest service listening",
			"addr", cfg.Server.Addr,
			"premis", cfg.Services.PremisEndpoint,
			"materialsuite", cfg.Services.MaterialsuiteEndpoint,
			"accs", cfg.Services.AccsEndpoint)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("server stopped")
	return nil
}

// newServer wires the pipeline stages, handlers and metrics into an HTTP server.
func newServer(cfg *config.Config, reg *prometheus.Registry) (*http.Server, error) {
	m := metrics.New(reg)

	clientOpts := []clients.Option{
		clients.WithTimeout(cfg.Services.Timeout),
		clients.WithObserver(m),
	}
	accessions := clients.NewAccessionClient(cfg.Services.AccsEndpoint, clientOpts...)

	workspaces, err := workspace.NewManager(cfg.Workspace.TempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare workspace root: %w", err)
	}

	workflow, err := workflows.NewIngestWorkflow(workspaces, workflows.Stages{
		Verifier:  checksum.NewVerifier(),
		Describer: clients.NewDescriptionClient(cfg.Services.PremisEndpoint, clientOpts...),
		Storer:    clients.NewStorageClient(cfg.Services.MaterialsuiteEndpoint, clientOpts...),
		Resolver:  accessions,
		Registrar: accessions,
	}, workflows.WithMetrics(m))
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest workflow: %w", err)
	}

	mux := http.NewServeMux()
	handlers.NewIngestHandler(workflow, handlers.Limits{
		MaxUploadBytes:  cfg.Server.MaxUploadBytes,
		MultipartMemory: cfg.Server.MultipartMemory,
		RequestTimeout:  cfg.Server.RequestTimeout,
	}).Routes(mux)
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, m.Handler())
	}

	return &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           m.Middleware(mux),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}, nil
}

func uploadCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("a file to upload is required")
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	resp, err := client.New(c.String("server")).Ingest(ctx, client.UploadRequest{
		Path:        path,
		Name:        c.String("name"),
		AccessionID: c.String("accession"),
		MD5:         c.String("md5"),
	})
	if resp != nil {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(resp); encErr != nil {
			return fmt.Errorf("failed to print response: %w", encErr)
		}
	}
	return err
}
