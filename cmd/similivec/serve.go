package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	mcpserver "github.com/similivec/similivec/internal/mcp"
	"github.com/similivec/similivec/internal/server"
)

var (
	serveAddr  string
	serveMCP   bool
	serveWatch bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Index the stored documents and the corpus directory, then serve the
HTTP API until interrupted.

Examples:
  similivec serve --corpus ./docs --watch
  similivec serve -c similivec.yaml --mcp`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "Also serve MCP tools over stdin/stdout")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Ingest corpus files as they change")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if cmd.Flags().Changed("mcp") {
		cfg.MCP.Enabled = serveMCP
	}
	if cmd.Flags().Changed("watch") {
		cfg.Corpus.Watch = serveWatch
	}
	if cfg.Corpus.Watch && cfg.Corpus.Dir == "" {
		return errors.New("--watch needs a corpus directory")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.svc.IndexAll(ctx); err != nil {
		return fmt.Errorf("index stored documents: %w", err)
	}

	var opts []server.Option
	opts = append(opts, server.WithKnnK(cfg.Projection.KnnK))
	if cfg.Corpus.Dir != "" {
		syncer := server.NewCorpusSyncer(cfg.Corpus, a.svc)
		if err := syncer.Synchronize(ctx); err != nil {
			return fmt.Errorf("ingest corpus: %w", err)
		}
		if cfg.Corpus.Watch {
			if err := syncer.Start(ctx); err != nil {
				return fmt.Errorf("watch corpus: %w", err)
			}
			defer syncer.Stop()
		}
		opts = append(opts, server.WithCorpus(syncer))
	}

	srv := server.NewServer(a.svc, cfg.Server, opts...)
	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Run()
	}()

	if cfg.MCP.Enabled {
		go func() {
			slog.Info("serving MCP over stdio")
			if err := mcpserver.NewMCPServer(a.svc).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				errCh <- fmt.Errorf("mcp server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	return srv.Shutdown(context.Background())
}
