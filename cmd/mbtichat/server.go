package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/20223096/mbti-app/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session over HTTP and MCP (foreground)",
	Long: `Serve the session over HTTP and MCP (foreground).

The HTTP API listens on 127.0.0.1:<server.port>. Unless --no-mcp is given,
an MCP server is also attached to stdin/stdout.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		noMCP, _ := cmd.Flags().GetBool("no-mcp")
		return runServer(cmd, noMCP)
	},
}

func init() {
	serveCmd.Flags().Bool("no-mcp", false, "do not attach the MCP server to stdio")
	addEphemeralFlag(serveCmd)
}

func runServer(cmd *cobra.Command, noMCP bool) error {
	fmt.Fprintf(os.Stderr, "mbtichat version %s\n", version)

	a, err := openSession(cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			printWarning("closing storage: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := api.NewSessionHandler(api.SessionDeps{
		Session:   a.pipe,
		Exchanges: a.exchanges(),
		Metrics:   promhttp.Handler(),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", a.cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "mbtichat listening on %s (analysis service %s)\n", addr, a.cfg.API.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	if !noMCP {
		mcpSrv := api.NewMCPServer(api.MCPDeps{
			Session:   a.pipe,
			Exchanges: a.exchanges(),
			Version:   version,
		})
		g.Go(func() error {
			slog.Info("MCP server started (stdio transport)")
			err := server.NewStdioServer(mcpSrv).Listen(gctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				return fmt.Errorf("MCP stdio server: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown once a signal arrives or either server fails.
	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
