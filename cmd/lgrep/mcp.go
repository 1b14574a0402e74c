package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/lgrep/internal/debug"
	"github.com/standardbeagle/lgrep/internal/mcp"
)

// mcpCommand serves the search engine over stdio using the Model
// Context Protocol. Debug output is silenced first; stdout belongs to
// the protocol.
func mcpCommand(c *cli.Context) error {
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return debug.Fatal("failed to load config: %v", err)
	}

	server, err := mcp.NewServer(cfg)
	if err != nil {
		return debug.Fatal("failed to create MCP server: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return finishMCP(server, err)
	case sig := <-sigChan:
		debug.LogMCP("received %v, shutting down\n", sig)
		cancel()

		// Give the transport a moment to notice the cancellation. If it
		// is blocked reading stdin, closing stdin breaks the loop.
		shutdownTimer := time.NewTimer(2 * time.Second)
		defer shutdownTimer.Stop()
		select {
		case err := <-errChan:
			return finishMCP(server, err)
		case <-shutdownTimer.C:
			os.Stdin.Close()
		}

		forceTimer := time.NewTimer(500 * time.Millisecond)
		defer forceTimer.Stop()
		select {
		case err := <-errChan:
			return finishMCP(server, err)
		case <-forceTimer.C:
			debug.LogMCP("forced shutdown timeout exceeded\n")
			return finishMCP(server, nil)
		}
	}
}

// finishMCP releases server resources and normalizes the exit error.
// Cancellation and a closed stdin are the expected ways for a stdio
// session to end.
func finishMCP(server *mcp.Server, err error) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		debug.LogMCP("shutdown: %v\n", shutdownErr)
	}

	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("MCP server error: %w", err)
}
