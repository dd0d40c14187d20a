// Command spoilveil masks spoiler content on a continuously mutating page.
//
// Usage:
//
//	spoilveil -config spoilveil.yaml              # watch the configured site
//	spoilveil -url https://www.youtube.com -keywords "finale,season 4"
//	spoilveil -config spoilveil.yaml -scrub page.html   # offline scrub, result on stdout
//	spoilveil -config spoilveil.yaml -mcp                # also serve MCP tools on stdio
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/hushreel/spoilveil/veil"
)

func main() {
	configPath := flag.String("config", "", "path to spoilveil.yaml config file")
	singleURL := flag.String("url", "", "watch a single URL with default site settings")
	keywords := flag.String("keywords", "", "comma-separated keywords (with -url)")
	scrubPath := flag.String("scrub", "", "scrub an HTML file offline and print the result")
	serveMCP := flag.Bool("mcp", false, "serve MCP tools on stdio")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *singleURL, *keywords, *scrubPath, *serveMCP); err != nil {
		logger.Error("spoilveil: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, singleURL, keywords, scrubPath string, serveMCP bool) error {
	cfg, err := buildConfig(configPath, singleURL, keywords)
	if err != nil {
		return err
	}

	eng, err := veil.New(cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Stop()

	if scrubPath != "" {
		return runScrub(ctx, eng, scrubPath)
	}

	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	if cfg.Admin.Addr != "" {
		startAdmin(ctx, logger, eng, cfg.Admin)
	}

	if serveMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "spoilveil",
			Version: "1.0.0",
		}, nil)
		eng.RegisterMCP(mcpSrv)

		logger.Info("spoilveil: MCP stdio serving")
		if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	}

	<-ctx.Done()
	return nil
}

func buildConfig(configPath, singleURL, keywords string) (*veil.Config, error) {
	if configPath != "" {
		return veil.LoadConfigFile(configPath)
	}

	if singleURL == "" && keywords == "" {
		fmt.Fprintln(os.Stderr, "usage: spoilveil -config <file> | -url <url> -keywords <list>")
		os.Exit(1)
	}

	cfg := &veil.Config{
		Sinks: []veil.SinkConfig{{Type: "stdout"}},
	}
	if singleURL != "" {
		cfg.Site.URL = singleURL
	}
	for _, kw := range strings.Split(keywords, ",") {
		if kw = strings.TrimSpace(kw); kw != "" {
			cfg.Keywords = append(cfg.Keywords, kw)
		}
	}
	return cfg, nil
}

func runScrub(ctx context.Context, eng *veil.Engine, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("scrub: read %s: %w", path, err)
	}

	out, scan, err := eng.ScrubHTML(ctx, string(src))
	if err != nil {
		return fmt.Errorf("scrub: %w", err)
	}

	if _, err := os.Stdout.WriteString(out); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "scrubbed %d items, masked %d\n", scan.Items, scan.Masked)
	return nil
}
