package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/claude/studiotv/internal/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	serverURL := flag.String("server", "", "StudioTV server URL (e.g. https://studiotv.tail1234.ts.net)")
	apiKey := flag.String("api-key", "", "API key (defaults to STUDIOTV_AUTH_API_KEY)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("studiotv-mcp", Version)
		return
	}

	// MCP speaks JSON-RPC on stdout; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *serverURL == "" {
		*serverURL = os.Getenv("STUDIOTV_URL")
	}
	if *serverURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: studiotv-mcp -server <URL> [-api-key KEY]\n\n")
		flag.PrintDefaults()
		os.Exit(1)
	}
	if *apiKey == "" {
		*apiKey = os.Getenv("STUDIOTV_AUTH_API_KEY")
	}

	ds := mcp.NewHTTPClient(strings.TrimRight(*serverURL, "/"), *apiKey)
	srv := mcp.New(ds, Version, log)

	log.Info("studiotv-mcp serving stdio", "server", *serverURL)
	if err := server.ServeStdio(srv); err != nil {
		log.Error("mcp server error", "error", err)
		os.Exit(1)
	}
}
