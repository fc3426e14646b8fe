package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/namecrawl/config"
	"github.com/use-agent/namecrawl/datasets"
	"github.com/use-agent/namecrawl/store"
)

const maxSearchLimit = 500

func main() {
	cfg := config.Load()

	// stdout carries the MCP protocol; logs go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	st, err := store.New(cfg.Crawl.OutDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// Serving merged datasets needs no fetcher.
	reg, err := datasets.NewRegistry(cfg, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if err := server.ServeStdio(newServer(reg, st)); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func newServer(reg *datasets.Registry, st *store.Store) *server.MCPServer {
	s := server.NewMCPServer(
		"namecrawl",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	listTool := mcp.NewTool("list_datasets",
		mcp.WithDescription("List the Dutch name datasets, their record fields, and whether a merged copy is available to search."),
	)
	s.AddTool(listTool, handleListDatasets(reg, st))

	searchTool := mcp.NewTool("search_names",
		mcp.WithDescription("Search a merged name dataset by name prefix (case-insensitive). Returns matching records as JSON arrays of fields, plus the total match count."),
		mcp.WithString("dataset",
			mcp.Required(),
			mcp.Description("Dataset to search"),
			mcp.Enum(reg.Names()...),
		),
		mcp.WithString("prefix",
			mcp.Description("Name prefix to match, e.g. 'van' or 'Jan'. Empty matches every record."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of records to return (default: 50, max: 500)"),
		),
	)
	s.AddTool(searchTool, handleSearchNames(reg, st))

	return s
}

func handleListDatasets(reg *datasets.Registry, st *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var b strings.Builder
		for _, name := range reg.Names() {
			d, err := reg.Get(name)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			merged, err := st.Exists(d.OutputName())
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			status := "not merged yet"
			if merged {
				status = "available"
			}
			fmt.Fprintf(&b, "%s: %s\n  fields: %s\n  status: %s\n",
				d.Name, d.Description, strings.Join(d.Fields, ", "), status)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleSearchNames(reg *datasets.Registry, st *store.Store) server.ToolHandlerFunc {
	return func(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("dataset")
		if err != nil {
			return mcp.NewToolResultError("dataset is required"), nil
		}
		d, err := reg.Get(name)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		prefix := request.GetString("prefix", "")
		limit := request.GetInt("limit", 50)
		if limit < 1 {
			limit = 50
		}
		limit = min(limit, maxSearchLimit)

		res, err := datasets.Search(st, d, prefix, limit)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return mcp.NewToolResultError(fmt.Sprintf("dataset %s has not been crawled and merged yet", d.Name)), nil
			}
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
		}

		header := fmt.Sprintf("%d of %d matching records in %s", len(res.Records), res.Total, d.Name)
		return mcp.NewToolResultText(header + "\n\n" + string(out)), nil
	}
}
