package main

import (
	"context"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/use-agent/namecrawl/config"
	"github.com/use-agent/namecrawl/datasets"
	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/store"
)

func setup(t *testing.T) (*datasets.Registry, *store.Store) {
	t.Helper()
	st, err := store.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	reg, err := datasets.NewRegistry(config.Load(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return reg, st
}

func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]any) (string, bool) {
	t.Helper()
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	res, err := h(context.Background(), req)
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if len(res.Content) == 0 {
		t.Fatal("empty result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T", res.Content[0])
	}
	return text.Text, res.IsError
}

func TestListDatasets(t *testing.T) {
	reg, st := setup(t)
	if err := st.WriteJSON("surnames.json", []models.Record{{"Bakker", "1", "bakker"}}); err != nil {
		t.Fatal(err)
	}

	text, isErr := call(t, handleListDatasets(reg, st), nil)
	if isErr {
		t.Fatal(text)
	}
	if !strings.Contains(text, "first_names") || !strings.Contains(text, "not merged yet") {
		t.Errorf("unexpected listing:\n%s", text)
	}
	if !strings.Contains(text, "surnames") || !strings.Contains(text, "available") {
		t.Errorf("unexpected listing:\n%s", text)
	}
}

func TestSearchNames(t *testing.T) {
	reg, st := setup(t)
	rows := []models.Record{{"Jan", "10", "3"}, {"Janneke", "4", "1"}, {"Piet", "8", "2"}}
	if err := st.WriteJSON("first_names.json", rows); err != nil {
		t.Fatal(err)
	}

	text, isErr := call(t, handleSearchNames(reg, st), map[string]any{"dataset": "first_names", "prefix": "jan", "limit": 1})
	if isErr {
		t.Fatal(text)
	}
	if !strings.HasPrefix(text, "1 of 2 matching records") {
		t.Errorf("unexpected header:\n%s", text)
	}

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing dataset", map[string]any{}, "dataset is required"},
		{"unknown dataset", map[string]any{"dataset": "nicknames"}, "unknown dataset"},
		{"not merged", map[string]any{"dataset": "surnames"}, "has not been crawled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := call(t, handleSearchNames(reg, st), tt.args)
			if !isErr || !strings.Contains(text, tt.want) {
				t.Errorf("got (%q, %v), want error containing %q", text, isErr, tt.want)
			}
		})
	}
}

func TestNewServer(t *testing.T) {
	reg, st := setup(t)
	if newServer(reg, st) == nil {
		t.Fatal("nil server")
	}
}
