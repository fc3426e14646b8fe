package main

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/use-agent/namecrawl/models"
	"github.com/use-agent/namecrawl/store"
)

func resetFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		for _, fs := range []*pflag.FlagSet{c.Flags(), c.PersistentFlags()} {
			fs.VisitAll(func(f *pflag.Flag) {
				_ = f.Value.Set(f.DefValue)
				f.Changed = false
			})
		}
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd, crawlCmd, mergeCmd, datasetsCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// namesServer serves a first-names style listing. Letter "a" has two
// pages, "b" has one page and then answers 500 for page 2.
func namesServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string][]string{
		"/pagina1/begintmet/a": {"Anna", "Aad"},
		"/pagina2/begintmet/a": {"Abe"},
		"/pagina1/begintmet/b": {"Bas"},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pagina2/begintmet/b" {
			http.Error(w, "server error", http.StatusInternalServerError)
			return
		}
		var b strings.Builder
		b.WriteString("<table><tr><td>Naam</td><td>Eerste</td><td>Tweede</td></tr>")
		for _, n := range pages[r.URL.Path] {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>1</td><td>2</td></tr>", n)
		}
		b.WriteString("</table>")
		w.Write([]byte(b.String()))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setCrawlEnv(t *testing.T, srv *httptest.Server) {
	t.Helper()
	t.Setenv("NAMECRAWL_FIRST_NAMES_URL", srv.URL+"/pagina{page}/begintmet/{key}")
	t.Setenv("NAMECRAWL_RATE_INTERVAL", "0s")
	t.Setenv("NAMECRAWL_PAGE_ATTEMPTS", "1")
	t.Setenv("NAMECRAWL_CACHE_MAX_ENTRIES", "0")
	t.Setenv("NAMECRAWL_LOG_LEVEL", "error")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"crawl", "merge", "datasets"} {
		if !names[want] {
			t.Errorf("subcommand %q not registered", want)
		}
	}
}

func TestCrawlCommand_Flags(t *testing.T) {
	for _, name := range []string{"letters", "no-merge", "strict", "status-addr", "engine", "rate-interval"} {
		if crawlCmd.Flags().Lookup(name) == nil {
			t.Errorf("crawl command should have --%s", name)
		}
	}
	if rootCmd.PersistentFlags().Lookup("out-dir") == nil {
		t.Error("root should have --out-dir")
	}
}

func TestCrawl_EndToEnd(t *testing.T) {
	srv := namesServer(t)
	setCrawlEnv(t, srv)
	dir := t.TempDir()

	if _, err := execute(t, "crawl", "first_names", "--letters", "a", "--out-dir", dir); err != nil {
		t.Fatalf("crawl: %v", err)
	}

	st, _ := store.New(dir)
	rows, err := st.ReadRecords("first_names.json")
	if err != nil {
		t.Fatalf("merged dataset: %v", err)
	}
	want := []string{"Aad", "Abe", "Anna"}
	if len(rows) != len(want) {
		t.Fatalf("rows = %v", rows)
	}
	for i, w := range want {
		if rows[i][0] != w {
			t.Errorf("row %d = %v, want %s first", i, rows[i], w)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "a.json")); !errors.Is(err, os.ErrNotExist) {
		t.Error("snapshot should be removed after merge")
	}
}

func TestCrawl_StrictExitCode(t *testing.T) {
	srv := namesServer(t)
	setCrawlEnv(t, srv)
	dir := t.TempDir()

	_, err := execute(t, "crawl", "first_names", "--letters", "b", "--strict", "--out-dir", dir)
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Fatalf("expected exit code 2, got %v", err)
	}

	// The abandoned letter's first page still made it into the dataset.
	st, _ := store.New(dir)
	rows, err := st.ReadRecords("first_names.json")
	if err != nil || len(rows) != 1 || rows[0][0] != "Bas" {
		t.Errorf("rows = %v, err = %v", rows, err)
	}

	// Without --strict the same outcome is not an error.
	if _, err := execute(t, "crawl", "first_names", "--letters", "b", "--out-dir", dir); err != nil {
		t.Errorf("non-strict crawl: %v", err)
	}
}

func TestCrawl_NoMergeThenMerge(t *testing.T) {
	srv := namesServer(t)
	setCrawlEnv(t, srv)
	dir := t.TempDir()

	if _, err := execute(t, "crawl", "first_names", "--letters", "a", "--no-merge", "--out-dir", dir); err != nil {
		t.Fatal(err)
	}
	st, _ := store.New(dir)
	if ok, _ := st.Exists("first_names.json"); ok {
		t.Fatal("--no-merge must not write the dataset")
	}
	if ok, _ := st.Exists("a.json"); !ok {
		t.Fatal("snapshot should remain")
	}

	if _, err := execute(t, "merge", "first_names", "--out-dir", dir); err != nil {
		t.Fatal(err)
	}
	rows, err := st.ReadRecords("first_names.json")
	if err != nil || len(rows) != 3 {
		t.Errorf("rows = %v, err = %v", rows, err)
	}

	// A second merge finds nothing and leaves the dataset alone.
	if _, err := execute(t, "merge", "first_names", "--out-dir", dir); err != nil {
		t.Fatal(err)
	}
	if rows, _ := st.ReadRecords("first_names.json"); len(rows) != 3 {
		t.Errorf("dataset changed by empty merge: %v", rows)
	}
}

func TestCrawl_InvalidInput(t *testing.T) {
	t.Setenv("NAMECRAWL_LOG_LEVEL", "error")
	dir := t.TempDir()

	if _, err := execute(t, "crawl", "--letters", "a1", "--out-dir", dir); !models.IsCode(err, models.ErrCodeInvalidInput) {
		t.Errorf("bad letters: %v", err)
	}
	if _, err := execute(t, "crawl", "nicknames", "--out-dir", dir); !models.IsCode(err, models.ErrCodeInvalidInput) {
		t.Errorf("unknown dataset: %v", err)
	}
}

func TestDatasetsCommand(t *testing.T) {
	t.Setenv("NAMECRAWL_LOG_LEVEL", "error")
	out, err := execute(t, "datasets", "--out-dir", t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"first_names", "surnames", "sequential", "discovery"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
