package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"vaultingest/internal/config"
	"vaultingest/internal/session"
	"vaultingest/internal/testsupport"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	endpoint   *testsupport.Endpoint
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)

	endpoint := testsupport.NewEndpoint(t)
	embedURL := newEmbeddingStub(t)

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, base, endpoint.URL(), embedURL)

	return &cliTestEnv{
		baseDir:    base,
		configPath: configPath,
		endpoint:   endpoint,
	}
}

func writeTestConfig(t *testing.T, path, base, endpointURL, embedURL string) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[endpoint]
base_url = %q
api_token = "test-token"

[upload]
chunk_size_mib = 1
large_file_threshold_mib = 1
allowed_extensions = [".txt", ".bin"]

[embedding]
base_url = %q
api_key = "test-key"

[logging]
format = "console"
level = "info"
`,
		filepath.Join(base, "data"),
		filepath.Join(base, "logs"),
		endpointURL,
		embedURL,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func newEmbeddingStub(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float64{0.1, 0.2}, "index": 0}},
		})
	}))
	t.Cleanup(server.Close)
	return server.URL
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	flags := []string{}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// withStore opens the session store for seeding and closes it again so
// a subsequent CLI invocation can take the exclusive lock.
func (env *cliTestEnv) withStore(t *testing.T, fn func(*session.Store)) {
	t.Helper()
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	defer store.Close()
	fn(store)
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q, got:\n%s", needle, haystack)
	}
}
