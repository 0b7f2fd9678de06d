// File: cmd/survey_test.go
package cmd

import (
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cafogleman/cb-response-surveyor/internal/config"
	"github.com/cafogleman/cb-response-surveyor/internal/credentials"
)

func writeTestCredentials(t *testing.T, serverURL string) string {
	t.Helper()
	dir := t.TempDir()
	content := "[default]\nurl=" + serverURL + "\ntoken=test-token\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, credentials.ResponseFile), []byte(content), 0o600))
	return dir
}

func testBackendConfig(credDir string) config.BackendConfig {
	return config.BackendConfig{
		CredentialDir:  credDir,
		RequestTimeout: 5 * time.Second,
		PageSize:       10,
		PageRateLimit:  1000,
	}
}

func TestValidateSurveyArgs(t *testing.T) {
	tmp := t.TempDir()
	existing := filepath.Join(tmp, "defs.json")
	require.NoError(t, os.WriteFile(existing, []byte("{}"), 0o644))

	tests := []struct {
		name    string
		sc      config.SurveyConfig
		wantErr string
	}{
		{
			name:    "iocfile requires ioctype",
			sc:      config.SurveyConfig{IOCFile: existing},
			wantErr: "--iocfile requires --ioctype",
		},
		{
			name:    "missing deffile",
			sc:      config.SurveyConfig{DefFile: filepath.Join(tmp, "nope.json")},
			wantErr: "deffile does not exist",
		},
		{
			name:    "missing defdir",
			sc:      config.SurveyConfig{DefDir: filepath.Join(tmp, "nope")},
			wantErr: "defdir does not exist",
		},
		{
			name:    "missing iocfile",
			sc:      config.SurveyConfig{IOCFile: filepath.Join(tmp, "nope.txt"), IOCType: "ipaddr"},
			wantErr: "iocfile does not exist",
		},
		{
			name: "valid deffile",
			sc:   config.SurveyConfig{DefFile: existing},
		},
		{
			name: "valid query",
			sc:   config.SurveyConfig{Query: "process_name:cmd.exe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateSurveyArgs(tt.sc)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// A --hostname flag clashing with the same field in --query must fail before
// the output file is created and before any network call.
func TestRunSurvey_ConflictFailsBeforeOutput(t *testing.T) {
	credDir := writeTestCredentials(t, "https://unreachable.invalid")
	outPrefix := filepath.Join(t.TempDir(), "conflict")

	cfg := &config.Config{
		Backend: testBackendConfig(credDir),
		Survey: config.SurveyConfig{
			Prefix:   outPrefix,
			Profile:  "default",
			Query:    "hostname:host1 process_name:cmd.exe",
			Hostname: "host1",
		},
	}

	err := runSurvey(context.Background(), zap.NewNop(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--hostname")

	_, statErr := os.Stat(outPrefix + "-survey.csv")
	assert.True(t, os.IsNotExist(statErr), "output file must not be created on validation failure")
}

// Full flow against a stub Response server: deffile in, CSV with provenance
// columns out.
func TestRunSurvey_DefinitionFileEndToEnd(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/process", r.URL.Path)
		assert.Equal(t, "(process_name:chrome.exe) start:-1440m", r.URL.Query().Get("q"))

		page := map[string]any{
			"total_results": 1,
			"results": []map[string]string{
				{"hostname": "WS01", "username": "CORP\\User", "path": "c:\\chrome.exe", "cmdline": "chrome.exe"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(page)
	}))
	defer server.Close()

	credDir := writeTestCredentials(t, server.URL)
	defPath := filepath.Join(t.TempDir(), "browsers.json")
	require.NoError(t, os.WriteFile(defPath, []byte(`{"chrome": {"process_name": ["chrome.exe"]}}`), 0o644))
	outPrefix := filepath.Join(t.TempDir(), "e2e")

	cfg := &config.Config{
		Backend: testBackendConfig(credDir),
		Survey: config.SurveyConfig{
			Prefix:  outPrefix,
			Profile: "default",
			DefFile: defPath,
			Days:    1,
		},
	}

	require.NoError(t, runSurvey(context.Background(), zap.NewNop(), cfg))

	f, err := os.Open(outPrefix + "-survey.csv")
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, []string{"endpoint", "username", "process_path", "cmdline", "program", "source"}, rows[0])
	assert.Equal(t, []string{"ws01", "corp\\user", "c:\\chrome.exe", "chrome.exe", "chrome", "browsers"}, rows[1])
}

// Missing credential profile is fatal before any query executes.
func TestRunSurvey_MissingProfile(t *testing.T) {
	credDir := writeTestCredentials(t, "https://cb.example.com")

	cfg := &config.Config{
		Backend: testBackendConfig(credDir),
		Survey: config.SurveyConfig{
			Profile: "nonexistent",
			Query:   "process_name:cmd.exe",
		},
	}

	err := runSurvey(context.Background(), zap.NewNop(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nonexistent")
}
