package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkwatch/parkwatch/internal/export"
	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

// runCommand executes the CLI with the given arguments and captures stdout.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func newRegionServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/v1/region/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"count":3,"next":null,"previous":null,"results":[
				{"id":"c","name":"Töölö","capacity_estimate":50,"geometry":null}]}`)
			return
		}
		// Relative next URL, resolved against this page.
		fmt.Fprint(w, `{"count":3,"next":"/monitoring/v1/region/?page=2","previous":null,"results":[
			{"id":"a","name":"Kamppi","capacity_estimate":100,"geometry":{"type":"Point","coordinates":[24.93,60.17]}},
			{"id":"b","name":"Kallio","capacity_estimate":80,"geometry":null}]}`)
	})
	return httptest.NewServer(mux)
}

func TestRegionsCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newRegionServer(t)
	defer srv.Close()

	out, err := runCommand(t, "regions", "--api-url", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "a\tKamppi\t100")
	assert.Contains(t, out, "b\tKallio\t80")
	assert.Contains(t, out, "c\tTöölö\t50")
	assert.Contains(t, out, "Total: 3")
}

func TestRegionsCommand_JSON(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newRegionServer(t)
	defer srv.Close()

	out, err := runCommand(t, "regions", "--json", "--api-url", srv.URL)
	require.NoError(t, err)

	var regions []parkkihubi.Region
	require.NoError(t, json.Unmarshal([]byte(out), &regions))
	require.Len(t, regions, 3)
	assert.Equal(t, "Kamppi", regions[0].Name)
	assert.Equal(t, "c", regions[2].ID)
}

func TestFiltersCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/v1/export/filters/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count":1,"next":null,"previous":null,"results":[
			{"operators":[{"id":"op1","name":"City of Helsinki"}],
			 "payment_zones":[{"code":"1","name":"Zone 1"},{"code":"2","name":"Zone 2"}]}]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out, err := runCommand(t, "filters", "--api-url", srv.URL)
	require.NoError(t, err)

	assert.Contains(t, out, "Operators:")
	assert.Contains(t, out, "op1\tCity of Helsinki")
	assert.Contains(t, out, "Payment zones:")
	assert.Contains(t, out, "1\tZone 1")
	assert.Contains(t, out, "2\tZone 2")
}

func TestExportCommand(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var gotBody map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/v1/export/filters/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count":1,"next":null,"previous":null,"results":[
			{"operators":[{"id":"op1","name":"City of Helsinki"}],"payment_zones":[]}]}`)
	})
	mux.HandleFunc("/monitoring/v1/export/download/", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set(parkkihubi.SuggestedFilenameHeader, "parkings.csv")
		w.Header().Set("Content-Type", "text/csv")
		fmt.Fprint(w, "id,zone\np1,1\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	outDir := t.TempDir()
	out, err := runCommand(t, "export",
		"--api-url", srv.URL,
		"--from", "2024-01-01",
		"--to", "2024-02-01 12:30",
		"--operator", "op1",
		"--checked",
		"--out", outDir)
	require.NoError(t, err)

	assert.Equal(t, "01.01.2024 00.00", gotBody["time_start"])
	assert.Equal(t, "01.02.2024 12.30", gotBody["time_end"])
	assert.Equal(t, true, gotBody["parking_check"])
	assert.Contains(t, gotBody, "operators")
	assert.NotContains(t, gotBody, "payment_zones")

	savedPath := filepath.Join(outDir, "parkings.csv")
	assert.Contains(t, out, "Saved "+savedPath)

	data, err := os.ReadFile(savedPath)
	require.NoError(t, err)
	assert.Equal(t, "id,zone\np1,1\n", string(data))
}

func TestExportCommand_InvalidTime(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := runCommand(t, "export",
		"--from", "yesterday",
		"--to", "2024-02-01",
		"--out", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse")
}

func TestExportCommand_EndBeforeStart(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	_, err := runCommand(t, "export",
		"--from", "2024-02-01",
		"--to", "2024-01-01",
		"--out", t.TempDir())
	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrInvalidSelection)
}

func TestAPIURLFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newRegionServer(t)
	defer srv.Close()

	t.Setenv("PARKWATCH_API_URL", srv.URL)

	out, err := runCommand(t, "regions")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 3")
}

func TestAPIURLFlagBeatsEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	srv := newRegionServer(t)
	defer srv.Close()

	// The env var points nowhere; the flag must win.
	t.Setenv("PARKWATCH_API_URL", "http://127.0.0.1:1")

	out, err := runCommand(t, "regions", "--api-url", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 3")
}

func TestAPIURLFromConfigFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	srv := newRegionServer(t)
	defer srv.Close()

	cfg := fmt.Sprintf("api_url: %s\n", srv.URL)
	require.NoError(t, os.WriteFile(filepath.Join(home, ".parkwatch.yaml"), []byte(cfg), 0o600))

	out, err := runCommand(t, "regions")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 3")
}

func TestAPITokenIsSent(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/v1/region/", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"count":0,"next":null,"previous":null,"results":[]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := runCommand(t, "regions", "--api-url", srv.URL, "--api-token", "sekret")
	require.NoError(t, err)
	assert.Equal(t, "Token sekret", gotAuth)
}
