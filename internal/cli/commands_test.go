package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/sensorthings/internal/backend"
	"github.com/tansive/sensorthings/internal/config"
)

type fakeSTA struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeSTA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet:
		w.Write([]byte(`{"value":[{"@iot.id":1},{"@iot.id":2}]}`))
	case r.URL.Path == "/v1.1/Things(2)":
		w.WriteHeader(http.StatusInternalServerError)
	case r.Method == http.MethodPost:
		w.WriteHeader(http.StatusCreated)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (f *fakeSTA) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

func setupCLI(t *testing.T) (*fakeSTA, string) {
	t.Helper()
	fake := &fakeSTA{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	configFile := filepath.Join(dir, "stabackend.conf")
	content := fmt.Sprintf("format_version = \"0.1.0\"\nlog_level = \"error\"\n\n[backend]\ntype = \"SensorThings\"\nurl = %q\n", srv.URL+"/v1.1")
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0600))
	return fake, configFile
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestDeleteItemCommand(t *testing.T) {
	fake, configFile := setupCLI(t)

	out, err := runCLI(t, "--config", configFile, "delete-item", "iot.demo.Things", "42")
	require.NoError(t, err)
	assert.Contains(t, out, "delete-item iot.demo.Things(42): ok")

	_, err = runCLI(t, "--config", configFile, "delete-item", "Things", "abc")
	require.NoError(t, err)

	_, err = runCLI(t, "--config", configFile, "delete-item", "Things", "2")
	assert.ErrorIs(t, err, ErrAlreadyHandled)

	assert.Equal(t, []string{
		"DELETE /v1.1/Things(42)",
		"DELETE /v1.1/Things('abc')",
		"DELETE /v1.1/Things(2)",
	}, fake.seen())
}

func TestDeleteCollectionCommand(t *testing.T) {
	fake, configFile := setupCLI(t)

	out, err := runCLI(t, "--config", configFile, "--json", "delete-collection", "sta.Things")
	assert.ErrorIs(t, err, ErrAlreadyHandled)

	var r result
	require.NoError(t, json.Unmarshal([]byte(out), &r))
	assert.Equal(t, result{Operation: "delete-collection", Collection: "sta.Things", Result: false}, r)
	assert.Equal(t, []string{
		"GET /v1.1/Things",
		"DELETE /v1.1/Things(1)",
		"DELETE /v1.1/Things(2)",
	}, fake.seen())
}

func TestUpsertCommand(t *testing.T) {
	fake, configFile := setupCLI(t)
	items := filepath.Join(t.TempDir(), "things.yaml")
	require.NoError(t, os.WriteFile(items, []byte("name: a\n---\nname: b\n"), 0600))

	out, err := runCLI(t, "--config", configFile, "upsert", "iot.Things", "-f", items)
	require.NoError(t, err)
	assert.Contains(t, out, "upsert POST (2 items) iot.Things: ok")
	assert.Equal(t, []string{"POST /v1.1/Things", "POST /v1.1/Things"}, fake.seen())

	_, err = runCLI(t, "--config", configFile, "upsert", "iot.Things", "-f", items, "--method", "PUT")
	assert.ErrorIs(t, err, backend.ErrInvalidArgument)
	assert.Len(t, fake.seen(), 2)
}

func TestCollectionCommands(t *testing.T) {
	fake, configFile := setupCLI(t)

	_, err := runCLI(t, "--config", configFile, "add-collection", "iot.Things")
	assert.ErrorIs(t, err, backend.ErrNotImplemented)

	out, err := runCLI(t, "--config", configFile, "has-collection", "iot.Things")
	require.NoError(t, err)
	assert.Contains(t, out, "has-collection iot.Things: ok")
	assert.Empty(t, fake.seen())
}

func TestURLOverride(t *testing.T) {
	fake, configFile := setupCLI(t)
	other := &fakeSTA{}
	srv := httptest.NewServer(other)
	defer srv.Close()

	_, err := runCLI(t, "--config", configFile, "--url", srv.URL+"/v1.1", "delete-item", "Things", "7")
	require.NoError(t, err)
	assert.Empty(t, fake.seen())
	assert.Equal(t, []string{"DELETE /v1.1/Things(7)"}, other.seen())
}

func TestConfigErrors(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.conf"), "has-collection", "Things")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, configFile := setupCLI(t)
	_, err = runCLI(t, "--config", configFile, "--type", "Elasticsearch", "has-collection", "Things")
	assert.ErrorIs(t, err, backend.ErrUnknownBackend)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "version", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"version": "v0.1.0-alpha.1"`)
	assert.Contains(t, out, "SensorThings")
}

func TestUpsertCommandMethodCase(t *testing.T) {
	fake, configFile := setupCLI(t)
	items := filepath.Join(t.TempDir(), "things.yaml")
	require.NoError(t, os.WriteFile(items, []byte("'@iot.id': 1\nname: a\n"), 0600))

	out, err := runCLI(t, "--config", configFile, "upsert", "Things", "-f", items, "-m", " patch ")
	require.NoError(t, err)
	assert.Contains(t, out, "upsert PATCH (1 items) Things: ok")
	assert.Equal(t, []string{"PATCH /v1.1/Things(1)"}, fake.seen())
}

func TestPrintErrorIncludesCauses(t *testing.T) {
	err := backend.ErrListCollection.MsgErr("unable to list Things", errors.New("503 Service Unavailable: maintenance"))

	var out bytes.Buffer
	opts.jsonOutput = false
	printError(&out, err)
	assert.Contains(t, out.String(), "unable to list Things: 503 Service Unavailable: maintenance")

	out.Reset()
	opts.jsonOutput = true
	defer func() { opts.jsonOutput = false }()
	printError(&out, fmt.Errorf("delete-collection: %w", err))
	var body map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "delete-collection: unable to list Things: 503 Service Unavailable: maintenance", body["error"])

	out.Reset()
	printError(&out, errors.New("plain failure"))
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.Equal(t, "plain failure", body["error"])
}

func TestConfigCommand(t *testing.T) {
	fake := &fakeSTA{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	configFile := filepath.Join(t.TempDir(), "nested", "stabackend.conf")

	out, err := runCLI(t, "--config", configFile, "--url", srv.URL+"/v1.1", "config", "--api-key", "secret")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration written to "+configFile)

	_, err = runCLI(t, "--config", configFile, "config", "--timeout", "15s")
	require.NoError(t, err)

	require.NoError(t, config.LoadConfig(configFile))
	c := config.Config()
	assert.Equal(t, srv.URL+"/v1.1", c.Backend.URL)
	assert.Equal(t, "secret", c.Backend.APIKey)
	assert.Equal(t, "15s", c.Backend.Timeout)
	assert.Equal(t, "SensorThings", c.Backend.Type)

	_, err = runCLI(t, "--config", configFile, "delete-item", "Things", "3")
	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE /v1.1/Things(3)"}, fake.seen())

	_, err = runCLI(t, "--config", configFile, "--url", "localhost", "config")
	assert.Error(t, err)
}

func TestConfigWithoutURL(t *testing.T) {
	fake := &fakeSTA{}
	srv := httptest.NewServer(fake)
	defer srv.Close()
	configFile := filepath.Join(t.TempDir(), "stabackend.conf")
	require.NoError(t, os.WriteFile(configFile, []byte("format_version = \"0.1.0\"\nlog_level = \"error\"\n"), 0600))

	_, err := runCLI(t, "--config", configFile, "--url", srv.URL+"/v1.1", "delete-item", "Things", "5")
	require.NoError(t, err)
	assert.Equal(t, []string{"DELETE /v1.1/Things(5)"}, fake.seen())

	_, err = runCLI(t, "--config", configFile, "delete-item", "Things", "5")
	assert.ErrorIs(t, err, backend.ErrInvalidConnectionParams)
}
