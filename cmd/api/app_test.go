package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/patient-api/internal/config"
	"github.com/jwalitptl/patient-api/internal/model"
)

const seedJSON = `[
  {
    "id": "p-1",
    "name": "Jane Roe",
    "dob": "1980-02-14",
    "treatments": [{"id": "t-1", "medication": "Physio", "labTest": {"panel": "CBC"}}],
    "appointments": []
  }
]`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func memoryConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	seed := writeFile(t, dir, "seed.json", seedJSON)
	return writeFile(t, dir, "config.yaml", `
database:
  driver: memory
  seed_file: `+seed+`
log:
  level: error
metrics:
  namespace: testapi
`)
}

func newTestApplication(t *testing.T) *application {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg, err := config.LoadConfig(memoryConfig(t))
	require.NoError(t, err)

	app, err := newApplication(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func serve(app *application, method, path string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	app.router.Engine().ServeHTTP(w, req)
	return w
}

func TestApplication_ServesSeededPatients(t *testing.T) {
	app := newTestApplication(t)

	w := serve(app, http.MethodGet, "/api/patients", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var records []model.PatientRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "p-1", records[0].ID)
	assert.Equal(t, "Jane Roe", records[0].Name)
	require.Len(t, records[0].Treatments, 1)
	assert.Equal(t, "Physio", records[0].Treatments[0].Medication)
	assert.Empty(t, records[0].Appointments)
}

func TestApplication_UpdateThenList(t *testing.T) {
	app := newTestApplication(t)

	body := `{"name":"Jane Doe","dob":"1980-02-14","appointments":[{"date":"2026-01-05","time":"09:30"}]}`
	w := serve(app, http.MethodPut, "/api/patients/p-1", bytes.NewBufferString(body))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var updated model.Patient
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Jane Doe", updated.Name)

	w = serve(app, http.MethodGet, "/api/patients", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var records []model.PatientRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Empty(t, records[0].Treatments)
	require.Len(t, records[0].Appointments, 1)
	assert.Equal(t, "09:30", records[0].Appointments[0].Time)
}

func TestApplication_HealthAndMetrics(t *testing.T) {
	app := newTestApplication(t)

	w := serve(app, http.MethodGet, "/health/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	serve(app, http.MethodGet, "/api/patients", nil)

	w = serve(app, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "testapi_requests_total")
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestApplication_BadSeedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Database.Driver = config.DriverMemory
	cfg.Database.SeedFile = writeFile(t, dir, "seed.json", "{not json")
	cfg.Metrics.Namespace = "bad"

	_, err := newApplication(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestMigrateCmd_RequiresPostgres(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"migrate", "status", "--config", memoryConfig(t)})

	err := cmd.Execute()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "postgres"), err.Error())
}

func TestEventsCmd_RequiresRedis(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"events", "--config", memoryConfig(t)})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.url")
}
