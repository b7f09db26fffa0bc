package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camden-git/faceattend/config"
	"github.com/camden-git/faceattend/models"
	"github.com/camden-git/faceattend/realtime"
	"github.com/camden-git/faceattend/recognition"
)

func testConfig(t *testing.T) config.Config {
	dir := t.TempDir()
	return config.Config{
		KnownFacesPath:    filepath.Join(dir, "known_faces"),
		AttendanceBackend: config.AttendanceBackendCSV,
		AttendanceFile:    filepath.Join(dir, "attendance.csv"),
		Tolerance:         0.6,
		MaxImageWidth:     640,
		MaxUploadBytes:    1024,
		AllowedOrigins:    []string{"http://localhost:5173"},
	}
}

func TestRouterRoutesAndAdminKey(t *testing.T) {
	cfg := testConfig(t)
	var key models.AdminKey
	require.NoError(t, key.SetKey("letmein"))
	cfg.AdminKeyHash = key.Hash

	a := &app{cfg: cfg, hub: realtime.NewHub()}
	ledger, err := openLedger(a)
	require.NoError(t, err)
	// no provider: the service reports itself not ready
	a.service = recognition.NewService(recognition.Dependencies{Ledger: ledger})
	defer a.Close()
	router := newRouter(a)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"recognizer_loaded":false`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/attendance", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_records":0`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/reload", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/reload", nil)
	req.Header.Set("X-Admin-Key", "letmein")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRejectsOversizedBody(t *testing.T) {
	cfg := testConfig(t)
	a := &app{cfg: cfg, hub: realtime.NewHub()}
	ledger, err := openLedger(a)
	require.NoError(t, err)
	a.service = recognition.NewService(recognition.Dependencies{Ledger: ledger})
	defer a.Close()

	body := `{"name": "x", "images": ["` + strings.Repeat("A", 4096) + `"]}`
	req := httptest.NewRequest(http.MethodPost, "/register_person", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	newRouter(a).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHashKeyCommand(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"hashkey", "s3cret"})
	defer rootCmd.SetArgs(nil)
	require.NoError(t, rootCmd.Execute())

	key := models.AdminKey{Hash: strings.TrimSpace(out.String())}
	assert.True(t, key.Check("s3cret"))
	assert.False(t, key.Check("other"))
}
