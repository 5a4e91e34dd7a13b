package webkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerRoutesAndMiddleware(t *testing.T) {
	srv := New(Options{Port: 0, Name: "test"})
	srv.Router.Get("/ping", func(w http.ResponseWriter, _ *http.Request) {
		JSON(w, http.StatusOK, map[string]string{"pong": "true"})
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "true", body["pong"])
}

func TestCORSPreflightShortCircuits(t *testing.T) {
	srv := New(Options{Name: "test"})
	srv.Router.Post("/thing", func(w http.ResponseWriter, _ *http.Request) {
		t.Error("handler must not run on preflight")
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/thing", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	srv := New(Options{Name: "test"})
	srv.Router.Get("/boom", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestErrorHelpers(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.StatusNotFound, "nothing here")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "nothing here", body["error"]["message"])
	assert.Equal(t, float64(404), body["error"]["code"])

	rec = httptest.NewRecorder()
	FieldError(rec, http.StatusBadRequest, "incomplete", []string{"city", "zip"})
	var fieldBody map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fieldBody))
	assert.Equal(t, []any{"city", "zip"}, fieldBody["error"]["fields"])
}
