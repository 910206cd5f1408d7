package httpx

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gamma-omg/partyparty/internal/pkg/serr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type kindError struct{}

func (kindError) Error() string   { return "3 operations failed" }
func (kindError) Kind() serr.Kind { return serr.KindPartialReconciliation }

func TestReadJSON(t *testing.T) {
	var out struct {
		Name string `json:"name"`
	}

	req := httptest.NewRequest("POST", "/", strings.NewReader(`{"name":"party"}`))
	require.NoError(t, ReadJSON(req, &out))
	assert.Equal(t, "party", out.Name)

	req = httptest.NewRequest("POST", "/", strings.NewReader(`{"name":`))
	assert.True(t, serr.Is(ReadJSON(req, &out), serr.KindValidation))

	req = httptest.NewRequest("POST", "/", strings.NewReader(""))
	assert.True(t, serr.Is(ReadJSON(req, &out), serr.KindValidation))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	require.NoError(t, WriteJSON(rec, http.StatusCreated, map[string]string{"id": "p1"}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id":"p1"}`, rec.Body.String())
}

func TestHandleErr(t *testing.T) {
	slog.SetDefault(slog.New(slog.DiscardHandler))

	tbl := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"not authenticated", serr.NotAuthenticated("signed-in user is required"), http.StatusUnauthorized,
			`{"error":"not_authenticated","message":"signed-in user is required"}`},
		{"validation", serr.Validation("title is required"), http.StatusBadRequest,
			`{"error":"validation","message":"title is required"}`},
		{"not found", serr.NotFound(nil, "party not found").With("party_id", "p1"), http.StatusNotFound,
			`{"error":"not_found","message":"party not found","details":{"party_id":"p1"}}`},
		{"sync failure wrapped", fmt.Errorf("bind: %w", serr.SyncFailure(errors.New("dial tcp"), "find device")), http.StatusBadGateway,
			`{"error":"sync_failure","message":"find device"}`},
		{"kind method", kindError{}, http.StatusMultiStatus,
			`{"error":"partial_reconciliation","message":"3 operations failed"}`},
		{"plain", errors.New("boom"), http.StatusInternalServerError,
			`{"error":"internal","message":"Internal Server Error"}`},
	}

	for _, c := range tbl {
		t.Run(c.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			HandleErr(rec, httptest.NewRequest("GET", "/", nil), c.err)

			assert.Equal(t, c.status, rec.Code)
			assert.JSONEq(t, c.body, rec.Body.String())
		})
	}
}
