package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labsentinel/internal/application"
	appaudits "labsentinel/internal/application/audits"
	"labsentinel/internal/domain/procedures"
)

func testHandler() http.Handler {
	svc := &appaudits.Service{
		Catalog: procedures.BuiltIn(),
		Clock:   application.SystemClock{},
	}
	return NewRouter(svc)
}

func TestProcedureEndpoints(t *testing.T) {
	h := testHandler()

	t.Run("list", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/procedures", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var specs []*procedures.Spec
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &specs))
		assert.Len(t, specs, 4)
	})

	t.Run("get", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/procedures/SOP-GE-002", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var spec procedures.Spec
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
		assert.Equal(t, "Gel Electrophoresis Quality Check", spec.Title)
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/procedures/SOP-NOPE", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRunAuditRequestValidation(t *testing.T) {
	h := testHandler()

	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/acme-lab/audits", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("malformed body is 400", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post("{not json").Code)
	})

	t.Run("missing procedure id is 400", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, post(`{"image_base64":"aGVsbG8="}`).Code)
	})

	t.Run("invalid base64 is 400", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest,
			post(`{"procedure_id":"SOP-GE-002","image_base64":"!!!"}`).Code)
	})

	t.Run("unknown procedure is 404", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound,
			post(`{"procedure_id":"SOP-NOPE","image_base64":"aGVsbG8="}`).Code)
	})
}
