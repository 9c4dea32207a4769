package pipeline

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"framecast/internal/frame"
	"framecast/internal/relay"
	"framecast/internal/source"
)

type fixedClients int

func (c fixedClients) ClientCount() int { return int(c) }

func newTestRouter(t *testing.T) (http.Handler, *source.Synthetic, *Producer) {
	t.Helper()
	r := relay.New()
	p := NewProducer(nil, &fakeBroadcaster{}, r, nil, nil, nil)
	src := source.NewSynthetic(source.Config{Width: 2, Height: 2, Mode: source.ModeRaw})
	h := NewHandler(p, fixedClients(3), r, src, nil)

	router := chi.NewRouter()
	h.Routes(router)
	return router, src, p
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestHandler_GetStatus(t *testing.T) {
	router, _, p := newTestRouter(t)
	for i := 0; i < 3; i++ {
		p.Step(frame.New(0, 2, 2), time.Millisecond)
	}

	rec := do(router, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var st Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, uint64(3), st.Seq)
	assert.Equal(t, uint64(3), st.Stats.FrameCount)
	assert.Equal(t, 2, st.Stats.Width)
	assert.Equal(t, 3, st.Clients)
	assert.Equal(t, "raw", st.Mode)
	require.NotNil(t, st.Relay)
	assert.Equal(t, uint64(3), st.Relay.Published)
	assert.Equal(t, uint64(2), st.Relay.Overwritten)
}

func TestHandler_SetMode(t *testing.T) {
	router, src, _ := newTestRouter(t)

	rec := do(router, http.MethodPost, "/api/mode", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"mode":"edges"}`, rec.Body.String())
	assert.Equal(t, source.ModeEdges, src.Mode())

	rec = do(router, http.MethodPost, "/api/mode", `{"mode":"grayscale"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, source.ModeGrayscale, src.Mode())

	rec = do(router, http.MethodPost, "/api/mode", `{"mode":"sepia"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, source.ModeGrayscale, src.Mode())

	rec = do(router, http.MethodPost, "/api/mode", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(router, http.MethodGet, "/api/mode", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandler_SetMode_noSwitch(t *testing.T) {
	p := NewProducer(nil, &fakeBroadcaster{}, nil, nil, nil, nil)
	router := chi.NewRouter()
	NewHandler(p, fixedClients(0), nil, nil, nil).Routes(router)

	rec := do(router, http.MethodPost, "/api/mode", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = do(router, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"relay"`)
}
