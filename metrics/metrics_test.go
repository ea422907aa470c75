package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-dapp/solana"
)

func TestObserveRPC(t *testing.T) {
	m := NewMetrics()
	m.ObserveRPC("getBalance", nil, 10*time.Millisecond)
	m.ObserveRPC("sendTransaction", &solana.RPCError{Code: solana.CodeSendTransactionFailed}, time.Millisecond)
	m.ObserveRPC("sendTransaction", errors.New("dial tcp: refused"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("getBalance", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("sendTransaction", "-32002")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCRequests.WithLabelValues("sendTransaction", "error")))
}

func TestMiddlewareAndHandler(t *testing.T) {
	m := NewMetrics()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/notes/{address}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Method(http.MethodGet, "/metrics", m.Handler())

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/notes/abc", nil))
	require.Equal(t, http.StatusTeapot, rr.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/notes/{address}", "418")))

	m.ObserveOperation("create", "ok")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, strings.Contains(rr.Body.String(), `notes_dapp_note_operations_total{op="create",result="ok"} 1`))
}
