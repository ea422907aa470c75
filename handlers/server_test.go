package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"notes-dapp/localnet"
	"notes-dapp/metrics"
	"notes-dapp/page"
	"notes-dapp/solana"
	"notes-dapp/wallet"
)

const testPassphrase = "correct horse battery staple"

func TestMain(m *testing.M) {
	// Setup test environment
	godotenv.Load("../.env.test")

	// Run tests
	code := m.Run()

	os.Exit(code)
}

func jwtSecret() []byte {
	if s := os.Getenv("JWT_SECRET"); s != "" {
		return []byte(s)
	}
	return []byte("notes-dapp-test-secret")
}

type testEnv struct {
	cluster *localnet.Cluster
	server  *Server
	router  http.Handler
	metrics *metrics.Metrics
	alice   solana.PublicKey
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	quiet, _ := test.NewNullLogger()

	cluster := localnet.New(localnet.WithFaucet(localnet.LamportsPerSOL), localnet.WithLogger(quiet))
	rpcServer := httptest.NewServer(cluster)
	t.Cleanup(rpcServer.Close)
	rpc := solana.NewClient(rpcServer.URL, solana.WithPollInterval(time.Millisecond))

	adapter := wallet.NewAdapter(wallet.NewMemoryKeystore(), quiet)
	alice, err := adapter.Create(context.Background(), "alice", testPassphrase)
	require.NoError(t, err)
	cluster.Airdrop(alice, 2*localnet.LamportsPerSOL)

	m := metrics.NewMetrics()
	provider := wallet.NewProvider(rpc, rpcServer.URL, adapter, wallet.WithLogger(quiet))
	opts = append([]Option{WithLogger(quiet), WithMetrics(m), WithTimeout(5 * time.Second)}, opts...)
	srv := NewServer(provider, jwtSecret(), opts...)
	return &testEnv{cluster: cluster, server: srv, router: srv.Routes(), metrics: m, alice: alice}
}

func (e *testEnv) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) connect(t *testing.T) string {
	t.Helper()
	rr := e.do("POST", "/api/wallet/connect", map[string]string{"label": "alice", "passphrase": testPassphrase}, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var resp connectResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp.Token
}

func decodeView(t *testing.T, rr *httptest.ResponseRecorder) page.View {
	t.Helper()
	var v page.View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func errorMessage(rr *httptest.ResponseRecorder) string {
	var body map[string]string
	json.Unmarshal(rr.Body.Bytes(), &body)
	return body["error"]
}

func TestHealth(t *testing.T) {
	t.Run("Healthy", func(t *testing.T) {
		e := newTestEnv(t)
		rr := e.do("GET", "/health", nil, "")
		if rr.Code != http.StatusOK {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
		}
		var body map[string]string
		json.Unmarshal(rr.Body.Bytes(), &body)
		if body["program"] != e.cluster.ProgramID().String() {
			t.Errorf("program: got %v want %v", body["program"], e.cluster.ProgramID().String())
		}
	})

	t.Run("Failing dependency", func(t *testing.T) {
		e := newTestEnv(t, WithHealthCheck(func(context.Context) error { return errors.New("db down") }))
		rr := e.do("GET", "/health", nil, "")
		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusServiceUnavailable)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	e := newTestEnv(t)
	token := e.connect(t)
	e.do("GET", "/api/notes", nil, token)

	rr := e.do("GET", "/metrics", nil, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("Handler returned wrong status code: got %v want %v", rr.Code, http.StatusOK)
	}
	for _, series := range []string{"note_operations_total", "http_requests_total"} {
		if !bytes.Contains(rr.Body.Bytes(), []byte(series)) {
			t.Errorf("metrics output is missing %s", series)
		}
	}
}
