package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotebook/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotebook/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotebook/internal/adapters/storage"
	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/platform/config"
	"github.com/jsamuelsen/quotebook/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testServerConfig(port int) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           port,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1 << 10,
	}
}

// newTestAPI wires a server over an in-memory store the way main does.
func newTestAPI(t *testing.T) (*Server, *app.QuoteStore) {
	t.Helper()

	blobs := storage.NewMemory()

	store := app.NewQuoteStore(app.QuoteStoreConfig{
		Storage: blobs,
		Logger:  discardLogger(),
	})
	require.NoError(t, store.Restore(context.Background()))

	registry := ports.NewHealthRegistry()
	require.NoError(t, registry.Register(blobs))

	srv := New(testServerConfig(0), discardLogger())
	SetupRouter(srv.Engine(), RouterConfig{
		Logger:        discardLogger(),
		ServiceName:   "quotebook-test",
		HealthHandler: handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "abc", ""), store),
		QuoteHandler:  handlers.NewQuoteHandler(store),
		Timeout:       5 * time.Second,
	})

	return srv, store
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	srv.Engine().ServeHTTP(w, req)

	return w
}

func TestServerNew(t *testing.T) {
	cfg := testServerConfig(8080)
	logger := discardLogger()

	srv := New(cfg, logger)

	require.NotNil(t, srv)
	assert.Equal(t, cfg, srv.Config())
	assert.Equal(t, "127.0.0.1:8080", srv.Addr())
	assert.IsType(t, &gin.Engine{}, srv.Engine())
}

func TestServerStartShutdown(t *testing.T) {
	srv := New(testServerConfig(0), discardLogger())
	srv.Engine().GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr(), "Addr reports the bound port")

	resp, err := http.Get("http://" + srv.Addr() + "/ping")
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	select {
	case err, ok := <-errCh:
		assert.NoError(t, err)
		assert.False(t, ok, "error channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for server to stop")
	}
}

func TestServerStart_AddressInUse(t *testing.T) {
	first := New(testServerConfig(0), discardLogger())
	_, err := first.Start()
	require.NoError(t, err)

	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)

	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	_, err = New(testServerConfig(p), discardLogger()).Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}

func TestSetupRouter_QuoteLifecycle(t *testing.T) {
	srv, store := newTestAPI(t)

	w := serve(srv, http.MethodPost, "/api/v1/quotes", `{"text":"Be water","author":"Lee"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))

	var created dto.QuoteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = serve(srv, http.MethodPost, "/api/v1/quotes", `{"text":"Carpe diem","author":"Horace","source":"Odes"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = serve(srv, http.MethodGet, "/api/v1/quotes?author=Lee", "")
	require.Equal(t, http.StatusOK, w.Code)

	var list dto.QuoteListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, "1 of 2 quotes", list.Stats)
	require.Len(t, list.Quotes, 1)
	assert.Equal(t, created.ID, list.Quotes[0].ID)

	w = serve(srv, http.MethodDelete, "/api/v1/quotes/"+strconv.FormatInt(created.ID, 10), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, store.Len())

	w = serve(srv, http.MethodGet, "/-/ready", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"quotes":1`)
	assert.Contains(t, w.Body.String(), `"memory"`)
}

func TestSetupRouter_Probes(t *testing.T) {
	srv, _ := newTestAPI(t)

	for _, path := range []string{"/-/live", "/-/ready", "/-/build", "/-/metrics"} {
		t.Run(path, func(t *testing.T) {
			w := serve(srv, http.MethodGet, path, "")
			assert.Equal(t, http.StatusOK, w.Code)
		})
	}
}

func TestSetupRouter_MethodNotAllowed(t *testing.T) {
	srv, _ := newTestAPI(t)

	w := serve(srv, http.MethodPut, "/api/v1/quotes", `{}`)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestSetupRouter_BodyTooLarge(t *testing.T) {
	srv, store := newTestAPI(t)

	body := `{"text":"` + strings.Repeat("x", 2<<10) + `","author":"Lee"}`
	w := serve(srv, http.MethodPost, "/api/v1/quotes", body)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, store.Len())
}

func TestSetupRouter_RecoversPanics(t *testing.T) {
	srv, _ := newTestAPI(t)
	srv.Engine().GET("/api/v1/boom", func(*gin.Context) { panic("boom") })

	w := serve(srv, http.MethodGet, "/api/v1/boom", "")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), dto.ErrorCodeInternal)
}

func TestSetupRouter_WithoutHandlers(t *testing.T) {
	engine := gin.New()

	require.NotPanics(t, func() {
		SetupRouter(engine, RouterConfig{})
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/quotes", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
