package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotebook/internal/adapters/http/dto"
	"github.com/jsamuelsen/quotebook/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withLogger installs a JSON logger writing to buf as the request logger.
func withLogger(buf *bytes.Buffer) gin.HandlerFunc {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), logger))
		c.Next()
	}
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}

	return lines
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		wantEchoed bool
	}{
		{name: "generated when missing"},
		{name: "propagated", header: "req-123", wantEchoed: true},
		{name: "replaced when it has spaces", header: "bad id"},
		{name: "replaced when too long", header: strings.Repeat("a", 129)},
		{name: "replaced when it has newlines", header: "abc\ninjected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen string

			router := gin.New()
			router.Use(RequestID())
			router.GET("/", func(c *gin.Context) {
				seen = GetRequestID(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			got := w.Header().Get(HeaderRequestID)
			assert.Equal(t, seen, got)

			if tt.wantEchoed {
				assert.Equal(t, tt.header, got)
				return
			}

			assert.NotEqual(t, tt.header, got)

			_, err := uuid.Parse(got)
			assert.NoError(t, err, "expected a generated UUID, got %q", got)
		})
	}
}

func TestCorrelationID(t *testing.T) {
	var buf bytes.Buffer

	router := gin.New()
	router.Use(withLogger(&buf), CorrelationID())
	router.GET("/", func(c *gin.Context) {
		assert.Equal(t, "txn-9", GetCorrelationID(c))
		logging.FromContext(c.Request.Context()).Info("inside")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "txn-9")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "txn-9", w.Header().Get(HeaderCorrelationID))

	lines := logLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "txn-9", lines[0]["correlation_id"])
}

func TestGetIDs_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, GetRequestID(c))
	assert.Empty(t, GetCorrelationID(c))
}

func TestLogging(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		skip      []string
		wantLevel string
		wantLog   bool
	}{
		{name: "success", path: "/api/v1/quotes", status: http.StatusOK, wantLevel: "INFO", wantLog: true},
		{name: "client error", path: "/api/v1/quotes", status: http.StatusBadRequest, wantLevel: "WARN", wantLog: true},
		{name: "server error", path: "/api/v1/quotes", status: http.StatusServiceUnavailable, wantLevel: "ERROR", wantLog: true},
		{name: "probe skipped", path: "/-/ready", status: http.StatusOK},
		{name: "configured skip", path: "/favicon.ico", status: http.StatusOK, skip: []string{"/favicon.ico"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer

			router := gin.New()
			router.Use(withLogger(&buf), Logging(tt.skip...))
			router.GET(tt.path, func(c *gin.Context) { c.Status(tt.status) })

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path+"?q=water", nil))

			assert.Equal(t, tt.status, w.Code)

			lines := logLines(t, &buf)
			if !tt.wantLog {
				assert.Empty(t, lines)
				return
			}

			require.Len(t, lines, 1)
			assert.Equal(t, "request completed", lines[0]["msg"])
			assert.Equal(t, tt.wantLevel, lines[0]["level"])
			assert.Equal(t, tt.path, lines[0]["path"])
			assert.Equal(t, "q=water", lines[0]["query"])
			assert.EqualValues(t, tt.status, lines[0]["status"])
		})
	}
}

func TestRecovery(t *testing.T) {
	t.Run("passes through", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery())
		router.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("panic becomes 500 envelope", func(t *testing.T) {
		var buf bytes.Buffer

		router := gin.New()
		router.Use(withLogger(&buf), Recovery())
		router.GET("/", func(*gin.Context) { panic("something went wrong") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
		assert.NotContains(t, w.Body.String(), "something went wrong")

		lines := logLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "panic recovered", lines[0]["msg"])
		assert.Equal(t, "something went wrong", lines[0]["panic"])
		assert.Contains(t, lines[0]["stack"], "runtime/debug")
	})

	t.Run("panic after write keeps status", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery())
		router.GET("/", func(c *gin.Context) {
			c.String(http.StatusOK, "partial")
			panic("late")
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "partial", w.Body.String())
	})
}

func TestTimeout(t *testing.T) {
	t.Run("sets deadline", func(t *testing.T) {
		var deadline time.Time
		var ok bool

		router := gin.New()
		router.Use(Timeout(5 * time.Second))
		router.GET("/", func(c *gin.Context) {
			deadline, ok = c.Request.Context().Deadline()
			c.Status(http.StatusOK)
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(5*time.Second), deadline, time.Second)
	})

	t.Run("answers 504 when handler ran out of time", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/", func(c *gin.Context) {
			<-c.Request.Context().Done()
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)
		assert.Contains(t, w.Body.String(), dto.ErrorCodeTimeout)
	})

	t.Run("leaves written responses alone", func(t *testing.T) {
		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/", func(c *gin.Context) {
			<-c.Request.Context().Done()
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": context.Cause(c.Request.Context()).Error()})
		})

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestMaxBodySize(t *testing.T) {
	type body struct {
		Text string `json:"text"`
	}

	router := gin.New()
	router.Use(MaxBodySize(32))
	router.POST("/", func(c *gin.Context) {
		var b body
		if err := c.ShouldBindJSON(&b); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}

		c.String(http.StatusOK, b.Text)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"text":"short"}`)))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/",
		strings.NewReader(`{"text":"`+strings.Repeat("x", 64)+`"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
