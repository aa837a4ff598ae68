package dto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotebook/internal/app"
	"github.com/jsamuelsen/quotebook/internal/domain"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, target string, body string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	c.Request = req

	return c, w
}

func TestNewErrorResponseWithDetails(t *testing.T) {
	resp := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed",
		map[string]string{"text": "must not be blank"}).WithTraceID("abc")

	assert.Equal(t, &ErrorResponse{
		Error: ErrorDetail{
			Code:    ErrorCodeValidation,
			Message: "request validation failed",
			Details: map[string]string{"text": "must not be blank"},
		},
		TraceID: "abc",
	}, resp)

	data, err := json.Marshal(NewErrorResponse(ErrorCodeNotFound, "gone"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":{"code":"NOT_FOUND","message":"gone"}}`, string(data))
}

func TestHTTPStatusFromCode(t *testing.T) {
	tests := map[string]int{
		ErrorCodeNotFound:    http.StatusNotFound,
		ErrorCodeValidation:  http.StatusBadRequest,
		ErrorCodeBadRequest:  http.StatusBadRequest,
		ErrorCodeUnavailable: http.StatusServiceUnavailable,
		ErrorCodeTimeout:     http.StatusGatewayTimeout,
		ErrorCodeInternal:    http.StatusInternalServerError,
		"SOMETHING_ELSE":     http.StatusInternalServerError,
	}

	for code, want := range tests {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, want, HTTPStatusFromCode(code))
		})
	}
}

func TestGetTraceID(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func(*gin.Context)
		want  string
	}{
		{
			name:  "none",
			setup: func(*gin.Context) {},
			want:  "",
		},
		{
			name:  "gin key",
			setup: func(c *gin.Context) { c.Set(TraceIDKey, "key-trace") },
			want:  "key-trace",
		},
		{
			name:  "gin key with wrong type",
			setup: func(c *gin.Context) { c.Set(TraceIDKey, 42) },
			want:  "",
		},
		{
			name: "span context wins",
			setup: func(c *gin.Context) {
				sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
				c.Request = c.Request.WithContext(trace.ContextWithSpanContext(c.Request.Context(), sc))
				c.Set(TraceIDKey, "key-trace")
			},
			want: "4bf92f3577b34da6a3ce929d0e0e4736",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodGet, "/", "")
			tt.setup(c)

			assert.Equal(t, tt.want, GetTraceID(c))
		})
	}
}

func TestMapDomainError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
		wantDetails map[string]string
	}{
		{
			name:        "not found",
			err:         domain.NewNotFoundError(7),
			wantStatus:  http.StatusNotFound,
			wantCode:    ErrorCodeNotFound,
			wantMessage: "quote 7 not found",
		},
		{
			name:        "validation",
			err:         domain.NewValidationError("author", "cannot be empty"),
			wantStatus:  http.StatusBadRequest,
			wantCode:    ErrorCodeValidation,
			wantMessage: "author cannot be empty",
			wantDetails: map[string]string{"author": "cannot be empty"},
		},
		{
			name:        "wrapped unavailable",
			err:         fmt.Errorf("adding quote: %w", domain.NewUnavailableError("sqlite", "database is locked")),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    ErrorCodeUnavailable,
			wantMessage: "quote storage is unavailable",
		},
		{
			name:        "deadline",
			err:         fmt.Errorf("persisting quotes: %w", context.DeadlineExceeded),
			wantStatus:  http.StatusGatewayTimeout,
			wantCode:    ErrorCodeTimeout,
			wantMessage: "request timeout exceeded",
		},
		{
			name:        "deadline behind unavailable",
			err:         fmt.Errorf("adding quote: %w", domain.WrapUnavailable("sqlite", context.DeadlineExceeded)),
			wantStatus:  http.StatusGatewayTimeout,
			wantCode:    ErrorCodeTimeout,
			wantMessage: "request timeout exceeded",
		},
		{
			name:        "unknown",
			err:         errors.New("secret internals"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    ErrorCodeInternal,
			wantMessage: "an internal error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, resp := MapDomainError(tt.err)

			assert.Equal(t, tt.wantStatus, status)
			require.NotNil(t, resp)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, tt.wantMessage, resp.Error.Message)
			assert.Equal(t, tt.wantDetails, resp.Error.Details)
		})
	}

	status, resp := MapDomainError(nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, resp)
}

func TestHandleError(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/", "")
	c.Set(TraceIDKey, "trace-123")

	HandleError(c, domain.NewNotFoundError(1))

	assert.Equal(t, http.StatusNotFound, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrorCodeNotFound, resp.Error.Code)
	assert.Equal(t, "trace-123", resp.TraceID)
}

func TestAbortWithCode(t *testing.T) {
	c, w := newTestContext(http.MethodGet, "/", "")

	AbortWithCode(c, ErrorCodeTimeout, "request timeout exceeded")

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	assert.Contains(t, w.Body.String(), `"TIMEOUT"`)
}

func TestBindAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantErr    error
		wantFields []string
	}{
		{
			name: "valid",
			body: `{"text":"Be water","author":"Lee"}`,
		},
		{
			name:       "blank fields",
			body:       `{"text":" \t ","author":""}`,
			wantErr:    ErrValidation,
			wantFields: []string{"text", "author"},
		},
		{
			name:       "source too long",
			body:       `{"text":"a","author":"b","source":"` + strings.Repeat("s", 301) + `"}`,
			wantErr:    ErrValidation,
			wantFields: []string{"source"},
		},
		{
			name:    "malformed",
			body:    `not json`,
			wantErr: ErrBinding,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestContext(http.MethodPost, "/api/v1/quotes", tt.body)

			var req CreateQuoteRequest
			err := BindAndValidate(c, &req)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "Be water", req.Text)

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantErr == ErrValidation, IsValidationError(err))

			fields := ValidationErrors(err)
			for _, f := range tt.wantFields {
				assert.Contains(t, fields, f)
			}
		})
	}
}

func TestBindQueryAndValidate(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/quotes?q=water&author=Lee", "")

	var query QuoteFilterQuery
	require.NoError(t, BindQueryAndValidate(c, &query))

	assert.Equal(t, domain.Filter{SearchText: "water", SelectedAuthor: "Lee"}, query.Filter())
}

func TestValidationMessage(t *testing.T) {
	type input struct {
		Name  string `json:"name"  validate:"required"`
		Text  string `json:"text"  validate:"notblank"`
		Short string `json:"short" validate:"min=5"`
		Count int    `json:"count" validate:"max=10"`
		Role  string `json:"role"  validate:"oneof=en pt"`
		Age   int    `json:"age"   validate:"lte=120"`
		Mail  string `json:"mail"  validate:"email"`
	}

	err := Validator().Struct(&input{Text: "  ", Short: "abc", Count: 20, Role: "fr", Age: 150, Mail: "nope"})
	require.Error(t, err)

	var validationErrs validator.ValidationErrors
	require.ErrorAs(t, err, &validationErrs)

	expected := map[string]string{
		"name":  "this field is required",
		"text":  "must not be blank",
		"short": "must be at least 5 characters",
		"count": "must be at most 10",
		"role":  "must be one of: en pt",
		"age":   "must be less than or equal to 120",
		"mail":  "failed validation: email",
	}

	assert.Equal(t, expected, ValidationErrors(err))
}

func TestMinMaxMessage(t *testing.T) {
	assert.Equal(t, "must be at least 5 characters", minMaxMessage("min", "5", reflect.String))
	assert.Equal(t, "must be at most 10", minMaxMessage("max", "10", reflect.Int))
}

func TestNewQuoteListResponse(t *testing.T) {
	created := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)

	resp := NewQuoteListResponse(app.View{
		Quotes: []domain.Quote{
			{ID: 2, Text: "Carpe diem", Author: "Horace", Source: "Odes", CreatedAt: created},
		},
		Authors: []string{"Horace", "Lee"},
		Stats:   "1 of 2 quotes",
		Total:   2,
	})

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"quotes": [{"id":2,"text":"Carpe diem","author":"Horace","source":"Odes","createdAt":"2023-11-14T22:13:20Z"}],
		"authors": ["Horace","Lee"],
		"stats": "1 of 2 quotes",
		"visible": 1,
		"total": 2,
		"empty": false
	}`, string(data))
}

func TestNewQuoteListResponse_EmptyViewUsesArrays(t *testing.T) {
	data, err := json.Marshal(NewQuoteListResponse(app.View{Stats: "0 quotes", Empty: true}))
	require.NoError(t, err)

	assert.JSONEq(t,
		`{"quotes":[],"authors":[],"stats":"0 quotes","visible":0,"total":0,"empty":true}`,
		string(data))
}
