package transport

import (
	"errors"
	"net/http"
	"testing"

	"github.com/eshaffer321/pluginhub-go/internal/types"
	"github.com/stretchr/testify/assert"
)

func TestHandleHTTPError_ServerError_IncludesResponseBody(t *testing.T) {
	transport := &RESTTransport{}

	tests := []struct {
		name          string
		statusCode    int
		responseBody  []byte
		expectedInMsg string
	}{
		{
			name:          "525 SSL Handshake Failed with HTML body",
			statusCode:    525,
			responseBody:  []byte(`<html><body>SSL Handshake Failed</body></html>`),
			expectedInMsg: "525",
		},
		{
			name:          "500 with JSON error message",
			statusCode:    500,
			responseBody:  []byte(`{"success": false, "message": "Database connection failed"}`),
			expectedInMsg: "Database connection failed",
		},
		{
			name:          "502 Bad Gateway with empty body",
			statusCode:    502,
			responseBody:  []byte{},
			expectedInMsg: "502",
		},
		{
			name:          "503 Service Unavailable",
			statusCode:    503,
			responseBody:  []byte(`Service temporarily unavailable`),
			expectedInMsg: "503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := transport.handleHTTPError(tt.statusCode, tt.responseBody)

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedInMsg, "error should contain status code or message")
			assert.True(t, errors.Is(err, types.ErrServerError))
			assert.Equal(t, tt.statusCode, types.StatusCode(err))
		})
	}
}

func TestHandleHTTPError_ServerError_IncludesStatusCodeDescription(t *testing.T) {
	transport := &RESTTransport{}

	tests := []struct {
		name         string
		statusCode   int
		expectedDesc string
	}{
		{"500 Internal Server Error", 500, "Internal Server Error"},
		{"502 Bad Gateway", 502, "Bad Gateway"},
		{"503 Service Unavailable", 503, "Service Unavailable"},
		{"525 SSL Handshake Failed", 525, "SSL Handshake Failed"},
		{"526 Invalid SSL Certificate", 526, "Invalid SSL Certificate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := transport.handleHTTPError(tt.statusCode, []byte(`error page`))

			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectedDesc, "error should include human-readable description")
		})
	}
}

func TestHandleHTTPError_ClientErrors(t *testing.T) {
	transport := &RESTTransport{}

	tests := []struct {
		name       string
		statusCode int
		body       string
		sentinel   error
		wantCode   string
		wantMsg    string
	}{
		{"401 with message", http.StatusUnauthorized, `{"success":false,"message":"jwt expired"}`, types.ErrUnauthorized, "UNAUTHORIZED", "jwt expired"},
		{"401 empty body", http.StatusUnauthorized, ``, types.ErrUnauthorized, "UNAUTHORIZED", "unauthorized"},
		{"403", http.StatusForbidden, `{"message":"subscription required"}`, types.ErrForbidden, "FORBIDDEN", "subscription required"},
		{"404", http.StatusNotFound, ``, types.ErrNotFound, "NOT_FOUND", "resource not found"},
		{"429", http.StatusTooManyRequests, ``, types.ErrRateLimited, "RATE_LIMITED", "rate limited"},
		{"504", http.StatusGatewayTimeout, ``, types.ErrTimeout, "TIMEOUT", "request timeout"},
		{"400 with code", http.StatusBadRequest, `{"code":"EMAIL_TAKEN","message":"email already registered"}`, nil, "EMAIL_TAKEN", "email already registered"},
		{"409 uses error field", http.StatusConflict, `{"error":"already applied"}`, nil, "BAD_REQUEST", "already applied"},
		{"418 generic", http.StatusTeapot, ``, nil, "HTTP_ERROR", "HTTP error: 418"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := transport.handleHTTPError(tt.statusCode, []byte(tt.body))

			var apiErr *types.Error
			if assert.True(t, errors.As(err, &apiErr)) {
				assert.Equal(t, tt.wantCode, apiErr.Code)
				assert.Equal(t, tt.wantMsg, apiErr.Message)
				assert.Equal(t, tt.statusCode, apiErr.StatusCode)
			}
			if tt.sentinel != nil {
				assert.True(t, errors.Is(err, tt.sentinel))
			}
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("data decoded", func(t *testing.T) {
		var out struct {
			Name string `json:"name"`
		}
		err := decodeEnvelope(&Response{StatusCode: 200, Body: []byte(`{"success":true,"data":{"name":"Reverb"}}`)}, &out)
		assert.NoError(t, err)
		assert.Equal(t, "Reverb", out.Name)
	})

	t.Run("success false is an error", func(t *testing.T) {
		err := decodeEnvelope(&Response{StatusCode: 200, Body: []byte(`{"success":false,"message":"nope"}`)}, nil)
		var apiErr *types.Error
		if assert.True(t, errors.As(err, &apiErr)) {
			assert.Equal(t, "API_ERROR", apiErr.Code)
			assert.Equal(t, "nope", apiErr.Message)
		}
	})

	t.Run("null data leaves result untouched", func(t *testing.T) {
		out := &struct{ ID string }{ID: "keep"}
		err := decodeEnvelope(&Response{StatusCode: 200, Body: []byte(`{"data":null}`)}, out)
		assert.NoError(t, err)
		assert.Equal(t, "keep", out.ID)
	})

	t.Run("empty body", func(t *testing.T) {
		assert.NoError(t, decodeEnvelope(&Response{StatusCode: 204}, nil))
	})

	t.Run("invalid json", func(t *testing.T) {
		assert.Error(t, decodeEnvelope(&Response{StatusCode: 200, Body: []byte(`<html>`)}, nil))
	})
}

func TestAuthPolicy_String(t *testing.T) {
	assert.Equal(t, "standard", AuthStandard.String())
	assert.Equal(t, "no-refresh", AuthNoRefresh.String())
	assert.Equal(t, "AuthPolicy(7)", AuthPolicy(7).String())
}
