package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-gateway/app"
	"github.com/upb/llm-chat-gateway/config"
	"github.com/upb/llm-chat-gateway/middleware"
	"go.uber.org/zap/zaptest"
)

const testSecret = "routes-test-secret"

func newServer(t *testing.T, authSecret string) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
		Server: config.ServerConfig{
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Credentials: config.CredentialsConfig{
			Store: config.CredentialStoreFile,
			File:  filepath.Join(t.TempDir(), "credentials.yaml"),
		},
		Transport: config.TransportConfig{
			Mode:      config.TransportDirect,
			Timeout:   5 * time.Second,
			ChunkSize: 4096,
		},
		Models: config.ModelsConfig{CacheTTL: time.Hour, CacheSize: 8},
		Secrets: config.SecretsConfig{EnvPrefix: "LLM_SECRET"},
		Auth:    config.AuthConfig{JWTSecret: authSecret},
		Observability: config.ObservabilityConfig{
			LogLevel:  "error",
			LogFormat: "json",
		},
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = deps.Close(context.Background()) })

	ts := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(ts.Close)
	return ts
}

func signedToken(t *testing.T) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func TestHealthEndpoints(t *testing.T) {
	ts := newServer(t, "")

	t.Run("healthz", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/healthz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))

		var body struct {
			Data struct {
				Status string `json:"status"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Data.Status)
	})

	t.Run("readyz with file store", func(t *testing.T) {
		resp, err := http.Get(ts.URL + "/readyz")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("request id is echoed", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/healthz", nil)
		require.NoError(t, err)
		req.Header.Set(middleware.RequestIDHeader, "req-123")

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, "req-123", resp.Header.Get(middleware.RequestIDHeader))
	})
}

func TestAPIEndpoints_RequireAuth(t *testing.T) {
	ts := newServer(t, testSecret)

	testCases := []struct {
		name           string
		method         string
		path           string
		expectedStatus int
	}{
		{"send turn", "POST", "/api/v1/turns", http.StatusUnauthorized},
		{"list providers", "GET", "/api/v1/providers", http.StatusUnauthorized},
		{"usage", "GET", "/api/v1/metrics/usage", http.StatusUnauthorized},
		{"list credentials", "GET", "/api/v1/credentials", http.StatusUnauthorized},
		{"list models", "GET", "/api/v1/credentials/550e8400-e29b-41d4-a716-446655440000/models", http.StatusUnauthorized},
		{"not found", "GET", "/nonexistent", http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, ts.URL+tc.path, nil)
			require.NoError(t, err)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tc.expectedStatus, resp.StatusCode, "endpoint: %s %s", tc.method, tc.path)
		})
	}

	t.Run("valid token", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/providers", nil)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+signedToken(t))

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestCredentialRoutes(t *testing.T) {
	ts := newServer(t, "")

	body, _ := json.Marshal(map[string]string{
		"providerId": "ollama",
		"label":      "Local",
		"baseUrl":    "http://localhost:11434",
	})
	resp, err := http.Post(ts.URL+"/api/v1/credentials", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	require.NotEmpty(t, created.Data.ID)

	resp, err = http.Get(ts.URL + "/api/v1/credentials/" + created.Data.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/v1/credentials")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCORSMiddleware(t *testing.T) {
	ts := newServer(t, "")

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/turns", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}
