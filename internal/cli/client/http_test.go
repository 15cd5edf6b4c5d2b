package client

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "hvm_0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewAPIClientWithConfig(testAPIKey, srv.URL)
	require.NoError(t, err)
	return c
}

func TestAPIClient_Get_SetsAuthHeader(t *testing.T) {
	var gotAuth, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(APIResponse{Data: json.RawMessage(`{"ok":true}`)})
	})

	resp, err := c.Get("/notifications/unread")
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+testAPIKey, gotAuth)
	assert.Equal(t, "/api/v1/notifications/unread", gotPath)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Data))
}

func TestAPIClient_Post_SendsJSONBody(t *testing.T) {
	var gotContentType string
	var gotBody map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(APIResponse{Data: json.RawMessage(`{"id":1}`)})
	})

	resp, err := c.Post("/resources", map[string]string{"content": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "hello", gotBody["content"])
	assert.JSONEq(t, `{"id":1}`, string(resp.Data))
}

func TestAPIClient_Delete_NoContent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	resp, err := c.Delete("/resources/1")
	require.NoError(t, err)
	assert.Empty(t, resp.Data)
}

func TestAPIClient_ErrorResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(APIResponse{Error: "request already pending"})
	})

	_, err := c.Post("/knowledge/requests", map[string]any{"embedding_id": 1, "question": "q"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "request already pending", apiErr.Message)
}

func TestAPIClient_ErrorResponse_NonJSONBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	})

	_, err := c.Get("/retrieve")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "upstream unavailable")
}

func TestNewAPIClientWithCmd_EnvCascade(t *testing.T) {
	t.Setenv(envAPIKey, testAPIKey)
	t.Setenv(envAPIURL, "http://env:8080")

	c, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, c.apiKey)
	assert.Equal(t, "http://env:8080", c.baseURL)
}

func TestNewAPIClientWithCmd_GlobalConfigFallback(t *testing.T) {
	t.Setenv(envAPIKey, "")
	t.Setenv(envAPIURL, "")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	overrideConfigPaths(t, tmpDir, configPath)
	require.NoError(t, SaveGlobalConfig(&GlobalConfig{
		APIKey: testAPIKey,
		APIURL: "http://global:8080",
	}))

	c, err := NewAPIClientWithCmd(nil)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, c.apiKey)
	assert.Equal(t, "http://global:8080", c.baseURL)
}

func TestNewAPIClientWithCmd_NoCredentials(t *testing.T) {
	t.Setenv(envAPIKey, "")
	t.Setenv(envAPIURL, "")

	tmpDir := t.TempDir()
	overrideConfigPaths(t, tmpDir, filepath.Join(tmpDir, "config.json"))

	_, err := NewAPIClientWithCmd(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), envAPIKey)
}

func TestAPIClient_EventsURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		want    string
		wantErr bool
	}{
		{
			name:    "http becomes ws",
			baseURL: "http://localhost:8080",
			want:    "ws://localhost:8080/api/v1/events?api_key=" + testAPIKey,
		},
		{
			name:    "https becomes wss",
			baseURL: "https://hive.example.com",
			want:    "wss://hive.example.com/api/v1/events?api_key=" + testAPIKey,
		},
		{
			name:    "unsupported scheme",
			baseURL: "ftp://localhost",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewAPIClientWithConfig(testAPIKey, tt.baseURL)
			require.NoError(t, err)

			got, err := c.eventsURL()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
