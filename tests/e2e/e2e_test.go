//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	baseURL = getEnv("PRESSDESK_GATE_URL", "http://127.0.0.1:8080")
	apiBase = baseURL + "/api/v1"

	adminEmail    = getEnv("PRESSDESK_E2E_EMAIL", "chief@newsroom.example")
	adminPassword = getEnv("PRESSDESK_E2E_PASSWORD", "")
)

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

type TestClient struct {
	httpClient *http.Client
}

func NewTestClient() *TestClient {
	return &TestClient{
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *TestClient) Do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, _ := http.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")

	return c.httpClient.Do(req)
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestE2E_GateWorkflows(t *testing.T) {
	if adminPassword == "" {
		t.Skip("set PRESSDESK_E2E_PASSWORD to run against a live gate")
	}

	client := NewTestClient()

	t.Run("Health", func(t *testing.T) {
		resp, err := client.Do("GET", baseURL+"/health", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("Login And Session", func(t *testing.T) {
		resp, err := client.Do("POST", apiBase+"/auth/login", map[string]string{
			"email":    adminEmail,
			"password": adminPassword,
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		admin := body["admin"].(map[string]any)
		assert.Equal(t, adminEmail, admin["email"])

		// The confirmed transition is asynchronous; poll /auth/me.
		require.Eventually(t, func() bool {
			resp, err := client.Do("GET", apiBase+"/auth/me", nil)
			if err != nil || resp.StatusCode != http.StatusOK {
				return false
			}
			return decode(t, resp)["state"] != nil
		}, 5*time.Second, 100*time.Millisecond)
	})

	t.Run("Authorization Checks", func(t *testing.T) {
		resp, err := client.Do("GET", apiBase+"/authz/can/createArticles", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decode(t, resp)
		assert.Equal(t, true, body["allowed"])

		resp, err = client.Do("GET", apiBase+"/authz/access?path=/admin/settings", nil)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp)
	})

	t.Run("Wrong Password Rejected", func(t *testing.T) {
		resp, err := client.Do("POST", apiBase+"/auth/login", map[string]string{
			"email":    adminEmail,
			"password": "definitely-wrong",
		})
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("Logout", func(t *testing.T) {
		resp, err := client.Do("POST", apiBase+"/auth/logout", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp, err = client.Do("GET", apiBase+"/auth/me", nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}
