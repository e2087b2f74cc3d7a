package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"poselink/services"
)

func newTokenApp(providerURL string) *fiber.App {
	handler := NewTokenHandler(services.NewTokenClient(providerURL, ""))
	app := fiber.New()
	app.Post("/token-issue", handler.Issue)
	return app
}

func postJSON(app *fiber.App, path, body string) (*http.Response, error) {
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return app.Test(req)
}

func TestTokenIssue(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"opaque"}`))
	}))
	defer provider.Close()

	resp, err := postJSON(newTokenApp(provider.URL), "/token-issue", `{"identity":"op","room":"AB12CD"}`)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, "opaque", result["token"])
}

func TestTokenIssueMissingFields(t *testing.T) {
	resp, err := postJSON(newTokenApp("http://unused"), "/token-issue", `{"identity":"op"}`)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestTokenIssueProviderFailureIsGeneric(t *testing.T) {
	resp, err := postJSON(newTokenApp(""), "/token-issue", `{"identity":"op","room":"AB12CD"}`)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadGateway, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var result map[string]string
	require.NoError(t, json.Unmarshal(body, &result))
	require.Equal(t, "token service unavailable", result["error"])
}
