package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-triage/internal/config"
	"github.com/spec-kit/helpdesk-triage/internal/persistence"
)

func readiness(t *testing.T, h *HealthHandler) (int, map[string]any) {
	t.Helper()
	app := fiber.New()
	app.Get("/ready", h.Ready)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ready", nil), -1)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealthHandler_ReadyWithoutStores(t *testing.T) {
	status, body := readiness(t, NewHealthHandler("helpdesk-triage", "test", nil, nil))

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]any{"postgres": "disabled", "redis": "disabled"}, body["dependencies"])
}

func TestHealthHandler_RedisDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := persistence.ConnectRedis(context.Background(), config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	defer rdb.Close()

	h := NewHealthHandler("helpdesk-triage", "test", &persistence.Postgres{}, rdb)
	status, body := readiness(t, h)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["dependencies"].(map[string]any)["redis"])

	mr.Close()
	status, body = readiness(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "disabled", details["postgres"])
	assert.NotEqual(t, "ok", details["redis"])
}
