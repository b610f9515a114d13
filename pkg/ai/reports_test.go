package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/openai/openai-go/v2/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

func sampleSummary() *models.SalesSummary {
	return &models.SalesSummary{
		From:        time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		To:          time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		TotalOrders: 3,
		Revenue:     4500,
	}
}

func TestSalesReportDisabled(t *testing.T) {
	reporter := NewReporter(Settings{}, zap.NewNop())
	assert.False(t, reporter.Enabled())

	resp := reporter.SalesReport(context.Background(), sampleSummary())
	assert.Equal(t, "success", resp.Status)
	assert.False(t, resp.AIEnabled)
	assert.Empty(t, resp.Data.AIInsights)
	assert.Equal(t, "Raw sales data (AI insights unavailable)", resp.Data.Summary)
	assert.Equal(t, sampleSummary(), resp.Data.RawData)
}

func fakeCompletions(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "chat/completions")

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		var req map[string]any
		if assert.NoError(t, json.Unmarshal(body, &req)) {
			assert.Equal(t, "test-deployment", req["model"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1700000000,
			"model":   "test-deployment",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
}

func TestSalesReportWithInsights(t *testing.T) {
	server := fakeCompletions(t, http.StatusOK, "Revenue is healthy.")
	defer server.Close()

	reporter := NewReporter(Settings{
		Endpoint:   server.URL + "/",
		APIKey:     "test-key",
		Deployment: "test-deployment",
		Options:    []option.RequestOption{option.WithMaxRetries(0)},
	}, zap.NewNop())
	require.True(t, reporter.Enabled())

	resp := reporter.SalesReport(context.Background(), sampleSummary())
	assert.True(t, resp.AIEnabled)
	assert.Equal(t, "Revenue is healthy.", resp.Data.AIInsights)
	assert.Equal(t, "AI-generated sales insights and recommendations", resp.Data.Summary)
	assert.Empty(t, resp.Data.Error)
}

func TestInventoryReportCompletionFailure(t *testing.T) {
	server := fakeCompletions(t, http.StatusInternalServerError, "")
	defer server.Close()

	reporter := NewReporter(Settings{
		Endpoint:   server.URL + "/",
		APIKey:     "test-key",
		Deployment: "test-deployment",
		Options:    []option.RequestOption{option.WithMaxRetries(0)},
	}, zap.NewNop())

	resp := reporter.InventoryReport(context.Background(), []models.Product{{Name: "Lamp", Stock: 1}}, 5)
	assert.Equal(t, "success", resp.Status)
	assert.Empty(t, resp.Data.AIInsights)
	assert.Contains(t, resp.Data.Error, "AI analysis failed")
}

func TestPromptsCarryData(t *testing.T) {
	prompt := formatSalesDataPrompt(sampleSummary())
	assert.Contains(t, prompt, "2025-01-01 to 2025-02-01")
	assert.Contains(t, prompt, `"revenue": 4500`)

	prompt = formatInventoryDataPrompt([]models.Product{{Name: "Lamp", Stock: 1}}, 5)
	assert.Contains(t, prompt, "5 or fewer")
	assert.Contains(t, prompt, "Lamp")
}
