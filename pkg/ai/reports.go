package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"julianmorley.ca/con-plar/storefront/pkg/models"
)

// AIReportResponse represents the structure of AI-generated reports
type AIReportResponse struct {
	Status      string     `json:"status"`
	Data        ReportData `json:"data"`
	GeneratedAt time.Time  `json:"generated_at"`
	AIEnabled   bool       `json:"ai_enabled"`
}

type ReportData struct {
	RawData    interface{} `json:"raw_data"`
	AIInsights string      `json:"ai_insights,omitempty"`
	Summary    string      `json:"summary"`
	Error      string      `json:"error,omitempty"`
}

// SalesReport wraps a sales summary, adding insights when the AI service is enabled.
// A failed completion is reported inside the response, never as an error.
func (r *Reporter) SalesReport(ctx context.Context, summary *models.SalesSummary) *AIReportResponse {
	return r.report(ctx, summary, "sales", SalesReportSystemPrompt, formatSalesDataPrompt(summary))
}

// InventoryReport covers products at or below threshold units.
func (r *Reporter) InventoryReport(ctx context.Context, products []models.Product, threshold int) *AIReportResponse {
	return r.report(ctx, products, "inventory", InventoryReportSystemPrompt, formatInventoryDataPrompt(products, threshold))
}

func (r *Reporter) report(ctx context.Context, raw interface{}, kind, systemPrompt, userPrompt string) *AIReportResponse {
	response := &AIReportResponse{
		Status:      "success",
		GeneratedAt: time.Now().UTC(),
		AIEnabled:   r.Enabled(),
		Data: ReportData{
			RawData: raw,
			Summary: fmt.Sprintf("Raw %s data (AI insights unavailable)", kind),
		},
	}
	if !r.Enabled() {
		return response
	}

	insights, err := r.generateCompletion(ctx, systemPrompt, userPrompt)
	if err != nil {
		response.Data.Error = "AI analysis failed: " + err.Error()
		return response
	}
	response.Data.AIInsights = insights
	response.Data.Summary = fmt.Sprintf("AI-generated %s insights and recommendations", kind)
	return response
}

func formatSalesDataPrompt(summary *models.SalesSummary) string {
	jsonData, _ := json.MarshalIndent(summary, "", "  ")
	return fmt.Sprintf(`Analyze the following sales summary for %s to %s and provide business insights:

%s

Please provide:
1. Key performance highlights
2. Areas of concern or opportunity
3. Specific recommendations for business growth
4. Actionable next steps for the management team`,
		summary.From.Format(time.DateOnly), summary.To.Format(time.DateOnly), string(jsonData))
}

func formatInventoryDataPrompt(products []models.Product, threshold int) string {
	jsonData, _ := json.MarshalIndent(products, "", "  ")
	return fmt.Sprintf(`Analyze the following products with %d or fewer units in stock and provide operational insights:

%s

Please provide:
1. Immediate actions required for stock management
2. Reorder priorities
3. Cost reduction recommendations`, threshold, string(jsonData))
}
