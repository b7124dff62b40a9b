package notify

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stocksync/internal/domain"
)

func reportWithOutcome(o domain.Outcome) *domain.RunReport {
	report := domain.NewRunReport()
	report.AddOutcome(o)
	return report
}

func TestSubjectSelection(t *testing.T) {
	t.Run("errors win over everything", func(t *testing.T) {
		report := domain.NewRunReport()
		report.StockUpdates = 3
		report.AddError("boom")
		report.AddError("boom again")
		assert.Equal(t, "Inventory sync completed with 2 errors", Subject(report))
	})

	t.Run("mutations produce the success subject", func(t *testing.T) {
		report := domain.NewRunReport()
		report.StockUpdates = 3
		report.StockResets = 1
		report.NewVariants = []domain.FeedRecord{{SKU: "N1"}}
		assert.Equal(t, "Inventory sync successful - 3 stock updates, 1 resets, 1 new products", Subject(report))
	})

	t.Run("new products alone are a success", func(t *testing.T) {
		report := domain.NewRunReport()
		report.BrandNewProducts = []domain.FeedRecord{{SKU: "N1"}}
		assert.Contains(t, Subject(report), "successful")
	})

	t.Run("quiet run", func(t *testing.T) {
		assert.Equal(t, "Inventory sync completed - no changes required", Subject(domain.NewRunReport()))
	})
}

func TestSubjectCountsDroppedErrors(t *testing.T) {
	report := domain.NewRunReport()
	for i := 0; i < domain.MaxReportErrors+7; i++ {
		report.AddError(fmt.Sprintf("error %d", i))
	}
	assert.Equal(t, 7, report.DroppedErrors())
	assert.Equal(t,
		fmt.Sprintf("Inventory sync completed with %d errors", domain.MaxReportErrors+7),
		Subject(report))
}

func TestTextBodyListsChangedOutcomesOnly(t *testing.T) {
	report := domain.NewRunReport()
	report.AddOutcome(domain.Outcome{
		SKU: "CHANGED", Scenario: domain.ScenarioUpdate,
		StockBefore: 2, StockTarget: 7, Applied: true,
	})
	report.AddOutcome(domain.Outcome{
		SKU: "UNCHANGED", Scenario: domain.ScenarioUpdate,
		StockBefore: 5, StockTarget: 5, NoOp: true, Applied: true,
	})
	report.Finish()

	body := TextBody(report)
	assert.Contains(t, body, "SKU CHANGED | 2 -> 7 (+5)")
	assert.NotContains(t, body, "UNCHANGED")
}

func TestTextBodyCapsTableRows(t *testing.T) {
	report := domain.NewRunReport()
	for i := 0; i < maxTableRows+4; i++ {
		report.AddOutcome(domain.Outcome{
			SKU: fmt.Sprintf("SKU-%02d", i), Scenario: domain.ScenarioUpdate,
			StockBefore: 0, StockTarget: 1, Applied: true,
		})
	}
	report.Finish()

	body := TextBody(report)
	assert.Contains(t, body, "... and 4 more")
	assert.NotContains(t, body, fmt.Sprintf("SKU-%02d |", maxTableRows))
}

func TestTextBodyCapsErrors(t *testing.T) {
	report := domain.NewRunReport()
	for i := 0; i < maxBodyErrors+3; i++ {
		report.AddError(fmt.Sprintf("error %d", i))
	}
	report.Finish()

	body := TextBody(report)
	assert.Contains(t, body, "error 0")
	assert.Contains(t, body, fmt.Sprintf("error %d", maxBodyErrors-1))
	assert.NotContains(t, body, fmt.Sprintf("- error %d\n", maxBodyErrors))
	assert.Contains(t, body, "... and 3 more errors")
}

func TestTextBodyIncludesDeletionsAndIssues(t *testing.T) {
	report := domain.NewRunReport()
	report.Deletions = []domain.ProductDeletion{
		{DisplayName: "Trail Bike", VariantCount: 3, Applied: true},
		{DisplayName: "Gravel Bike", VariantCount: 1, Err: "catalog timeout"},
	}
	report.AddIntegrityIssue("X1", "dropped from import file")
	report.Finish()

	body := TextBody(report)
	assert.Contains(t, body, "Trail Bike (3 existing variants) - ok")
	assert.Contains(t, body, "Gravel Bike (1 existing variants) - FAILED: catalog timeout")
	assert.Contains(t, body, "SKU X1: dropped from import file")
}

func TestHTMLBodyEscapesUserData(t *testing.T) {
	report := reportWithOutcome(domain.Outcome{
		SKU: `<script>alert(1)</script>`, Scenario: domain.ScenarioReset,
		StockBefore: 4, StockTarget: 0, Applied: true,
	})
	report.Finish()

	body := HTMLBody(report)
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestHTMLBodyHoldsSummaryCounters(t *testing.T) {
	report := domain.NewRunReport()
	report.ProcessedFiles = 2
	report.ProcessedProducts = 41
	report.StockUpdates = 5
	report.StockResets = 3
	report.Finish()

	body := HTMLBody(report)
	assert.Contains(t, body, "<strong>Files processed:</strong> 2")
	assert.Contains(t, body, "<strong>Products processed:</strong> 41")
	assert.Contains(t, body, "<strong>Stock updates:</strong> 5")
	assert.Contains(t, body, "<strong>Stock resets:</strong> 3")
}

func TestErrorBodies(t *testing.T) {
	text := errorText("catalog unreachable", "dial tcp: timeout")
	assert.Contains(t, text, "ERROR: catalog unreachable")
	assert.Contains(t, text, "dial tcp: timeout")

	html := errorHTML("catalog unreachable", "<details>")
	assert.Contains(t, html, "catalog unreachable")
	assert.Contains(t, html, "&lt;details&gt;")
	assert.NotContains(t, html, "<details>")
}

func TestChangedOutcomesKeepsFailures(t *testing.T) {
	outcomes := []domain.Outcome{
		{SKU: "A", NoOp: true},
		{SKU: "B", NoOp: true, Err: "update failed"},
		{SKU: "C"},
	}
	changed := changedOutcomes(outcomes)
	var skus []string
	for _, o := range changed {
		skus = append(skus, o.SKU)
	}
	assert.Equal(t, []string{"B", "C"}, skus)
}

func TestReportDuration(t *testing.T) {
	report := domain.NewRunReport()
	report.StartedAt = time.Now().Add(-3 * time.Second)
	report.Finish()
	assert.GreaterOrEqual(t, report.Duration(), 3*time.Second)

	body := TextBody(report)
	assert.True(t, strings.Contains(body, "Duration:"))
}
