package notify

import (
	"fmt"
	"html"
	"strings"
	"time"

	"stocksync/internal/domain"
)

// Rendering caps keep the email readable; full detail lives in the logs.
const (
	maxTableRows  = 10
	maxBodyErrors = 5
)

// Subject derives the subject line from the run counters.
func Subject(report *domain.RunReport) string {
	switch {
	case report.HasErrors():
		return fmt.Sprintf("Inventory sync completed with %d errors", len(report.Errors)+report.DroppedErrors())
	case report.TotalMutations() > 0 || len(report.BrandNewProducts)+len(report.NewVariants) > 0:
		return fmt.Sprintf("Inventory sync successful - %d stock updates, %d resets, %d new products",
			report.StockUpdates, report.StockResets, len(report.BrandNewProducts)+len(report.NewVariants))
	default:
		return "Inventory sync completed - no changes required"
	}
}

// TextBody renders the plain-text alternative.
func TextBody(report *domain.RunReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INVENTORY SYNC REPORT\nRun: %s\nExecution time: %s\nDuration: %s\n\n",
		report.RunID, report.StartedAt.Format("2006-01-02 15:04:05"), report.Duration().Round(time.Millisecond))

	fmt.Fprintf(&b, "SUMMARY\n=======\n")
	fmt.Fprintf(&b, "Files processed: %d\n", report.ProcessedFiles)
	fmt.Fprintf(&b, "Products processed: %d\n", report.ProcessedProducts)
	fmt.Fprintf(&b, "Stock updates: %d\n", report.StockUpdates)
	fmt.Fprintf(&b, "Stock resets: %d\n", report.StockResets)
	fmt.Fprintf(&b, "New products: %d brand-new, %d new variants\n", len(report.BrandNewProducts), len(report.NewVariants))
	fmt.Fprintf(&b, "Products scheduled for re-import: %d\n", len(report.Deletions))
	fmt.Fprintf(&b, "Data integrity issues: %d\n", len(report.DataIntegrityIssues))
	fmt.Fprintf(&b, "Errors: %d\n", len(report.Errors)+report.DroppedErrors())

	if updates := changedOutcomes(report.UpdateOutcomes); len(updates) > 0 {
		fmt.Fprintf(&b, "\nSTOCK UPDATES (%d)\n%s\n", len(updates), strings.Repeat("=", 50))
		for i, o := range updates {
			if i >= maxTableRows {
				fmt.Fprintf(&b, "... and %d more\n", len(updates)-maxTableRows)
				break
			}
			fmt.Fprintf(&b, "SKU %s | %d -> %d (%+d)\n", o.SKU, o.StockBefore, o.StockTarget, o.Delta())
		}
	}

	if resets := changedOutcomes(report.ResetOutcomes); len(resets) > 0 {
		fmt.Fprintf(&b, "\nSTOCK RESETS (%d)\n%s\n", len(resets), strings.Repeat("=", 50))
		for i, o := range resets {
			if i >= maxTableRows {
				fmt.Fprintf(&b, "... and %d more\n", len(resets)-maxTableRows)
				break
			}
			fmt.Fprintf(&b, "SKU %s | %d -> 0 %s\n", o.SKU, o.StockBefore, o.Attributes)
		}
	}

	if len(report.Deletions) > 0 {
		fmt.Fprintf(&b, "\nPRODUCTS DELETED FOR RE-IMPORT (%d)\n%s\n", len(report.Deletions), strings.Repeat("=", 50))
		for _, d := range report.Deletions {
			status := "ok"
			if d.Err != "" {
				status = "FAILED: " + d.Err
			}
			fmt.Fprintf(&b, "%s (%d existing variants) - %s\n", d.DisplayName, d.VariantCount, status)
		}
	}

	if len(report.DataIntegrityIssues) > 0 {
		fmt.Fprintf(&b, "\nDATA INTEGRITY ISSUES (%d)\n%s\n", len(report.DataIntegrityIssues), strings.Repeat("=", 50))
		for _, issue := range report.DataIntegrityIssues {
			fmt.Fprintf(&b, "SKU %s: %s\n", issue.SKU, issue.Reason)
		}
	}

	if len(report.Errors) > 0 {
		fmt.Fprintf(&b, "\nERRORS (%d)\n%s\n", len(report.Errors)+report.DroppedErrors(), strings.Repeat("=", 50))
		for i, e := range report.Errors {
			if i >= maxBodyErrors {
				break
			}
			fmt.Fprintf(&b, "- %s\n", e)
		}
		if extra := len(report.Errors) + report.DroppedErrors() - maxBodyErrors; extra > 0 {
			fmt.Fprintf(&b, "... and %d more errors\n", extra)
		}
	}

	b.WriteString("\nThis is an automated notification from the inventory sync system.\n")
	return b.String()
}

// HTMLBody renders the HTML alternative.
func HTMLBody(report *domain.RunReport) string {
	var b strings.Builder
	b.WriteString(`<html><head><style>
body { font-family: Arial, sans-serif; margin: 20px; }
.header { background-color: #f0f8ff; padding: 20px; border-radius: 5px; }
.summary { background-color: #f9f9f9; padding: 15px; margin: 20px 0; border-radius: 5px; }
.error { color: #dc3545; }
table { border-collapse: collapse; width: 100%; margin: 10px 0; }
th, td { border: 1px solid #ddd; padding: 8px; text-align: left; }
th { background-color: #f2f2f2; }
.footer { margin-top: 30px; font-size: 12px; color: #666; }
</style></head><body>`)

	fmt.Fprintf(&b, `<div class="header"><h2>Inventory Sync Report</h2><p><strong>Execution time:</strong> %s</p></div>`,
		report.StartedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, `<div class="summary"><h3>Summary</h3><ul>
<li><strong>Files processed:</strong> %d</li>
<li><strong>Products processed:</strong> %d</li>
<li><strong>Stock updates:</strong> %d</li>
<li><strong>Stock resets:</strong> %d</li>
<li><strong>New products:</strong> %d brand-new, %d new variants</li>
<li><strong>Errors:</strong> <span class="error">%d</span></li>
</ul></div>`,
		report.ProcessedFiles, report.ProcessedProducts, report.StockUpdates, report.StockResets,
		len(report.BrandNewProducts), len(report.NewVariants), len(report.Errors)+report.DroppedErrors())

	writeOutcomeTable(&b, "Stock Updates", changedOutcomes(report.UpdateOutcomes))
	writeOutcomeTable(&b, "Stock Resets", changedOutcomes(report.ResetOutcomes))

	if len(report.Deletions) > 0 {
		b.WriteString(`<h3>Products Deleted for Re-Import</h3><table><tr><th>Product</th><th>Existing Variants</th><th>Status</th></tr>`)
		for _, d := range report.Deletions {
			status := "ok"
			if d.Err != "" {
				status = "FAILED: " + d.Err
			}
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%d</td><td>%s</td></tr>",
				html.EscapeString(d.DisplayName), d.VariantCount, html.EscapeString(status))
		}
		b.WriteString("</table>")
	}

	if len(report.DataIntegrityIssues) > 0 {
		b.WriteString(`<h3 class="error">Data Integrity Issues</h3><ul>`)
		for _, issue := range report.DataIntegrityIssues {
			fmt.Fprintf(&b, "<li>SKU %s: %s</li>", html.EscapeString(issue.SKU), html.EscapeString(issue.Reason))
		}
		b.WriteString("</ul>")
	}

	if len(report.Errors) > 0 {
		b.WriteString(`<h3 class="error">Errors</h3><ul>`)
		for i, e := range report.Errors {
			if i >= maxBodyErrors {
				break
			}
			fmt.Fprintf(&b, `<li class="error">%s</li>`, html.EscapeString(e))
		}
		if extra := len(report.Errors) + report.DroppedErrors() - maxBodyErrors; extra > 0 {
			fmt.Fprintf(&b, "<li>... and %d more errors</li>", extra)
		}
		b.WriteString("</ul>")
	}

	b.WriteString(`<div class="footer"><p>This is an automated notification from the inventory sync system.</p></div></body></html>`)
	return b.String()
}

func writeOutcomeTable(b *strings.Builder, title string, outcomes []domain.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	fmt.Fprintf(b, "<h3>%s</h3><table><tr><th>SKU</th><th>Before</th><th>After</th><th>Change</th><th>Status</th></tr>", title)
	for i, o := range outcomes {
		if i >= maxTableRows {
			fmt.Fprintf(b, `<tr><td colspan="5">... and %d more</td></tr>`, len(outcomes)-maxTableRows)
			break
		}
		status := "ok"
		if o.Err != "" {
			status = "FAILED: " + o.Err
		}
		fmt.Fprintf(b, "<tr><td>%s</td><td>%d</td><td>%d</td><td>%+d</td><td>%s</td></tr>",
			html.EscapeString(o.SKU), o.StockBefore, o.StockTarget, o.Delta(), html.EscapeString(status))
	}
	b.WriteString("</table>")
}

// changedOutcomes filters out no-ops; the report email shows decisions
// that moved stock or failed trying.
func changedOutcomes(outcomes []domain.Outcome) []domain.Outcome {
	var changed []domain.Outcome
	for _, o := range outcomes {
		if !o.NoOp || o.Err != "" {
			changed = append(changed, o)
		}
	}
	return changed
}

func errorText(message, details string) string {
	return fmt.Sprintf("INVENTORY SYNC ERROR\nTime: %s\n\nERROR: %s\n\nDETAILS:\n%s\n\nPlease check the system logs and retry the operation if necessary.\n",
		time.Now().Format("2006-01-02 15:04:05"), message, details)
}

func errorHTML(message, details string) string {
	return fmt.Sprintf(`<html><body style="font-family: Arial, sans-serif; margin: 20px;">
<div style="background-color: #f8d7da; color: #721c24; padding: 20px; border-radius: 5px;">
<h2>Inventory Sync Error</h2><p><strong>Time:</strong> %s</p><p><strong>Error:</strong> %s</p></div>
<div style="margin: 20px 0;"><h3>Details:</h3><pre style="background-color: #f8f9fa; padding: 15px; border-radius: 5px;">%s</pre></div>
<p>Please check the system logs and retry the operation if necessary.</p></body></html>`,
		time.Now().Format("2006-01-02 15:04:05"), html.EscapeString(message), html.EscapeString(details))
}
