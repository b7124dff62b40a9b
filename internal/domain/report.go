package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxReportErrors caps the error list so a pathological run cannot produce
// an unreadable notification.
const MaxReportErrors = 50

// RunReport is the aggregate result of one run. It is built incrementally
// by the engine, the executor and the consolidator, consumed once by the
// notifier, then discarded. Nothing in it survives the run except through
// the outbound email.
type RunReport struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	ProcessedFiles    int
	ProcessedProducts int
	StockUpdates      int
	StockResets       int

	// SkippedNotInCatalog lists feed SKUs that were not stock-bearing
	// variants in the catalog and were classified as new-product candidates.
	SkippedNotInCatalog []string

	// Per-SKU decisions with their results.
	UpdateOutcomes []Outcome
	ResetOutcomes  []Outcome

	// New-product handling.
	BrandNewProducts []FeedRecord
	NewVariants      []FeedRecord
	Deletions        []ProductDeletion

	DataIntegrityIssues []DataIntegrityIssue
	Errors              []string
	errorsDropped       int

	// Paths of generated artifacts for email attachment. Empty when the run
	// produced none.
	ImportFilePath string
	ImagesZipPath  string
}

// NewRunReport creates an empty report stamped with a fresh run id.
func NewRunReport() *RunReport {
	return &RunReport{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
}

// AddError appends an error string, dropping beyond the cap.
func (r *RunReport) AddError(msg string) {
	if len(r.Errors) >= MaxReportErrors {
		r.errorsDropped++
		return
	}
	r.Errors = append(r.Errors, msg)
}

// DroppedErrors reports how many errors were discarded past the cap.
func (r *RunReport) DroppedErrors() int {
	return r.errorsDropped
}

// AddOutcome files an applied outcome under its scenario and bumps the
// matching counters. New-candidate outcomes are not counted here; they are
// tracked through the consolidator.
func (r *RunReport) AddOutcome(o Outcome) {
	switch o.Scenario {
	case ScenarioUpdate:
		r.UpdateOutcomes = append(r.UpdateOutcomes, o)
		if o.Applied && !o.NoOp {
			r.StockUpdates++
		}
	case ScenarioReset:
		r.ResetOutcomes = append(r.ResetOutcomes, o)
		if o.Applied && !o.NoOp {
			r.StockResets++
		}
	}
	if o.Err != "" {
		r.AddError("SKU " + o.SKU + ": " + o.Err)
	}
}

// AddIntegrityIssue records a report-only data integrity signal.
func (r *RunReport) AddIntegrityIssue(sku, reason string) {
	r.DataIntegrityIssues = append(r.DataIntegrityIssues, DataIntegrityIssue{SKU: sku, Reason: reason})
}

// Finish stamps the completion time.
func (r *RunReport) Finish() {
	r.FinishedAt = time.Now()
}

// Duration is the wall-clock length of the run.
func (r *RunReport) Duration() time.Duration {
	end := r.FinishedAt
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(r.StartedAt)
}

// HasErrors reports whether anything went wrong during the run.
func (r *RunReport) HasErrors() bool {
	return len(r.Errors) > 0 || r.errorsDropped > 0
}

// TotalMutations is the number of stock mutations actually submitted.
func (r *RunReport) TotalMutations() int {
	return r.StockUpdates + r.StockResets
}
