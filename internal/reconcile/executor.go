package reconcile

import (
	"context"

	"go.uber.org/zap"

	"stocksync/internal/domain"
)

// Mutator is the mutation capability of the catalog service the executor
// consumes. Stock mutations are delta-based; the service keeps the
// absolute counter.
type Mutator interface {
	UpdateStock(ctx context.Context, parentID, variantID string, delta int) error
	DeleteProduct(ctx context.Context, parentID string) error
}

// Executor applies reconciliation outcomes against the catalog service.
// It never returns an error: a failure is recorded on the outcome and the
// run continues, so one bad SKU cannot abort the batch.
type Executor struct {
	mutator Mutator
	logger  *zap.Logger
}

// NewExecutor creates an executor over the given mutation capability.
func NewExecutor(mutator Mutator, logger *zap.Logger) *Executor {
	return &Executor{mutator: mutator, logger: logger}
}

// Apply executes one outcome, mutating it in place with the result. The
// delta is always computed from the index snapshot the decision was made
// from, never from a fresh read, so the run stays internally consistent
// even if the catalog moved underneath it.
func (e *Executor) Apply(ctx context.Context, outcome *domain.Outcome) bool {
	if !outcome.Record.IsVariant {
		// Structurally unreachable: the index builder only emits variants.
		// Refuse anyway rather than mutate a main product.
		e.logger.Warn("Refusing to mutate non-variant record",
			zap.String("sku", outcome.SKU),
		)
		outcome.Err = "record is not a variant; mutation refused"
		return false
	}

	if outcome.NoOp || outcome.Delta() == 0 {
		outcome.Applied = true
		return true
	}

	err := e.mutator.UpdateStock(ctx, outcome.Record.ParentProductID, outcome.Record.VariantID, outcome.Delta())
	if err != nil {
		e.logger.Error("Stock mutation failed",
			zap.String("sku", outcome.SKU),
			zap.Int("delta", outcome.Delta()),
			zap.Error(err),
		)
		outcome.Err = err.Error()
		return false
	}

	e.logger.Info("Stock updated",
		zap.String("sku", outcome.SKU),
		zap.Int("from", outcome.StockBefore),
		zap.Int("to", outcome.StockTarget),
	)
	outcome.Applied = true
	return true
}

// ApplyAll executes every outcome serially and files each into the report.
func (e *Executor) ApplyAll(ctx context.Context, outcomes []domain.Outcome, report *domain.RunReport) {
	for i := range outcomes {
		e.Apply(ctx, &outcomes[i])
		report.AddOutcome(outcomes[i])
	}
}

// Delete removes a whole product with its variants. Deleting an
// already-absent product is success; only hard transport or auth failures
// are recorded.
func (e *Executor) Delete(ctx context.Context, deletion *domain.ProductDeletion) bool {
	err := e.mutator.DeleteProduct(ctx, deletion.ParentProductID)
	if err != nil {
		e.logger.Error("Product deletion failed",
			zap.String("product_id", deletion.ParentProductID),
			zap.String("name", deletion.DisplayName),
			zap.Error(err),
		)
		deletion.Err = err.Error()
		return false
	}

	e.logger.Info("Product deleted for re-import",
		zap.String("product_id", deletion.ParentProductID),
		zap.String("name", deletion.DisplayName),
		zap.Int("variants", deletion.VariantCount),
	)
	deletion.Applied = true
	return true
}
