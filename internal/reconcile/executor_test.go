package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"stocksync/internal/domain"
)

type stockCall struct {
	parentID  string
	variantID string
	delta     int
}

// mockMutator records calls and fails on demand.
type mockMutator struct {
	stockCalls  []stockCall
	deleteCalls []string
	stockErr    error
	deleteErr   error
}

func (m *mockMutator) UpdateStock(_ context.Context, parentID, variantID string, delta int) error {
	m.stockCalls = append(m.stockCalls, stockCall{parentID: parentID, variantID: variantID, delta: delta})
	return m.stockErr
}

func (m *mockMutator) DeleteProduct(_ context.Context, parentID string) error {
	m.deleteCalls = append(m.deleteCalls, parentID)
	return m.deleteErr
}

func TestApplySubmitsDelta(t *testing.T) {
	mutator := &mockMutator{}
	executor := NewExecutor(mutator, zap.NewNop())

	outcome := domain.Outcome{
		SKU:         "A",
		Scenario:    domain.ScenarioUpdate,
		Record:      variantRecord("A", 5),
		StockBefore: 5,
		StockTarget: 2,
	}

	ok := executor.Apply(context.Background(), &outcome)

	require.True(t, ok)
	assert.True(t, outcome.Applied)
	require.Len(t, mutator.stockCalls, 1)
	assert.Equal(t, stockCall{parentID: "p-A", variantID: "v-A", delta: -3}, mutator.stockCalls[0])
}

func TestApplyNoOpIssuesNoCall(t *testing.T) {
	mutator := &mockMutator{}
	executor := NewExecutor(mutator, zap.NewNop())

	outcome := domain.Outcome{
		SKU:         "A",
		Scenario:    domain.ScenarioReset,
		Record:      variantRecord("A", 0),
		StockBefore: 0,
		StockTarget: 0,
		NoOp:        true,
	}

	ok := executor.Apply(context.Background(), &outcome)

	require.True(t, ok)
	assert.True(t, outcome.Applied)
	assert.Empty(t, mutator.stockCalls)
}

func TestApplyFailureIsRecordedNotRaised(t *testing.T) {
	mutator := &mockMutator{stockErr: errors.New("boom")}
	executor := NewExecutor(mutator, zap.NewNop())

	outcome := domain.Outcome{
		SKU:         "A",
		Scenario:    domain.ScenarioUpdate,
		Record:      variantRecord("A", 5),
		StockBefore: 5,
		StockTarget: 9,
	}

	ok := executor.Apply(context.Background(), &outcome)

	assert.False(t, ok)
	assert.False(t, outcome.Applied)
	assert.Contains(t, outcome.Err, "boom")
}

func TestApplyRefusesNonVariant(t *testing.T) {
	mutator := &mockMutator{}
	executor := NewExecutor(mutator, zap.NewNop())

	outcome := domain.Outcome{
		SKU:         "MAIN",
		Scenario:    domain.ScenarioReset,
		Record:      domain.CatalogRecord{SKU: "MAIN", IsVariant: false, CurrentStock: 5},
		StockBefore: 5,
		StockTarget: 0,
	}

	ok := executor.Apply(context.Background(), &outcome)

	assert.False(t, ok)
	assert.NotEmpty(t, outcome.Err)
	assert.Empty(t, mutator.stockCalls)
}

func TestApplyAllContinuesPastFailures(t *testing.T) {
	mutator := &mockMutator{stockErr: errors.New("down")}
	executor := NewExecutor(mutator, zap.NewNop())
	report := domain.NewRunReport()

	outcomes := []domain.Outcome{
		{
			SKU: "A", Scenario: domain.ScenarioUpdate,
			Record: variantRecord("A", 1), StockBefore: 1, StockTarget: 2,
		},
		{
			SKU: "B", Scenario: domain.ScenarioUpdate,
			Record: variantRecord("B", 3), StockBefore: 3, StockTarget: 3, NoOp: true,
		},
	}

	executor.ApplyAll(context.Background(), outcomes, report)

	// Both outcomes were attempted; the failure produced an error entry and
	// the no-op counted as applied without a mutation.
	assert.Len(t, mutator.stockCalls, 1)
	assert.Len(t, report.UpdateOutcomes, 2)
	assert.Equal(t, 0, report.StockUpdates)
	require.Len(t, report.Errors, 1)
	assert.Contains(t, report.Errors[0], "A")
}

func TestDeleteRecordsFailure(t *testing.T) {
	mutator := &mockMutator{deleteErr: errors.New("forbidden")}
	executor := NewExecutor(mutator, zap.NewNop())

	deletion := domain.ProductDeletion{ParentProductID: "p-1", DisplayName: "Bike"}
	ok := executor.Delete(context.Background(), &deletion)

	assert.False(t, ok)
	assert.False(t, deletion.Applied)
	assert.Contains(t, deletion.Err, "forbidden")
}

func TestDeleteSuccess(t *testing.T) {
	mutator := &mockMutator{}
	executor := NewExecutor(mutator, zap.NewNop())

	deletion := domain.ProductDeletion{ParentProductID: "p-1", DisplayName: "Bike", VariantCount: 3}
	ok := executor.Delete(context.Background(), &deletion)

	require.True(t, ok)
	assert.True(t, deletion.Applied)
	assert.Equal(t, []string{"p-1"}, mutator.deleteCalls)
}
