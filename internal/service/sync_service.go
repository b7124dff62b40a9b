package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"go.uber.org/zap"

	"stocksync/internal/catalog"
	"stocksync/internal/config"
	"stocksync/internal/consolidate"
	"stocksync/internal/database"
	"stocksync/internal/domain"
	"stocksync/internal/feed"
	"stocksync/internal/notify"
	"stocksync/internal/reconcile"
	"stocksync/internal/source"
)

// SyncService orchestrates one reconciliation run: source check, feed
// normalization, catalog indexing, reconciliation, mutation, new-product
// consolidation and the closing notification.
type SyncService struct {
	cfg        *config.Config
	logger     *zap.Logger
	catalog    *catalog.Client
	source     *source.Client
	watcher    *source.Watcher
	store      *database.Store
	normalizer *feed.Normalizer
	executor   *reconcile.Executor
	notifier   *notify.Notifier
	reference  *consolidate.Reference

	// Guards serve-mode triggers; runs never overlap.
	running atomic.Bool
}

// NewSyncService wires the run pipeline from configuration. The reference
// sheet is optional; without it import files carry no descriptions and no
// images are bundled.
func NewSyncService(cfg *config.Config, store *database.Store, logger *zap.Logger) *SyncService {
	catalogClient := catalog.NewClient(cfg.Catalog, logger)
	sourceClient := source.NewClient(cfg.Source, logger)

	var reference *consolidate.Reference
	if cfg.Importer.ReferenceSheetPath != "" {
		ref, err := consolidate.LoadReference(cfg.Importer.ReferenceSheetPath, logger)
		if err != nil {
			logger.Warn("Reference sheet could not be loaded, continuing without it",
				zap.String("path", cfg.Importer.ReferenceSheetPath),
				zap.Error(err),
			)
		} else {
			reference = ref
		}
	}

	return &SyncService{
		cfg:        cfg,
		logger:     logger,
		catalog:    catalogClient,
		source:     sourceClient,
		watcher:    source.NewWatcher(sourceClient, store, cfg.Source, cfg.Files, logger),
		store:      store,
		normalizer: feed.NewNormalizer(cfg.Files.AllowedExtensions, logger),
		executor:   reconcile.NewExecutor(catalogClient, logger),
		notifier:   notify.NewNotifier(cfg.SMTP, logger),
		reference:  reference,
	}
}

// Run executes one full sync cycle. Per-SKU failures are absorbed into the
// report; only failures that make the whole run impossible (source or
// catalog unreachable) surface as errors.
func (s *SyncService) Run(ctx context.Context) error {
	files, err := s.watcher.CheckForUpdates(ctx)
	if err != nil {
		return fmt.Errorf("source check failed: %w", err)
	}
	if len(files) == 0 {
		s.logger.Info("No new or updated feed files, nothing to do")
		return nil
	}

	report := domain.NewRunReport()
	s.logger.Info("Starting sync run",
		zap.String("run_id", report.RunID),
		zap.Int("files", len(files)),
	)

	for _, path := range files {
		s.processFile(ctx, path, report)
	}
	report.Finish()

	if err := s.store.RecordRun(ctx, report); err != nil {
		s.logger.Error("Failed to record run history", zap.Error(err))
	}
	if err := s.notifier.SendReport(report); err != nil {
		s.logger.Error("Failed to send run report", zap.Error(err))
	}

	source.CleanupTempFiles(append(files, report.ImportFilePath, report.ImagesZipPath), s.logger)

	s.logger.Info("Sync run finished",
		zap.String("run_id", report.RunID),
		zap.Duration("duration", report.Duration()),
		zap.Int("stock_updates", report.StockUpdates),
		zap.Int("stock_resets", report.StockResets),
		zap.Int("errors", len(report.Errors)),
	)
	return nil
}

// ProcessFile reconciles a single local feed file outside the source flow,
// producing and sending a report of its own.
func (s *SyncService) ProcessFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("feed file not readable: %w", err)
	}

	report := domain.NewRunReport()
	s.processFile(ctx, path, report)
	report.Finish()

	if err := s.store.RecordRun(ctx, report); err != nil {
		s.logger.Error("Failed to record run history", zap.Error(err))
	}
	if err := s.notifier.SendReport(report); err != nil {
		s.logger.Error("Failed to send run report", zap.Error(err))
	}
	source.CleanupTempFiles([]string{report.ImportFilePath, report.ImagesZipPath}, s.logger)
	return nil
}

// processFile runs the reconciliation pipeline for one feed file. A fresh
// catalog index is built per file so each file's decisions are made against
// the catalog state its predecessors produced.
func (s *SyncService) processFile(ctx context.Context, path string, report *domain.RunReport) {
	name := filepath.Base(path)
	s.logger.Info("Processing feed file", zap.String("file", name))

	records, err := s.normalizer.NormalizeFile(path)
	if err != nil {
		if errors.Is(err, feed.ErrNoFeedData) {
			// An unreadable or empty feed must never be interpreted as "reset
			// everything"; the file is skipped whole.
			s.logger.Error("Feed file has no usable data, skipping",
				zap.String("file", name),
			)
		}
		report.AddError(fmt.Sprintf("file %s: %v", name, err))
		return
	}

	index, withoutVariants, err := catalog.BuildIndex(ctx, s.catalog, s.cfg.Catalog.CategoryID, s.logger)
	if err != nil {
		report.AddError(fmt.Sprintf("file %s: %v", name, err))
		return
	}
	report.ProcessedFiles++
	report.ProcessedProducts += len(records)
	if len(withoutVariants) > 0 {
		s.logger.Info("Products without variants excluded from reconciliation",
			zap.Int("count", len(withoutVariants)),
		)
	}

	result := reconcile.Reconcile(index.Records(), records)
	for _, rec := range result.NonVariants {
		report.AddIntegrityIssue(rec.SKU, "non-variant record refused for mutation")
	}

	s.executor.ApplyAll(ctx, result.Outcomes, report)

	if len(result.NewCandidates) > 0 {
		s.consolidate(ctx, result.NewCandidates, index, report)
	}
}

// consolidate handles the new-product candidates: classify against the name
// index, write the re-import workbook, bundle images, and only then execute
// the scheduled parent deletions. Deletion without a valid import file
// would lose the existing variants for good.
func (s *SyncService) consolidate(ctx context.Context, candidates []domain.FeedRecord, index *catalog.Index, report *domain.RunReport) {
	classification := consolidate.Classify(candidates, index, s.logger)

	report.BrandNewProducts = append(report.BrandNewProducts, classification.BrandNew...)
	report.NewVariants = append(report.NewVariants, classification.NewVariants...)
	for _, candidate := range candidates {
		report.SkippedNotInCatalog = append(report.SkippedNotInCatalog, candidate.SKU)
	}

	writer := consolidate.NewImportWriter(s.reference, s.cfg.Catalog.WarehouseID, s.logger)
	importPath, written, err := writer.Write(classification.Consolidated, os.TempDir())
	if err != nil {
		report.AddError(fmt.Sprintf("import file generation failed: %v", err))
		// Without the import file the delete-and-reimport cycle cannot
		// complete; leave the existing products untouched.
		return
	}
	report.ImportFilePath = importPath

	for _, rec := range classification.Consolidated {
		if !written[rec.SKU] {
			report.AddIntegrityIssue(rec.SKU, "record missing from generated import file")
		}
	}

	bundler := consolidate.NewImageBundler(s.reference, s.logger)
	zipPath, err := bundler.Bundle(classification.Consolidated, os.TempDir())
	if err != nil {
		s.logger.Warn("Image bundling failed", zap.Error(err))
	} else {
		report.ImagesZipPath = zipPath
	}

	for i := range classification.Deletions {
		if !s.executor.Delete(ctx, &classification.Deletions[i]) {
			report.AddError(fmt.Sprintf("deletion of %s failed: %s",
				classification.Deletions[i].DisplayName, classification.Deletions[i].Err))
		}
	}
	report.Deletions = append(report.Deletions, classification.Deletions...)
}

// StartRun launches Run in the background unless one is already in flight.
// Used by the webhook surface, where the provider expects an immediate
// acknowledgment.
func (s *SyncService) StartRun(reason string) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.running.Store(false)
		s.logger.Info("Background run triggered", zap.String("reason", reason))
		if err := s.Run(context.Background()); err != nil {
			s.logger.Error("Background run failed", zap.Error(err))
			if sendErr := s.notifier.SendErrorNotification("Sync run failed", err.Error()); sendErr != nil {
				s.logger.Error("Failed to send error notification", zap.Error(sendErr))
			}
		}
	}()
	return true
}

// ConnectionStatus is one probe result from TestConnections.
type ConnectionStatus struct {
	Name string
	Err  error
}

// TestConnections probes every external dependency without mutating
// anything.
func (s *SyncService) TestConnections(ctx context.Context) []ConnectionStatus {
	return []ConnectionStatus{
		{Name: "catalog", Err: s.catalog.TestConnection(ctx)},
		{Name: "source", Err: s.source.TestConnection(ctx)},
		{Name: "smtp", Err: s.notifier.TestConnection()},
	}
}

// SendErrorNotification forwards to the notifier for top-level handlers.
func (s *SyncService) SendErrorNotification(message, details string) error {
	return s.notifier.SendErrorNotification(message, details)
}
