package reconcile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/vendhub/vendhub_backend/config"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/vendhub/vendhub_backend/utils"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer trace.Tracer = otel.Tracer("vendhub-reconcile")

const runLockTTL = 10 * time.Minute

var (
	runQueue  chan uint
	startOnce sync.Once

	loaders = NewLoaderRegistry()
)

// StartWorkers launches the bounded worker pool that executes run pipelines.
// Pool size comes from RECONCILE_WORKERS (default 4). Safe to call once from
// main(); later calls are no-ops.
func StartWorkers(ctx context.Context) {
	startOnce.Do(func() {
		workers := 4
		if v := strings.TrimSpace(os.Getenv("RECONCILE_WORKERS")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				workers = n
			}
		}
		runQueue = make(chan uint, 1024)

		for i := 0; i < workers; i++ {
			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case runId := <-runQueue:
						ProcessRun(context.Background(), runId)
					}
				}
			}()
		}
	})
}

// EnqueueRun hands a PENDING run to the background machinery: the Pub/Sub
// topic when RECONCILE_PUBSUB_TRIGGER is on, the in-process pool otherwise.
func EnqueueRun(ctx context.Context, runId uint) error {
	if config.ReconcilePubSubTrigger() {
		return PublishRun(ctx, runId)
	}
	if runQueue == nil {
		return errors.New("worker pool not started")
	}
	select {
	case runQueue <- runId:
		return nil
	default:
		return fmt.Errorf("run queue is full, run %d stays pending", runId)
	}
}

// ProcessRun executes the whole pipeline for one run: load sources, match,
// classify, persist mismatches, summarize. Every failure is captured into
// the run row (FAILED + error_message) and logged; nothing is re-raised —
// there is no caller waiting.
//
// Exactly one execution per run id: the DB status guard (PENDING only) is
// authoritative; the Redis lock is a best-effort optimization on top.
func ProcessRun(ctx context.Context, runId uint) {
	logger := config.GetLogger()

	if locker := config.GetRedisLock(); locker != nil {
		lock, err := locker.Obtain(ctx, fmt.Sprintf("reconcile:run:%d", runId), runLockTTL, nil)
		if err == redislock.ErrNotObtained {
			return
		}
		if err == nil {
			defer lock.Release(context.Background())
		}
	}

	db := config.GetDB().WithContext(ctx)

	var run models.ReconciliationRun
	if err := db.Where("id = ?", runId).Take(&run).Error; err != nil {
		config.LogError(logger, "worker.go", "ProcessRun", "loading run", runId, err)
		return
	}
	if run.Status != models.RunStatusPending {
		return
	}

	startedAt := time.Now()
	res := db.Model(&run).
		Where("status = ?", models.RunStatusPending).
		Updates(map[string]interface{}{
			"status":     models.RunStatusProcessing,
			"started_at": startedAt,
		})
	if res.Error != nil {
		config.LogError(logger, "worker.go", "ProcessRun", "marking processing", runId, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		// Someone else claimed it or it was cancelled in between.
		return
	}

	err := runPipeline(ctx, db, &run, startedAt)
	if errors.Is(err, errRunCancelled) {
		logger.WithField("run_id", runId).Info("run cancelled, results discarded")
		return
	}
	if err != nil {
		config.LogError(logger, "worker.go", "ProcessRun", "pipeline", runId, err)
		markRunFailed(db, &run, startedAt, err)
	}
}

func runPipeline(ctx context.Context, db *gorm.DB, run *models.ReconciliationRun, startedAt time.Time) (err error) {
	ctx, span := tracer.Start(ctx, fmt.Sprintf("reconcile.run.%d", run.ID))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	sources := run.Sources()
	if len(sources) == 0 {
		return errors.New("run has no sources")
	}

	req := LoadRequest{
		DateFrom:     run.DateFrom,
		DateTo:       run.DateTo,
		MachineCodes: run.MachineIds(),
	}

	records, err := loadAllSources(ctx, loaders, sources, req)
	if err != nil {
		return utils.NewProcessingError("loading sources", err)
	}

	results, err := Match(MatchInput{
		Sources:         sources,
		Records:         records,
		TimeTolerance:   time.Duration(run.TimeToleranceSeconds) * time.Second,
		AmountTolerance: run.AmountTolerance,
	}, func() bool { return runWasCancelled(db, run.ID) })
	if err != nil {
		return err
	}

	mismatches := make([]*models.ReconciliationMismatch, 0, len(results))
	for _, result := range results {
		if result.Matched {
			continue
		}
		mismatch, err := BuildMismatch(run.ID, sources, result)
		if err != nil {
			return utils.NewProcessingError("classifying", err)
		}
		mismatches = append(mismatches, mismatch)
	}
	if len(mismatches) > 0 {
		if err := db.CreateInBatches(mismatches, 500).Error; err != nil {
			return utils.NewProcessingError("saving mismatches", err)
		}
	}

	summary := BuildSummary(results)
	if err := run.SetSummary(summary); err != nil {
		return utils.NewProcessingError("encoding summary", err)
	}

	// Only a PROCESSING run may complete; a cancel that landed after the
	// last poll wins, and the results written above are discarded.
	completedAt := time.Now()
	res := db.Model(run).
		Where("status = ?", models.RunStatusProcessing).
		Updates(map[string]interface{}{
			"status":             models.RunStatusCompleted,
			"completed_at":       completedAt,
			"processing_time_ms": completedAt.Sub(startedAt).Milliseconds(),
			"summary_json":       run.SummaryJSON,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		db.Where("run_id = ?", run.ID).Delete(&models.ReconciliationMismatch{})
		return errRunCancelled
	}
	return nil
}

// loadAllSources fans out one fetch per source and merges. Loads are
// independent per source; the first error fails the run.
func loadAllSources(ctx context.Context, reg *LoaderRegistry, sources []models.ReconciliationSource, req LoadRequest) (map[models.ReconciliationSource][]MatchRecord, error) {
	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	records := make(map[models.ReconciliationSource][]MatchRecord, len(sources))

	for _, src := range sources {
		wg.Add(1)
		go func(src models.ReconciliationSource) {
			defer wg.Done()
			recs, err := reg.Load(ctx, src, req)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("source %s: %w", src, err)
				}
				return
			}
			records[src] = recs
		}(src)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return records, nil
}

func runWasCancelled(db *gorm.DB, runId uint) bool {
	var status models.ReconciliationRunStatus
	if err := db.Model(&models.ReconciliationRun{}).
		Where("id = ?", runId).
		Pluck("status", &status).Error; err != nil {
		return false
	}
	return status == models.RunStatusCancelled
}

func markRunFailed(db *gorm.DB, run *models.ReconciliationRun, startedAt time.Time, cause error) {
	completedAt := time.Now()
	res := db.Model(run).
		Where("status = ?", models.RunStatusProcessing).
		Updates(map[string]interface{}{
			"status":             models.RunStatusFailed,
			"completed_at":       completedAt,
			"processing_time_ms": completedAt.Sub(startedAt).Milliseconds(),
			"error_message":      cause.Error(),
		})
	if res.Error != nil {
		config.LogError(config.GetLogger(), "worker.go", "markRunFailed", "updating run", run.ID, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		// Run reached a terminal status externally; keep it.
		config.GetLogger().WithField("run_id", run.ID).Info("run no longer processing, failure discarded")
	}
}
