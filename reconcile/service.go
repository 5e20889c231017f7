package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vendhub/vendhub_backend/config"
	"github.com/vendhub/vendhub_backend/models"
	"github.com/vendhub/vendhub_backend/utils"
	"gorm.io/gorm"
)

const defaultTimeToleranceSeconds = 5

var defaultAmountTolerance = decimal.NewFromInt(100)

var validate = validator.New()

// ValidateCreateRequest checks everything run creation depends on. Returns a
// ValidationError on the first violation.
func ValidateCreateRequest(req *CreateRunRequest) ([]models.ReconciliationSource, error) {
	if err := validate.Var(req.Sources, "required,min=1"); err != nil {
		return nil, utils.NewValidationError("at least one source is required")
	}

	sources := make([]models.ReconciliationSource, 0, len(req.Sources))
	seen := map[models.ReconciliationSource]bool{}
	for _, raw := range req.Sources {
		src, err := models.ParseReconciliationSource(raw)
		if err != nil {
			return nil, utils.NewValidationError("unknown source %q", raw)
		}
		if seen[src] {
			return nil, utils.NewValidationError("duplicate source %q", raw)
		}
		seen[src] = true
		sources = append(sources, src)
	}

	if !req.DateTo.After(req.DateFrom) {
		return nil, utils.NewValidationError("date_to must be after date_from")
	}
	if req.TimeToleranceSeconds != nil && *req.TimeToleranceSeconds < 0 {
		return nil, utils.NewValidationError("time_tolerance_seconds must be >= 0")
	}
	if req.AmountTolerance != nil && req.AmountTolerance.IsNegative() {
		return nil, utils.NewValidationError("amount_tolerance must be >= 0")
	}
	return sources, nil
}

// validateMachineIds rejects filter codes that do not belong to a known
// machine. An empty filter means all machines.
func validateMachineIds(ctx context.Context, codes []string) error {
	if len(codes) == 0 {
		return nil
	}
	db := config.GetDB().WithContext(ctx)
	var known []string
	if err := db.Model(&models.VendingMachine{}).
		Where("code IN ?", codes).
		Pluck("code", &known).Error; err != nil {
		return err
	}
	knownSet := make(map[string]bool, len(known))
	for _, code := range known {
		knownSet[code] = true
	}
	for _, code := range codes {
		if !knownSet[code] {
			return utils.NewValidationError("unknown machine %q", code)
		}
	}
	return nil
}

// CreateRun persists a PENDING run and schedules it for background
// processing. The PENDING row is returned without waiting for completion.
func CreateRun(ctx context.Context, userId int, req *CreateRunRequest) (*models.ReconciliationRun, error) {
	sources, err := ValidateCreateRequest(req)
	if err != nil {
		return nil, err
	}
	if err := validateMachineIds(ctx, req.MachineIds); err != nil {
		return nil, err
	}

	run := &models.ReconciliationRun{
		Status:               models.RunStatusPending,
		DateFrom:             req.DateFrom,
		DateTo:               req.DateTo,
		TimeToleranceSeconds: defaultTimeToleranceSeconds,
		AmountTolerance:      defaultAmountTolerance,
		CreatedBy:            userId,
	}
	if req.TimeToleranceSeconds != nil {
		run.TimeToleranceSeconds = *req.TimeToleranceSeconds
	}
	if req.AmountTolerance != nil {
		run.AmountTolerance = *req.AmountTolerance
	}
	if err := run.SetSources(sources); err != nil {
		return nil, err
	}
	if err := run.SetMachineIds(req.MachineIds); err != nil {
		return nil, err
	}

	cid, ok := utils.GetCorrelationIdFromContext(ctx)
	if !ok || cid == "" {
		cid = uuid.NewString()
	}
	metadata := map[string]any{"correlation_id": cid}
	for k, v := range req.Metadata {
		metadata[k] = v
	}
	if run.MetadataJSON, err = json.Marshal(metadata); err != nil {
		return nil, err
	}

	db := config.GetDB().WithContext(ctx)
	if err := db.Create(run).Error; err != nil {
		return nil, err
	}

	if err := EnqueueRun(ctx, run.ID); err != nil {
		// Leave the run PENDING; the failure is only logged, creation succeeded.
		config.LogError(config.GetLogger(), "service.go", "CreateRun", "EnqueueRun",
			map[string]any{"run_id": run.ID, "correlation_id": cid}, err)
	}
	return run, nil
}

// runCacheTTL bounds how long a terminal run row may be served from Redis.
const runCacheTTL = 10 * time.Minute

func runCacheKey(id uint) string {
	return fmt.Sprintf("reconcile:run:cache:%d", id)
}

// GetRun loads a run by id, translating gorm's not-found error. Terminal
// runs are served from the Redis cache when present; PENDING/PROCESSING rows
// are always read fresh.
func GetRun(ctx context.Context, id uint) (*models.ReconciliationRun, error) {
	var cached models.ReconciliationRun
	if hit, err := config.GetRedisObject(runCacheKey(id), &cached); err == nil && hit {
		return &cached, nil
	}

	db := config.GetDB().WithContext(ctx)
	var run models.ReconciliationRun
	if err := db.Where("id = ?", id).Take(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("reconciliation run", id)
		}
		return nil, err
	}

	if run.Status.IsTerminal() {
		if err := config.SetRedisObject(runCacheKey(id), &run, runCacheTTL); err != nil {
			config.LogError(config.GetLogger(), "service.go", "GetRun", "caching run", id, err)
		}
	}
	return &run, nil
}

// cancellable rejects cancellation once a run has completed.
func cancellable(run *models.ReconciliationRun) error {
	if run.Status == models.RunStatusCompleted {
		return utils.NewValidationError("cannot cancel a completed run")
	}
	return nil
}

// CancelRun moves a run to CANCELLED. Rejected once the run is COMPLETED.
// Cancellation is cooperative: in-flight matching notices it between
// primary-record iterations.
func CancelRun(ctx context.Context, id uint) (*models.ReconciliationRun, error) {
	run, err := GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := cancellable(run); err != nil {
		return nil, err
	}

	now := time.Now()
	db := config.GetDB().WithContext(ctx)
	if err := db.Model(run).Updates(map[string]interface{}{
		"status":       models.RunStatusCancelled,
		"completed_at": now,
	}).Error; err != nil {
		return nil, err
	}
	run.Status = models.RunStatusCancelled
	run.CompletedAt = &now
	if err := config.RemoveRedisKey(runCacheKey(id)); err != nil {
		config.LogError(config.GetLogger(), "service.go", "CancelRun", "evicting run cache", id, err)
	}
	return run, nil
}

// DeleteRun soft-deletes a run. Its mismatches stay behind the run's
// soft-delete flag; hard deletes cascade at the schema level.
func DeleteRun(ctx context.Context, id uint) error {
	run, err := GetRun(ctx, id)
	if err != nil {
		return err
	}
	db := config.GetDB().WithContext(ctx)
	if err := db.Delete(run).Error; err != nil {
		return err
	}
	if err := config.RemoveRedisKey(runCacheKey(id)); err != nil {
		config.LogError(config.GetLogger(), "service.go", "DeleteRun", "evicting run cache", id, err)
	}
	return nil
}

// resolvable rejects a second resolution so the original one stays intact.
func resolvable(m *models.ReconciliationMismatch) error {
	if m.IsResolved {
		return utils.NewValidationError("mismatch %d is already resolved", m.ID)
	}
	return nil
}

// ResolveMismatch marks a mismatch reviewed. Resolving twice is rejected and
// leaves the original resolution untouched.
func ResolveMismatch(ctx context.Context, id uint, userId int, notes string) (*models.ReconciliationMismatch, error) {
	db := config.GetDB().WithContext(ctx)

	var mismatch models.ReconciliationMismatch
	if err := db.Where("id = ?", id).Take(&mismatch).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NewNotFoundError("mismatch", id)
		}
		return nil, err
	}
	if err := resolvable(&mismatch); err != nil {
		return nil, err
	}

	now := time.Now()
	if err := db.Model(&mismatch).Updates(map[string]interface{}{
		"is_resolved":      true,
		"resolved_at":      now,
		"resolved_by":      userId,
		"resolution_notes": notes,
	}).Error; err != nil {
		return nil, err
	}
	mismatch.IsResolved = true
	mismatch.ResolvedAt = &now
	mismatch.ResolvedBy = &userId
	mismatch.ResolutionNotes = notes
	return &mismatch, nil
}
