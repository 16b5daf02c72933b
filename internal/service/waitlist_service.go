package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/openadmit/admissions-api/internal/models"
	"github.com/openadmit/admissions-api/internal/repository"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
)

type waitlistStore interface {
	FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error)
	ExistsActiveForLead(ctx context.Context, leadID string) (bool, error)
	UpdateFields(ctx context.Context, id string, patch models.WaitlistPatch) error
	UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus) error
	ListPartitions(ctx context.Context) ([]models.Partition, error)
	InPartitionTx(ctx context.Context, schoolID, program string, fn func(tx repository.PartitionTx) error) error
}

type leadReader interface {
	FindByID(ctx context.Context, id string) (*models.Lead, error)
}

type capacitySnapshotter interface {
	Snapshot(ctx context.Context, schoolID string) (map[string]models.CapacitySnapshot, error)
}

type siblingResolver interface {
	Resolve(ctx context.Context, schoolID string, parentEmails []string) (map[string]map[string]struct{}, error)
}

// EnqueueRequest describes a request for a program slot.
type EnqueueRequest struct {
	LeadID   string `json:"lead_id" validate:"required"`
	SchoolID string `json:"school_id" validate:"required"`
	Program  string `json:"program" validate:"required"`
}

// WaitlistService owns every position-affecting operation on the waitlist.
// Raw position fields are never exposed for direct mutation; all ordering
// changes flow through Reorder or the renormalization pass so the per-
// partition contiguity invariant holds.
type WaitlistService struct {
	store     waitlistStore
	leads     leadReader
	capacity  capacitySnapshotter
	siblings  siblingResolver
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	baseScore    int
	storeTimeout time.Duration

	// locks serializes position mutations per partition within this process.
	// The database transaction with row locks remains the load-bearing
	// mechanism for multi-instance deployments.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewWaitlistService constructs WaitlistService.
func NewWaitlistService(store waitlistStore, leads leadReader, capacity capacitySnapshotter, siblings siblingResolver, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, baseScore int, storeTimeout time.Duration) *WaitlistService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseScore <= 0 || baseScore > 100 {
		baseScore = 50
	}
	return &WaitlistService{
		store:        store,
		leads:        leads,
		capacity:     capacity,
		siblings:     siblings,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		baseScore:    baseScore,
		storeTimeout: storeTimeout,
		locks:        make(map[string]*sync.Mutex),
	}
}

// Enqueue creates a waitlist entry at the back of its partition. The initial
// priority score is computed from the lead score, sibling signal and current
// capacity; enrichment failures degrade to neutral signals with a warning.
func (s *WaitlistService) Enqueue(ctx context.Context, req EnqueueRequest) (*models.WaitlistEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid enqueue payload")
	}

	lead, err := s.leads.FindByID(ctx, req.LeadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lead not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lead")
	}

	queued, err := s.store.ExistsActiveForLead(ctx, req.LeadID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate waitlist entry")
	}
	if queued {
		return nil, appErrors.Clone(appErrors.ErrAlreadyQueued, "")
	}

	entry := &models.WaitlistEntry{
		LeadID:        req.LeadID,
		SchoolID:      req.SchoolID,
		Program:       req.Program,
		Status:        models.WaitlistStatusWaitlisted,
		PriorityScore: s.initialScore(ctx, lead, req),
	}

	txCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	unlock := s.lockPartition(req.SchoolID, req.Program)
	defer unlock()

	err = s.store.InPartitionTx(txCtx, req.SchoolID, req.Program, func(tx repository.PartitionTx) error {
		count, err := tx.CountActive(txCtx)
		if err != nil {
			return err
		}
		entry.WaitlistPosition = count + 1
		return tx.Create(txCtx, entry)
	})
	if err != nil {
		if appErrors.Is(err, appErrors.ErrTransactionConflict) {
			return nil, err
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create waitlist entry")
	}

	s.logger.Info("waitlist entry enqueued",
		zap.String("entry_id", entry.ID),
		zap.String("school_id", req.SchoolID),
		zap.String("program", req.Program),
		zap.Int("position", entry.WaitlistPosition))
	return entry, nil
}

// Reorder moves an entry to newPosition within its partition, shifting
// neighbors and renormalizing so active positions stay exactly 1..N. The
// whole move commits atomically or not at all; a partition conflict is
// retried once with fresh state before surfacing.
func (s *WaitlistService) Reorder(ctx context.Context, entryID string, newPosition int) error {
	entry, err := s.store.FindByID(ctx, entryID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordReorder("not_found")
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		s.metrics.RecordReorder("error")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if entry.Status.Terminal() {
		s.metrics.RecordReorder("invalid")
		return appErrors.Clone(appErrors.ErrConflict, "waitlist entry is no longer active")
	}

	unlock := s.lockPartition(entry.SchoolID, entry.Program)
	defer unlock()

	err = s.reorderTx(ctx, entry.SchoolID, entry.Program, entryID, newPosition)
	if appErrors.Is(err, appErrors.ErrTransactionConflict) {
		s.metrics.RecordReorderConflict()
		s.logger.Warn("reorder retried after partition conflict",
			zap.String("entry_id", entryID),
			zap.String("school_id", entry.SchoolID),
			zap.String("program", entry.Program))
		err = s.reorderTx(ctx, entry.SchoolID, entry.Program, entryID, newPosition)
	}
	if err != nil {
		switch {
		case appErrors.Is(err, appErrors.ErrInvalidPosition):
			s.metrics.RecordReorder("invalid")
		case appErrors.Is(err, appErrors.ErrNotFound):
			s.metrics.RecordReorder("not_found")
		case appErrors.Is(err, appErrors.ErrTransactionConflict):
			s.metrics.RecordReorder("conflict")
		default:
			s.metrics.RecordReorder("error")
		}
		return err
	}

	s.metrics.RecordReorder("success")
	return nil
}

func (s *WaitlistService) reorderTx(ctx context.Context, schoolID, program, entryID string, newPosition int) error {
	txCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	err := s.store.InPartitionTx(txCtx, schoolID, program, func(tx repository.PartitionTx) error {
		entry, err := tx.GetForUpdate(txCtx, entryID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
			}
			return err
		}
		if entry.Status.Terminal() {
			return appErrors.Clone(appErrors.ErrConflict, "waitlist entry is no longer active")
		}

		count, err := tx.CountActive(txCtx)
		if err != nil {
			return err
		}
		if newPosition < 1 || newPosition > count {
			return appErrors.Clone(appErrors.ErrInvalidPosition, "")
		}

		oldPosition := entry.WaitlistPosition
		if newPosition == oldPosition {
			return nil
		}

		if newPosition < oldPosition {
			// Moving up: everyone in [new, old-1] steps back one slot.
			if err := tx.ShiftRange(txCtx, newPosition, oldPosition-1, 1); err != nil {
				return err
			}
		} else {
			// Moving down: everyone in [old+1, new] steps forward one slot.
			if err := tx.ShiftRange(txCtx, oldPosition+1, newPosition, -1); err != nil {
				return err
			}
		}
		if err := tx.SetPosition(txCtx, entryID, newPosition); err != nil {
			return err
		}

		repaired, err := renormalize(txCtx, tx)
		if err != nil {
			return err
		}
		s.metrics.AddRenormalizedEntries(repaired)
		return nil
	})
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return err
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "reorder failed")
	}
	return nil
}

// renormalize rewrites any active position that does not equal its 1-based
// rank in the canonical (position ASC, created_at ASC) order. This is the
// repair pass that restores contiguity after terminal transitions or any
// drift that slipped past the shift arithmetic.
func renormalize(ctx context.Context, tx repository.PartitionTx) (int, error) {
	entries, err := tx.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	repaired := 0
	for i, entry := range entries {
		want := i + 1
		if entry.WaitlistPosition != want {
			if err := tx.SetPosition(ctx, entry.ID, want); err != nil {
				return repaired, err
			}
			repaired++
		}
	}
	return repaired, nil
}

// UpdateStatus applies a status transition. Terminal statuses freeze the
// entry's position and retire it from active ranking; remaining entries are
// not renumbered here.
func (s *WaitlistService) UpdateStatus(ctx context.Context, entryID string, status models.WaitlistStatus) (*models.WaitlistEntry, error) {
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown waitlist status")
	}
	if _, err := s.store.FindByID(ctx, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if err := s.store.UpdateStatus(ctx, entryID, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update waitlist status")
	}
	updated, err := s.store.FindByID(ctx, entryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload waitlist entry")
	}
	if status.Terminal() {
		s.logger.Info("waitlist entry retired",
			zap.String("entry_id", entryID),
			zap.String("status", string(status)))
	}
	return updated, nil
}

// UpdateFields applies an explicit patch to notes, priority score or offer
// date. The priority score arrives on the stored 0-100 scale.
func (s *WaitlistService) UpdateFields(ctx context.Context, entryID string, patch models.WaitlistPatch) (*models.WaitlistEntry, error) {
	if patch.PriorityScore.Valid && (patch.PriorityScore.Value < 0 || patch.PriorityScore.Value > 100) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "priority score outside 0-100")
	}
	if _, err := s.store.FindByID(ctx, entryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load waitlist entry")
	}
	if !patch.Empty() {
		if err := s.store.UpdateFields(ctx, entryID, patch); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to patch waitlist entry")
		}
	}
	updated, err := s.store.FindByID(ctx, entryID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload waitlist entry")
	}
	return updated, nil
}

// RenormalizePartition runs the repair pass on one partition and reports how
// many positions were rewritten.
func (s *WaitlistService) RenormalizePartition(ctx context.Context, schoolID, program string) (int, error) {
	unlock := s.lockPartition(schoolID, program)
	defer unlock()

	txCtx, cancel := s.withStoreTimeout(ctx)
	defer cancel()

	repaired := 0
	err := s.store.InPartitionTx(txCtx, schoolID, program, func(tx repository.PartitionTx) error {
		n, err := renormalize(txCtx, tx)
		repaired = n
		return err
	})
	if err != nil {
		return 0, err
	}
	s.metrics.AddRenormalizedEntries(repaired)
	return repaired, nil
}

// RenormalizeAll sweeps every active partition. Used by the optional periodic
// sweep; correctness does not depend on it running.
func (s *WaitlistService) RenormalizeAll(ctx context.Context) error {
	partitions, err := s.store.ListPartitions(ctx)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist partitions")
	}
	for _, partition := range partitions {
		repaired, err := s.RenormalizePartition(ctx, partition.SchoolID, partition.Program)
		if err != nil {
			s.logger.Error("renormalization sweep failed for partition",
				zap.String("school_id", partition.SchoolID),
				zap.String("program", partition.Program),
				zap.Error(err))
			continue
		}
		if repaired > 0 {
			s.logger.Info("renormalization sweep repaired positions",
				zap.String("school_id", partition.SchoolID),
				zap.String("program", partition.Program),
				zap.Int("repaired", repaired))
		}
	}
	return nil
}

func (s *WaitlistService) initialScore(ctx context.Context, lead *models.Lead, req EnqueueRequest) int {
	hint := HintNone
	if s.siblings != nil {
		families, err := s.siblings.Resolve(ctx, req.SchoolID, []string{lead.ParentEmail})
		if err != nil {
			s.logger.Warn("sibling resolution degraded during enqueue", zap.String("lead_id", lead.ID), zap.Error(err))
		} else if HasSiblings(families[normalizeEmail(lead.ParentEmail)], lead.ID) {
			hint = HintSibling
		}
	}

	available := 0
	if s.capacity != nil {
		snapshot, err := s.capacity.Snapshot(ctx, req.SchoolID)
		if err != nil {
			s.logger.Warn("capacity snapshot degraded during enqueue", zap.String("school_id", req.SchoolID), zap.Error(err))
		} else {
			available = snapshot[req.Program].Available
		}
	}

	return ComputePriorityScore(ScoreInputs{
		BaseScore:      lead.LeadScore,
		Hint:           hint,
		AvailableSpots: available,
		Status:         models.WaitlistStatusWaitlisted,
		NextFollowUp:   lead.NextFollowUp,
		Now:            time.Now().UTC(),
	}, s.baseScore)
}

func (s *WaitlistService) lockPartition(schoolID, program string) func() {
	key := schoolID + "|" + program
	s.locksMu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.locksMu.Unlock()
	lock.Lock()
	return lock.Unlock
}

func (s *WaitlistService) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.storeTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.storeTimeout)
}
