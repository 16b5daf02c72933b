package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/openadmit/admissions-api/internal/models"
	appErrors "github.com/openadmit/admissions-api/pkg/errors"
)

const waitlistColumns = `id, lead_id, school_id, program, waitlist_position, priority_score, status, notes, offer_date, created_at, updated_at`

// activeStatuses excludes terminal entries from partition ordering.
const activeStatuses = `status NOT IN ('DECLINED', 'ENROLLED')`

// PartitionTx is the transactional store view handed to position-mutating
// callbacks. All operations are scoped to one (school_id, program) partition
// and execute inside a single database transaction with the partition's
// active rows locked.
type PartitionTx interface {
	GetForUpdate(ctx context.Context, id string) (*models.WaitlistEntry, error)
	CountActive(ctx context.Context) (int, error)
	ListActive(ctx context.Context) ([]models.WaitlistEntry, error)
	ShiftRange(ctx context.Context, lo, hi, delta int) error
	SetPosition(ctx context.Context, id string, position int) error
	Create(ctx context.Context, entry *models.WaitlistEntry) error
}

// WaitlistRepository handles persistence of waitlist entries.
type WaitlistRepository struct {
	db *sqlx.DB
}

// NewWaitlistRepository constructs the repository.
func NewWaitlistRepository(db *sqlx.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

// FindByID returns a waitlist entry by its ID.
func (r *WaitlistRepository) FindByID(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM waitlist_entries WHERE id = $1`, waitlistColumns)
	var entry models.WaitlistEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByPartition returns a partition's entries ordered by position.
func (r *WaitlistRepository) ListByPartition(ctx context.Context, schoolID, program string, includeTerminal bool) ([]models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM waitlist_entries WHERE school_id = $1 AND program = $2`, waitlistColumns)
	if !includeTerminal {
		query += " AND " + activeStatuses
	}
	query += " ORDER BY waitlist_position ASC, created_at ASC"
	var entries []models.WaitlistEntry
	if err := r.db.SelectContext(ctx, &entries, query, schoolID, program); err != nil {
		return nil, fmt.Errorf("list waitlist partition: %w", err)
	}
	return entries, nil
}

// ListActiveDetailed returns active entries joined with lead display fields,
// optionally scoped by school and program.
func (r *WaitlistRepository) ListActiveDetailed(ctx context.Context, filter models.WaitlistFilter) ([]models.WaitlistEntryDetail, error) {
	query := `SELECT w.id, w.lead_id, w.school_id, w.program, w.waitlist_position, w.priority_score, w.status,
        w.notes, w.offer_date, w.created_at, w.updated_at,
        l.child_name, l.parent_name, l.parent_email, l.parent_phone, l.lead_status
        FROM waitlist_entries w
        JOIN leads l ON l.id = w.lead_id
        WHERE w.` + activeStatuses
	var conditions []string
	var args []interface{}
	if filter.SchoolID != "" {
		conditions = append(conditions, fmt.Sprintf("w.school_id = $%d", len(args)+1))
		args = append(args, filter.SchoolID)
	}
	if filter.Program != "" {
		conditions = append(conditions, fmt.Sprintf("w.program = $%d", len(args)+1))
		args = append(args, filter.Program)
	}
	if len(conditions) > 0 {
		query += " AND " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY w.school_id ASC, w.program ASC, w.waitlist_position ASC, w.created_at ASC"

	var entries []models.WaitlistEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list active waitlist entries: %w", err)
	}
	return entries, nil
}

// ListActiveByParentEmail returns a family's non-terminal entries across all
// schools. Email matching is case-insensitive.
func (r *WaitlistRepository) ListActiveByParentEmail(ctx context.Context, parentEmail string) ([]models.WaitlistEntryDetail, error) {
	query := `SELECT w.id, w.lead_id, w.school_id, w.program, w.waitlist_position, w.priority_score, w.status,
        w.notes, w.offer_date, w.created_at, w.updated_at,
        l.child_name, l.parent_name, l.parent_email, l.parent_phone, l.lead_status
        FROM waitlist_entries w
        JOIN leads l ON l.id = w.lead_id
        WHERE LOWER(l.parent_email) = LOWER($1) AND w.` + activeStatuses + `
        ORDER BY w.school_id ASC, w.program ASC, w.created_at ASC`
	var entries []models.WaitlistEntryDetail
	if err := r.db.SelectContext(ctx, &entries, query, parentEmail); err != nil {
		return nil, fmt.Errorf("list waitlist entries by parent: %w", err)
	}
	return entries, nil
}

// CountActive returns the number of non-terminal entries in a partition.
func (r *WaitlistRepository) CountActive(ctx context.Context, schoolID, program string) (int, error) {
	query := `SELECT COUNT(*) FROM waitlist_entries WHERE school_id = $1 AND program = $2 AND ` + activeStatuses
	var count int
	if err := r.db.GetContext(ctx, &count, query, schoolID, program); err != nil {
		return 0, fmt.Errorf("count active waitlist entries: %w", err)
	}
	return count, nil
}

// ExistsActiveForLead checks whether a lead already holds a non-terminal entry.
func (r *WaitlistRepository) ExistsActiveForLead(ctx context.Context, leadID string) (bool, error) {
	query := `SELECT 1 FROM waitlist_entries WHERE lead_id = $1 AND ` + activeStatuses + ` LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, leadID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active waitlist entry: %w", err)
	}
	return true, nil
}

// UpdateFields applies an explicit patch. Absent fields are untouched; fields
// tagged with a nil value are cleared.
func (r *WaitlistRepository) UpdateFields(ctx context.Context, id string, patch models.WaitlistPatch) error {
	if patch.Empty() {
		return nil
	}
	sets := []string{}
	args := []interface{}{}
	if patch.Notes.Valid {
		sets = append(sets, fmt.Sprintf("notes = $%d", len(args)+1))
		args = append(args, patch.Notes.Value)
	}
	if patch.PriorityScore.Valid {
		sets = append(sets, fmt.Sprintf("priority_score = $%d", len(args)+1))
		args = append(args, patch.PriorityScore.Value)
	}
	if patch.OfferDate.Valid {
		sets = append(sets, fmt.Sprintf("offer_date = $%d", len(args)+1))
		args = append(args, patch.OfferDate.Value)
	}
	sets = append(sets, "updated_at = NOW()")
	query := fmt.Sprintf("UPDATE waitlist_entries SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args)+1)
	args = append(args, id)
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("patch waitlist entry: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateStatus writes a status transition. Positions of other entries are not
// renumbered here; the next reorder or sweep restores contiguity.
func (r *WaitlistRepository) UpdateStatus(ctx context.Context, id string, status models.WaitlistStatus) error {
	const query = `UPDATE waitlist_entries SET status = $2, updated_at = NOW() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("update waitlist status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListPartitions returns every (school_id, program) pair holding active entries.
func (r *WaitlistRepository) ListPartitions(ctx context.Context) ([]models.Partition, error) {
	query := `SELECT DISTINCT school_id, program FROM waitlist_entries WHERE ` + activeStatuses + ` ORDER BY school_id, program`
	var partitions []models.Partition
	if err := r.db.SelectContext(ctx, &partitions, query); err != nil {
		return nil, fmt.Errorf("list waitlist partitions: %w", err)
	}
	return partitions, nil
}

// InPartitionTx runs fn inside a single transaction with the partition's
// active rows locked. Any failure rolls the whole transaction back, so partial
// position shifts are never committed. Serialization and deadlock failures
// surface as TransactionConflict, which is safe to retry with fresh state.
func (r *WaitlistRepository) InPartitionTx(ctx context.Context, schoolID, program string, fn func(tx PartitionTx) error) error {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin waitlist transaction: %w", err)
	}

	ptx := &partitionTx{tx: tx, schoolID: schoolID, program: program}
	if err := ptx.lockPartition(ctx); err != nil {
		_ = tx.Rollback()
		return classifyTxError(err)
	}
	if err := fn(ptx); err != nil {
		_ = tx.Rollback()
		return classifyTxError(err)
	}
	if err := tx.Commit(); err != nil {
		return classifyTxError(fmt.Errorf("commit waitlist transaction: %w", err))
	}
	return nil
}

type partitionTx struct {
	tx       *sqlx.Tx
	schoolID string
	program  string
}

// lockPartition takes row locks on the partition's active entries so that
// concurrent reorders on the same partition serialize.
func (p *partitionTx) lockPartition(ctx context.Context) error {
	query := `SELECT id FROM waitlist_entries WHERE school_id = $1 AND program = $2 AND ` + activeStatuses + ` ORDER BY id FOR UPDATE`
	var ids []string
	if err := p.tx.SelectContext(ctx, &ids, query, p.schoolID, p.program); err != nil {
		return fmt.Errorf("lock waitlist partition: %w", err)
	}
	return nil
}

func (p *partitionTx) GetForUpdate(ctx context.Context, id string) (*models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM waitlist_entries WHERE id = $1 FOR UPDATE`, waitlistColumns)
	var entry models.WaitlistEntry
	if err := p.tx.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (p *partitionTx) CountActive(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM waitlist_entries WHERE school_id = $1 AND program = $2 AND ` + activeStatuses
	var count int
	if err := p.tx.GetContext(ctx, &count, query, p.schoolID, p.program); err != nil {
		return 0, fmt.Errorf("count partition entries: %w", err)
	}
	return count, nil
}

func (p *partitionTx) ListActive(ctx context.Context) ([]models.WaitlistEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM waitlist_entries WHERE school_id = $1 AND program = $2 AND %s ORDER BY waitlist_position ASC, created_at ASC`, waitlistColumns, activeStatuses)
	var entries []models.WaitlistEntry
	if err := p.tx.SelectContext(ctx, &entries, query, p.schoolID, p.program); err != nil {
		return nil, fmt.Errorf("list partition entries: %w", err)
	}
	return entries, nil
}

func (p *partitionTx) ShiftRange(ctx context.Context, lo, hi, delta int) error {
	query := `UPDATE waitlist_entries SET waitlist_position = waitlist_position + $3, updated_at = NOW()
        WHERE school_id = $1 AND program = $2 AND ` + activeStatuses + ` AND waitlist_position BETWEEN $4 AND $5`
	if _, err := p.tx.ExecContext(ctx, query, p.schoolID, p.program, delta, lo, hi); err != nil {
		return fmt.Errorf("shift waitlist positions: %w", err)
	}
	return nil
}

func (p *partitionTx) SetPosition(ctx context.Context, id string, position int) error {
	const query = `UPDATE waitlist_entries SET waitlist_position = $2, updated_at = NOW() WHERE id = $1`
	if _, err := p.tx.ExecContext(ctx, query, id, position); err != nil {
		return fmt.Errorf("set waitlist position: %w", err)
	}
	return nil
}

func (p *partitionTx) Create(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now
	if entry.Status == "" {
		entry.Status = models.WaitlistStatusWaitlisted
	}
	const query = `INSERT INTO waitlist_entries (id, lead_id, school_id, program, waitlist_position, priority_score, status, notes, offer_date, created_at, updated_at)
        VALUES (:id, :lead_id, :school_id, :program, :waitlist_position, :priority_score, :status, :notes, :offer_date, :created_at, :updated_at)`
	if _, err := p.tx.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create waitlist entry: %w", err)
	}
	return nil
}

// classifyTxError maps Postgres serialization failures and deadlocks to the
// retryable conflict error. Everything else passes through unchanged.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01":
			return appErrors.Wrap(err, appErrors.ErrTransactionConflict.Code, appErrors.ErrTransactionConflict.Status, appErrors.ErrTransactionConflict.Message)
		}
	}
	return err
}
