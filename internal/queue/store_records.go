package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const recordColumns = "pack_id, category, run_id, status, stage_message, error_message, archive_size, located_count, converted_count, created_at, updated_at"

// StartPack creates or resets the state record for a pack at the beginning of
// a run. Counters and messages are cleared; the archive size manifest is
// preserved so resumed runs can verify prior downloads.
func (s *Store) StartPack(ctx context.Context, packID, category, runID string) (*Record, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	_, err := s.execWithRetry(ctx, `
		INSERT INTO packs (pack_id, category, run_id, status, stage_message, error_message, located_count, converted_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', '', 0, 0, ?, ?)
		ON CONFLICT(pack_id) DO UPDATE SET
			category = excluded.category,
			run_id = excluded.run_id,
			status = excluded.status,
			stage_message = '',
			error_message = '',
			located_count = 0,
			converted_count = 0,
			updated_at = excluded.updated_at`,
		packID, category, runID, string(StatusPending), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("start pack %s: %w", packID, err)
	}
	return s.Get(ctx, packID)
}

// Get returns the state record for a pack.
func (s *Store) Get(ctx context.Context, packID string) (*Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+recordColumns+" FROM packs WHERE pack_id = ?", packID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, packID)
	}
	return record, err
}

// Transition moves a pack to the next status after validating the step
// against the state machine. The stage message is replaced.
func (s *Store) Transition(ctx context.Context, packID string, next Status, message string) error {
	ctx = ensureContext(ctx)
	current, err := s.Get(ctx, packID)
	if err != nil {
		return err
	}
	if !current.Status.CanTransition(next) {
		return fmt.Errorf("illegal transition for pack %s: %s -> %s", packID, current.Status, next)
	}
	_, err = s.execWithRetry(ctx,
		"UPDATE packs SET status = ?, stage_message = ?, updated_at = ? WHERE pack_id = ?",
		string(next), message, formatTime(time.Now().UTC()), packID)
	if err != nil {
		return fmt.Errorf("transition pack %s: %w", packID, err)
	}
	return nil
}

// MarkFailed moves a pack to the failed state with the causing error message.
func (s *Store) MarkFailed(ctx context.Context, packID, message string) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(ctx,
		"UPDATE packs SET status = ?, error_message = ?, updated_at = ? WHERE pack_id = ?",
		string(StatusFailed), message, formatTime(time.Now().UTC()), packID)
	if err != nil {
		return fmt.Errorf("mark pack %s failed: %w", packID, err)
	}
	return nil
}

// RecordArchiveSize stores the byte size of a successfully downloaded archive.
func (s *Store) RecordArchiveSize(ctx context.Context, packID string, size int64) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(ctx,
		"UPDATE packs SET archive_size = ?, updated_at = ? WHERE pack_id = ?",
		size, formatTime(time.Now().UTC()), packID)
	if err != nil {
		return fmt.Errorf("record archive size for %s: %w", packID, err)
	}
	return nil
}

// ArchiveSize returns the recorded archive size for a pack. The boolean is
// false when no size has been recorded (zero or missing record).
func (s *Store) ArchiveSize(ctx context.Context, packID string) (int64, bool, error) {
	ctx = ensureContext(ctx)
	var size int64
	err := s.db.QueryRowContext(ctx,
		"SELECT archive_size FROM packs WHERE pack_id = ?", packID).Scan(&size)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read archive size for %s: %w", packID, err)
	}
	return size, size > 0, nil
}

// SetCounts stores the located and converted asset counters for a pack.
func (s *Store) SetCounts(ctx context.Context, packID string, located, converted int) error {
	ctx = ensureContext(ctx)
	_, err := s.execWithRetry(ctx,
		"UPDATE packs SET located_count = ?, converted_count = ?, updated_at = ? WHERE pack_id = ?",
		located, converted, formatTime(time.Now().UTC()), packID)
	if err != nil {
		return fmt.Errorf("set counts for %s: %w", packID, err)
	}
	return nil
}

// List returns all pack records ordered by pack id.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM packs ORDER BY pack_id")
	if err != nil {
		return nil, fmt.Errorf("list packs: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Health aggregates pack counts per lifecycle bucket.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	records, err := s.List(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	summary := HealthSummary{Total: len(records)}
	for _, record := range records {
		switch record.Status {
		case StatusPending:
			summary.Pending++
		case StatusCataloged:
			summary.Cataloged++
		case StatusFailed:
			summary.Failed++
		default:
			summary.InFlight++
		}
	}
	return summary, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		record               Record
		status               string
		createdAt, updatedAt string
	)
	if err := row.Scan(
		&record.PackID,
		&record.Category,
		&record.RunID,
		&status,
		&record.StageMessage,
		&record.ErrorMessage,
		&record.ArchiveSize,
		&record.LocatedCount,
		&record.ConvertedCount,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	parsed, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q for pack %s", status, record.PackID)
	}
	record.Status = parsed
	record.CreatedAt = parseTime(createdAt)
	record.UpdatedAt = parseTime(updatedAt)
	return &record, nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
