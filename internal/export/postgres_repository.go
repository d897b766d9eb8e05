package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/parkwatch/parkwatch/internal/monitoring/parkkihubi"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL export record repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// selectionRow is the persisted JSON shape of a selection.
type selectionRow struct {
	OperatorIDs  []string  `json:"operator_ids,omitempty"`
	ZoneCodes    []string  `json:"zone_codes,omitempty"`
	TimeStart    time.Time `json:"time_start"`
	TimeEnd      time.Time `json:"time_end"`
	ParkingCheck bool      `json:"parking_check"`
}

func encodeSelection(sel parkkihubi.ExportSelection) ([]byte, error) {
	return json.Marshal(selectionRow{
		OperatorIDs:  sel.OperatorIDs,
		ZoneCodes:    sel.ZoneCodes,
		TimeStart:    sel.TimeStart,
		TimeEnd:      sel.TimeEnd,
		ParkingCheck: sel.ParkingCheck,
	})
}

func decodeSelection(data []byte) (parkkihubi.ExportSelection, error) {
	var row selectionRow
	if err := json.Unmarshal(data, &row); err != nil {
		return parkkihubi.ExportSelection{}, err
	}
	return parkkihubi.ExportSelection{
		OperatorIDs:  row.OperatorIDs,
		ZoneCodes:    row.ZoneCodes,
		TimeStart:    row.TimeStart,
		TimeEnd:      row.TimeEnd,
		ParkingCheck: row.ParkingCheck,
	}, nil
}

// Create stores a new record.
func (r *PostgresRepository) Create(ctx context.Context, record *Record) error {
	selection, err := encodeSelection(record.Selection)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}

	query := `
		INSERT INTO export_records (
			id, requested_by, selection, status,
			filename, path, bytes, error_message,
			created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.pool.Exec(ctx, query,
		record.ID,
		record.RequestedBy,
		selection,
		string(record.Status),
		record.Filename,
		record.Path,
		record.Bytes,
		record.Error,
		record.CreatedAt,
		nullableTime(record.CompletedAt),
	)
	return err
}

// Update overwrites an existing record.
func (r *PostgresRepository) Update(ctx context.Context, record *Record) error {
	selection, err := encodeSelection(record.Selection)
	if err != nil {
		return fmt.Errorf("encode selection: %w", err)
	}

	query := `
		UPDATE export_records SET
			requested_by = $2,
			selection = $3,
			status = $4,
			filename = $5,
			path = $6,
			bytes = $7,
			error_message = $8,
			completed_at = $9
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		record.ID,
		record.RequestedBy,
		selection,
		string(record.Status),
		record.Filename,
		record.Path,
		record.Bytes,
		record.Error,
		nullableTime(record.CompletedAt),
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}

	return nil
}

// Get retrieves a record by ID.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	query := `
		SELECT
			id, requested_by, selection, status,
			filename, path, bytes, error_message,
			created_at, completed_at
		FROM export_records
		WHERE id = $1
	`

	record, err := r.scanRecord(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return record, nil
}

// List retrieves the most recent records, newest first.
func (r *PostgresRepository) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			id, requested_by, selection, status,
			filename, path, bytes, error_message,
			created_at, completed_at
		FROM export_records
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// scanRecord scans one export record row.
func (r *PostgresRepository) scanRecord(row pgx.Row) (*Record, error) {
	var (
		record      Record
		status      string
		selection   []byte
		completedAt *time.Time
	)

	err := row.Scan(
		&record.ID,
		&record.RequestedBy,
		&selection,
		&status,
		&record.Filename,
		&record.Path,
		&record.Bytes,
		&record.Error,
		&record.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = Status(status)
	if completedAt != nil {
		record.CompletedAt = *completedAt
	}

	record.Selection, err = decodeSelection(selection)
	if err != nil {
		return nil, fmt.Errorf("decode selection: %w", err)
	}

	return &record, nil
}

// nullableTime maps the zero time onto NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
