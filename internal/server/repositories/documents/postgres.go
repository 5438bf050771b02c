// Package documents provides the PostgreSQL-backed store of station
// documents.
package documents

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/moodlog/internal/common"
	"github.com/dmitrijs2005/moodlog/internal/dbx"
	"github.com/dmitrijs2005/moodlog/internal/server/models"
)

// PostgresRepository implements document storage over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Upsert(ctx context.Context, d *models.Document) (string, error) {
	query := `
		INSERT INTO documents (remote_key, station_id, entry_id, created_at, body, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (station_id, entry_id)
		DO UPDATE SET
			body = EXCLUDED.body,
			updated_at = EXCLUDED.updated_at
		RETURNING remote_key;
	`
	var key string
	err := r.db.QueryRowContext(ctx, query,
		d.RemoteKey, d.StationID, d.EntryID, d.CreatedAt, []byte(d.Body), d.UpdatedAt,
	).Scan(&key)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}
	return key, nil
}

// Patch merges the top-level keys of patch into the stored body.
func (r *PostgresRepository) Patch(ctx context.Context, stationID, remoteKey string, patch json.RawMessage) error {
	query := `
		UPDATE documents
		SET body = body || $3::jsonb, updated_at = now()
		WHERE station_id = $1 AND remote_key = $2;
	`
	n, err := dbx.ExecAffected(ctx, r.db, query, stationID, remoteKey, []byte(patch))
	if err != nil {
		return err
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, stationID, remoteKey string) (bool, error) {
	n, err := dbx.ExecAffected(ctx, r.db,
		`DELETE FROM documents WHERE station_id = $1 AND remote_key = $2;`, stationID, remoteKey)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *PostgresRepository) DeleteBefore(ctx context.Context, stationID string, cutoff time.Time) (int64, error) {
	return dbx.ExecAffected(ctx, r.db,
		`DELETE FROM documents WHERE station_id = $1 AND created_at <= $2;`, stationID, cutoff.UTC())
}

func (r *PostgresRepository) Trim(ctx context.Context, stationID string, keep int) (int64, error) {
	query := `
		DELETE FROM documents
		WHERE station_id = $1 AND remote_key NOT IN (
			SELECT remote_key FROM documents
			WHERE station_id = $1
			ORDER BY created_at DESC, remote_key DESC
			LIMIT $2
		);
	`
	return dbx.ExecAffected(ctx, r.db, query, stationID, keep)
}

// ListRecent returns up to limit documents of the station, newest first.
func (r *PostgresRepository) ListRecent(ctx context.Context, stationID string, limit int) ([]*models.Document, error) {
	query := `
		SELECT remote_key, station_id, entry_id, created_at, body, updated_at
		FROM documents
		WHERE station_id = $1
		ORDER BY created_at DESC, remote_key DESC
		LIMIT $2;
	`
	rows, err := r.db.QueryContext(ctx, query, stationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	result := make([]*models.Document, 0, limit)
	for rows.Next() {
		var (
			item models.Document
			body []byte
		)
		if err := rows.Scan(&item.RemoteKey, &item.StationID, &item.EntryID, &item.CreatedAt, &body, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.Body = json.RawMessage(body)
		result = append(result, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
