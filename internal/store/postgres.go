package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStaleTimestamp is returned by UpsertLocation when the stored record
// already carries a timestamp greater than or equal to the incoming one.
// It is an expected outcome of out-of-order delivery, not a fault.
var ErrStaleTimestamp = errors.New("stale timestamp")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// UpsertLocation applies a location update under the monotonic-write rule:
// create the record if absent, otherwise replace it only when the stored
// timestamp_ms is strictly less than the incoming one. The whole decision is a
// single statement so concurrent updates for the same user are serialized by
// the database row lock; there is deliberately no read-then-write here.
// Equal timestamps lose: strictly-greater wins, ties are rejected.
func (s *PostgresStore) UpsertLocation(ctx context.Context, rec LocationRecord) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO location_records (user_id, latitude, longitude, timestamp_ms, timestamp_iso, device_id, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			latitude      = EXCLUDED.latitude,
			longitude     = EXCLUDED.longitude,
			timestamp_ms  = EXCLUDED.timestamp_ms,
			timestamp_iso = EXCLUDED.timestamp_iso,
			device_id     = EXCLUDED.device_id,
			updated_at    = NOW()
		WHERE location_records.timestamp_ms < EXCLUDED.timestamp_ms
	`, rec.UserID, rec.Latitude, rec.Longitude, rec.TimestampMs, rec.TimestampISO, rec.DeviceID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return fmt.Errorf("upsert location (%s): %w", pgErr.Code, err)
		}
		return fmt.Errorf("upsert location: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert location rows: %w", err)
	}
	if affected == 0 {
		return ErrStaleTimestamp
	}
	return nil
}

// GetLocation returns the latest record for a user, or sql.ErrNoRows.
func (s *PostgresStore) GetLocation(ctx context.Context, userID string) (LocationRecord, error) {
	const query = `
		SELECT user_id, latitude, longitude, timestamp_ms, timestamp_iso, device_id, updated_at
		FROM location_records
		WHERE user_id = $1
	`
	var rec LocationRecord
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&rec.UserID, &rec.Latitude, &rec.Longitude, &rec.TimestampMs, &rec.TimestampISO, &rec.DeviceID, &rec.UpdatedAt,
	)
	if err != nil {
		return LocationRecord{}, err
	}
	return rec, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context) ([]Group, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, sort_order FROM friend_groups ORDER BY sort_order`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		var g Group
		if err := rows.Scan(&g.ID, &g.Name, &g.SortOrder); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// ListFriends returns the friends of a user together with each friend's
// latest location record, when one exists.
func (s *PostgresStore) ListFriends(ctx context.Context, userID string) ([]Friend, error) {
	const query = `
		SELECT f.id, f.friend_user_id, f.username, f.display_name,
		       COALESCE(STRING_AGG(m.group_id, ',' ORDER BY m.group_id), ''),
		       lr.latitude, lr.longitude, lr.timestamp_iso
		FROM friends f
		LEFT JOIN friend_group_members m ON m.friend_id = f.id
		LEFT JOIN location_records lr ON lr.user_id = f.friend_user_id
		WHERE f.owner_user_id = $1
		GROUP BY f.id, f.friend_user_id, f.username, f.display_name,
		         lr.latitude, lr.longitude, lr.timestamp_iso
		ORDER BY f.display_name
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	defer rows.Close()

	var friends []Friend
	for rows.Next() {
		var f Friend
		var groupIDs string
		if err := rows.Scan(&f.ID, &f.UserID, &f.Username, &f.DisplayName, &groupIDs, &f.Latitude, &f.Longitude, &f.LastLocationAt); err != nil {
			return nil, fmt.Errorf("scan friend: %w", err)
		}
		if groupIDs != "" {
			f.GroupIDs = strings.Split(groupIDs, ",")
		} else {
			f.GroupIDs = []string{}
		}
		friends = append(friends, f)
	}
	return friends, rows.Err()
}
