package store

import "time"

// LocationRecord is the single latest known position for a user. timestamp_ms
// is monotonically non-decreasing across successful writes for a given user;
// UpsertLocation is the only writer.
type LocationRecord struct {
	UserID       string
	Latitude     float64
	Longitude    float64
	TimestampMs  int64
	TimestampISO string
	DeviceID     string
	UpdatedAt    time.Time
}

type Group struct {
	ID        string
	Name      string
	SortOrder int
}

// Friend is a row of the friends catalog joined with that friend's location
// record, when one exists.
type Friend struct {
	ID          string
	UserID      string
	Username    string
	DisplayName string
	GroupIDs    []string

	Latitude       *float64
	Longitude      *float64
	LastLocationAt *string
}
