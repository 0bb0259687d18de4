package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"waypoint/internal/auth"
	"waypoint/internal/config"
	"waypoint/internal/store"
)

// LocationUpdate is the wire entity posted by clients. Coordinate fields are
// pointers so a missing field is distinguishable from a legitimate zero.
type LocationUpdate struct {
	Latitude  *float64 `json:"latitude" validate:"required,min=-90,max=90"`
	Longitude *float64 `json:"longitude" validate:"required,min=-180,max=180"`
	Timestamp string   `json:"timestamp" validate:"required"`
	DeviceID  string   `json:"deviceId" validate:"required"`
}

type FriendLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type FriendPayload struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	DisplayName    string          `json:"displayName"`
	LastLocation   *FriendLocation `json:"lastLocation"`
	LastLocationAt *string         `json:"lastLocationAt"`
	GroupIDs       []string        `json:"groupIds"`
	Online         bool            `json:"online"`
}

type GroupPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

type FriendsPayload struct {
	GeneratedAt string          `json:"generatedAt"`
	Groups      []GroupPayload  `json:"groups"`
	Friends     []FriendPayload `json:"friends"`
}

type ProfilePayload struct {
	UserID            string          `json:"userId"`
	DeviceID          string          `json:"deviceId"`
	LastKnownLocation ProfileLocation `json:"lastKnownLocation"`
}

type ProfileLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

type dataStore interface {
	UpsertLocation(context.Context, store.LocationRecord) error
	GetLocation(context.Context, string) (store.LocationRecord, error)
	ListGroups(context.Context) ([]store.Group, error)
	ListFriends(context.Context, string) ([]store.Friend, error)
	Ping(context.Context) error
}

// presenceStore is the optional Redis-backed recent-activity cache.
type presenceStore interface {
	Touch(context.Context, string) error
	OnlineSet(context.Context, []string) (map[string]bool, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	presence presenceStore
	validate *validator.Validate
	now      func() time.Time
}

func New(cfg config.Config, dataStore dataStore) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		validate: validator.New(),
		now:      time.Now,
	}
}

// NewWithPresence wires the Redis presence cache in addition to the store.
func NewWithPresence(cfg config.Config, dataStore dataStore, presence presenceStore) *Service {
	service := New(cfg, dataStore)
	service.presence = presence
	return service
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// UserFromToken resolves the calling user from a bearer token.
func (s *Service) UserFromToken(token string) (string, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return "", err
	}
	return claims.Sub, nil
}

// Ingest validates an update and applies it to the user's record under the
// monotonic-write rule. A stale timestamp is reported as a conflict, never as
// a server fault, and leaves the record untouched.
func (s *Service) Ingest(ctx context.Context, userID string, update LocationUpdate) error {
	if err := s.validate.Struct(update); err != nil {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid payload", validationDetails(err))
	}

	ts, err := time.Parse(time.RFC3339, update.Timestamp)
	if err != nil {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Invalid payload", map[string]string{
			"timestamp": "must be an ISO-8601 date-time",
		})
	}

	rec := store.LocationRecord{
		UserID:       userID,
		Latitude:     *update.Latitude,
		Longitude:    *update.Longitude,
		TimestampMs:  ts.UnixMilli(),
		TimestampISO: update.Timestamp,
		DeviceID:     update.DeviceID,
	}
	if err := s.store.UpsertLocation(ctx, rec); err != nil {
		if errors.Is(err, store.ErrStaleTimestamp) {
			return domainError(http.StatusConflict, "STALE_TIMESTAMP", "Ignored older or same timestamp update", nil)
		}
		return err
	}

	if s.presence != nil {
		if err := s.presence.Touch(ctx, userID); err != nil {
			log.Printf("presence touch failed for user=%s: %v", userID, err)
		}
	}
	return nil
}

// Profile returns the caller's own latest record.
func (s *Service) Profile(ctx context.Context, userID string) (ProfilePayload, error) {
	rec, err := s.store.GetLocation(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ProfilePayload{}, domainError(http.StatusNotFound, "NOT_FOUND", "Profile not found", nil)
	}
	if err != nil {
		return ProfilePayload{}, err
	}
	return ProfilePayload{
		UserID:   rec.UserID,
		DeviceID: rec.DeviceID,
		LastKnownLocation: ProfileLocation{
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
			Timestamp: rec.TimestampISO,
		},
	}, nil
}

// Friends returns the caller's friends list with each friend's last known
// fix and, when the presence cache is configured, an online flag.
func (s *Service) Friends(ctx context.Context, userID string) (FriendsPayload, error) {
	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		return FriendsPayload{}, err
	}
	friends, err := s.store.ListFriends(ctx, userID)
	if err != nil {
		return FriendsPayload{}, err
	}

	online := map[string]bool{}
	if s.presence != nil && len(friends) > 0 {
		ids := make([]string, 0, len(friends))
		for _, f := range friends {
			ids = append(ids, f.UserID)
		}
		resolved, err := s.presence.OnlineSet(ctx, ids)
		if err != nil {
			log.Printf("presence lookup failed: %v", err)
		} else {
			online = resolved
		}
	}

	payload := FriendsPayload{
		GeneratedAt: s.now().UTC().Format(time.RFC3339),
		Groups:      make([]GroupPayload, 0, len(groups)),
		Friends:     make([]FriendPayload, 0, len(friends)),
	}
	for _, g := range groups {
		payload.Groups = append(payload.Groups, GroupPayload{ID: g.ID, Name: g.Name, SortOrder: g.SortOrder})
	}
	for _, f := range friends {
		fp := FriendPayload{
			ID:          f.ID,
			Username:    f.Username,
			DisplayName: f.DisplayName,
			GroupIDs:    f.GroupIDs,
			Online:      online[f.UserID],
		}
		if f.Latitude != nil && f.Longitude != nil {
			fp.LastLocation = &FriendLocation{Lat: *f.Latitude, Lng: *f.Longitude}
			fp.LastLocationAt = f.LastLocationAt
		}
		payload.Friends = append(payload.Friends, fp)
	}
	return payload, nil
}

// validationDetails flattens validator errors into field -> message pairs.
func validationDetails(err error) map[string]string {
	details := map[string]string{}
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		details["body"] = err.Error()
		return details
	}
	for _, fe := range fieldErrors {
		switch fe.Field() {
		case "Latitude":
			details["latitude"] = "must be a number in [-90, 90]"
		case "Longitude":
			details["longitude"] = "must be a number in [-180, 180]"
		case "Timestamp":
			details["timestamp"] = "must be an ISO-8601 date-time"
		case "DeviceID":
			details["deviceId"] = "is required"
		default:
			details[fe.Field()] = fe.Tag()
		}
	}
	return details
}
