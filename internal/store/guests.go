package store

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whazzaudio/api/internal/model"
)

// GuestStore persists anonymous guest sessions.
type GuestStore struct {
	rdb *redis.Client
}

func NewGuestStore(rdb *redis.Client) *GuestStore {
	return &GuestStore{rdb: rdb}
}

func (s *GuestStore) Create(ctx context.Context, session *model.GuestSession) error {
	id, err := s.rdb.Incr(ctx, keyGuestSeq).Result()
	if err != nil {
		return err
	}
	session.ID = id

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, guestKey(session.GuestID), guestToMap(session))
	pipe.ZAdd(ctx, keyGuestsByCreated, redis.Z{Score: float64(session.CreatedAt.UnixNano()), Member: session.GuestID})
	pipe.ZAdd(ctx, keyGuestsByExpiry, redis.Z{Score: float64(session.ExpiresAt.Unix()), Member: session.GuestID})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *GuestStore) Get(ctx context.Context, guestID string) (*model.GuestSession, error) {
	fields, err := s.rdb.HGetAll(ctx, guestKey(guestID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return guestFromMap(guestID, fields), nil
}

// Exists reports whether a session record is present, without reading it.
func (s *GuestStore) Exists(ctx context.Context, guestID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, guestKey(guestID)).Result()
	return n > 0, err
}

// Touch updates the last-active timestamp.
func (s *GuestStore) Touch(ctx context.Context, guestID string, at time.Time) error {
	return s.rdb.HSet(ctx, guestKey(guestID), "last_active_at", encodeTime(at)).Err()
}

// MarkConverted records that the guest registered as a user.
func (s *GuestStore) MarkConverted(ctx context.Context, guestID string, userID int64) error {
	return s.rdb.HSet(ctx, guestKey(guestID), "converted_to_user_id", strconv.FormatInt(userID, 10)).Err()
}

func (s *GuestStore) Delete(ctx context.Context, guestID string) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, guestKey(guestID))
	pipe.ZRem(ctx, keyGuestsByCreated, guestID)
	pipe.ZRem(ctx, keyGuestsByExpiry, guestID)
	_, err := pipe.Exec(ctx)
	return err
}

// ListExpired returns ids of sessions whose expiry has passed.
func (s *GuestStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	return s.rdb.ZRangeByScore(ctx, keyGuestsByExpiry, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
}

// List returns sessions ordered newest first.
func (s *GuestStore) List(ctx context.Context, offset, limit int64) ([]*model.GuestSession, error) {
	ids, err := s.rdb.ZRevRange(ctx, keyGuestsByCreated, offset, offset+limit-1).Result()
	if err != nil {
		return nil, err
	}
	sessions := make([]*model.GuestSession, 0, len(ids))
	for _, id := range ids {
		session, err := s.Get(ctx, id)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func (s *GuestStore) Count(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, keyGuestsByCreated).Result()
}

func guestToMap(g *model.GuestSession) map[string]interface{} {
	m := map[string]interface{}{
		"id":             strconv.FormatInt(g.ID, 10),
		"created_at":     encodeTime(g.CreatedAt),
		"last_active_at": encodeTime(g.LastActiveAt),
		"expires_at":     encodeTime(g.ExpiresAt),
	}
	if g.IPAddress != "" {
		m["ip_address"] = g.IPAddress
	}
	if g.UserAgent != "" {
		m["user_agent"] = g.UserAgent
	}
	return m
}

func guestFromMap(guestID string, f map[string]string) *model.GuestSession {
	g := &model.GuestSession{
		ID:                parseInt(f["id"]),
		GuestID:           guestID,
		IPAddress:         f["ip_address"],
		UserAgent:         f["user_agent"],
		ConvertedToUserID: parseInt(f["converted_to_user_id"]),
	}
	if t, ok := parseTime(f["created_at"]); ok {
		g.CreatedAt = t
	}
	if t, ok := parseTime(f["last_active_at"]); ok {
		g.LastActiveAt = t
	}
	if t, ok := parseTime(f["expires_at"]); ok {
		g.ExpiresAt = t
	}
	return g
}
