package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/whazzaudio/api/internal/model"
)

// UserStore persists registered accounts. Email and username
// uniqueness is enforced with HSETNX lookup hashes.
type UserStore struct {
	rdb *redis.Client
}

func NewUserStore(rdb *redis.Client) *UserStore {
	return &UserStore{rdb: rdb}
}

func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	id, err := s.rdb.Incr(ctx, keyUserSeq).Result()
	if err != nil {
		return err
	}
	user.ID = id
	idStr := strconv.FormatInt(id, 10)

	ok, err := s.rdb.HSetNX(ctx, keyUsersByEmail, normalize(user.Email), idStr).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	ok, err = s.rdb.HSetNX(ctx, keyUsersByName, normalize(user.Username), idStr).Result()
	if err != nil {
		return err
	}
	if !ok {
		s.rdb.HDel(ctx, keyUsersByEmail, normalize(user.Email))
		return ErrConflict
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, userKey(id), userToMap(user))
	pipe.ZAdd(ctx, keyUsersByCreated, redis.Z{Score: float64(user.CreatedAt.UnixNano()), Member: idStr})
	_, err = pipe.Exec(ctx)
	return err
}

func (s *UserStore) Get(ctx context.Context, id int64) (*model.User, error) {
	fields, err := s.rdb.HGetAll(ctx, userKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return userFromMap(id, fields), nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	idStr, err := s.rdb.HGet(ctx, keyUsersByEmail, normalize(email)).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, parseInt(idStr))
}

// SetActive flips the active flag.
func (s *UserStore) SetActive(ctx context.Context, id int64, active bool) error {
	return s.rdb.HSet(ctx, userKey(id), "is_active", strconv.FormatBool(active)).Err()
}

func (s *UserStore) Delete(ctx context.Context, user *model.User) error {
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, userKey(user.ID))
	pipe.HDel(ctx, keyUsersByEmail, normalize(user.Email))
	pipe.HDel(ctx, keyUsersByName, normalize(user.Username))
	pipe.ZRem(ctx, keyUsersByCreated, strconv.FormatInt(user.ID, 10))
	_, err := pipe.Exec(ctx)
	return err
}

// List returns users ordered newest first, optionally filtered by a
// substring match on email or username.
func (s *UserStore) List(ctx context.Context, offset, limit int64, search string) ([]*model.User, error) {
	ids, err := s.rdb.ZRevRange(ctx, keyUsersByCreated, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	search = normalize(search)

	users := make([]*model.User, 0, limit)
	var skipped int64
	for _, idStr := range ids {
		user, err := s.Get(ctx, parseInt(idStr))
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		if search != "" &&
			!strings.Contains(normalize(user.Email), search) &&
			!strings.Contains(normalize(user.Username), search) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		users = append(users, user)
		if int64(len(users)) >= limit {
			break
		}
	}
	return users, nil
}

func (s *UserStore) Count(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, keyUsersByCreated).Result()
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func userToMap(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"email":           u.Email,
		"username":        u.Username,
		"hashed_password": u.HashedPassword,
		"is_active":       strconv.FormatBool(u.IsActive),
		"is_admin":        strconv.FormatBool(u.IsAdmin),
		"created_at":      encodeTime(u.CreatedAt),
	}
}

func userFromMap(id int64, f map[string]string) *model.User {
	u := &model.User{
		ID:             id,
		Email:          f["email"],
		Username:       f["username"],
		HashedPassword: f["hashed_password"],
		IsActive:       f["is_active"] == "true",
		IsAdmin:        f["is_admin"] == "true",
	}
	if t, ok := parseTime(f["created_at"]); ok {
		u.CreatedAt = t
	}
	return u
}
