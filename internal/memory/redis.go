package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/normanking/switchboard/internal/logging"
	"github.com/normanking/switchboard/internal/metrics"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	MaxTurns int
	// Prefix namespaces keys; defaults to "switchboard:history".
	Prefix string
}

// RedisStore keeps each user's history as a capped list of JSON turns.
type RedisStore struct {
	rdb      *redis.Client
	prefix   string
	maxTurns int
	log      *logging.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore connects and pings the server.
func NewRedisStore(opts RedisOptions) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, unavailable("open", fmt.Errorf("redis ping failed: %w", err))
	}

	return newRedisStore(rdb, opts), nil
}

func newRedisStore(rdb *redis.Client, opts RedisOptions) *RedisStore {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Prefix == "" {
		opts.Prefix = "switchboard:history"
	}
	return &RedisStore{
		rdb:      rdb,
		prefix:   opts.Prefix,
		maxTurns: opts.MaxTurns,
		log:      logging.Global().WithComponent("Memory"),
	}
}

func (s *RedisStore) listKey(userID string) string {
	return s.prefix + ":" + userID
}

func (s *RedisStore) seqKey(userID string) string {
	return s.prefix + ":" + userID + ":seq"
}

type redisTurn struct {
	Seq     int64   `json:"seq"`
	Role    Role    `json:"role"`
	Content string  `json:"content"`
	TS      float64 `json:"ts"`
}

// AddTurn assigns the next sequence number, then appends and trims in one
// MULTI/EXEC pipeline.
func (s *RedisStore) AddTurn(ctx context.Context, userID string, role Role, content string) (err error) {
	defer func() { metrics.ObserveMemory("add_turn", err) }()

	if err := validateTurn(role); err != nil {
		return err
	}

	seq, err := s.rdb.Incr(ctx, s.seqKey(userID)).Result()
	if err != nil {
		return unavailable("add_turn", fmt.Errorf("incr seq: %w", err))
	}

	payload, err := json.Marshal(redisTurn{
		Seq:     seq,
		Role:    role,
		Content: content,
		TS:      float64(time.Now().UnixNano()) / 1e9,
	})
	if err != nil {
		return unavailable("add_turn", err)
	}

	key := s.listKey(userID)
	keep := int64(2 * s.maxTurns)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, payload)
		pipe.LTrim(ctx, key, -keep, -1)
		return nil
	})
	if err != nil {
		s.log.Warn("add turn for %s failed: %v", userID, err)
		return unavailable("add_turn", err)
	}
	return nil
}

// GetHistory returns the retained turns, oldest first.
func (s *RedisStore) GetHistory(ctx context.Context, userID string) (turns []Turn, err error) {
	defer func() { metrics.ObserveMemory("get_history", err) }()

	keep := int64(2 * s.maxTurns)
	raw, err := s.rdb.LRange(ctx, s.listKey(userID), -keep, -1).Result()
	if err != nil {
		return nil, unavailable("get_history", err)
	}

	turns = make([]Turn, 0, len(raw))
	for _, item := range raw {
		var rt redisTurn
		if err := json.Unmarshal([]byte(item), &rt); err != nil {
			s.log.Warn("skipping undecodable turn for %s: %v", userID, err)
			continue
		}
		turns = append(turns, Turn{
			UserID:    userID,
			Role:      rt.Role,
			Content:   rt.Content,
			Seq:       rt.Seq,
			CreatedAt: time.Unix(0, int64(rt.TS*1e9)),
		})
	}
	return turns, nil
}

// FormatForPrompt implements Store.
func (s *RedisStore) FormatForPrompt(ctx context.Context, userID string) (string, error) {
	return formatFor(ctx, s, userID)
}

// Clear deletes the user's list and sequence counter.
func (s *RedisStore) Clear(ctx context.Context, userID string) (err error) {
	defer func() { metrics.ObserveMemory("clear", err) }()

	if err := s.rdb.Del(ctx, s.listKey(userID), s.seqKey(userID)).Err(); err != nil {
		return unavailable("clear", err)
	}
	return nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
