// Package redis provides a Redis/Valkey implementation of the repository interface
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/navikt/zspatial/internal/config"
	"github.com/navikt/zspatial/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a requested room is not stored
var ErrNotFound = models.ErrRoomNotFound

// Repository implements the repository interface with Redis storage
type Repository struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRepository creates a new Redis repository
func NewRepository(cfg config.RedisConfig) (*Repository, error) {
	var client *redis.Client

	// Use URI if provided, otherwise build connection from individual parameters
	if cfg.URI != "" {
		opt, err := redis.ParseURL(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URI: %w", err)
		}

		// Use DB from config if not specified in the URI
		if opt.DB == 0 {
			opt.DB = cfg.DB
		}

		if opt.Password == "" && cfg.Password != "" {
			opt.Password = cfg.Password
		}

		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Repository{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.SnapshotTTL,
	}, nil
}

// Close closes the Redis connection
func (r *Repository) Close() error {
	return r.client.Close()
}

// roomKey returns the Redis key for a room snapshot
func (r *Repository) roomKey(id string) string {
	return fmt.Sprintf("%srooms:%s", r.keyPrefix, id)
}

// SaveRoom stores a snapshot with the configured TTL, refreshing it on every write
func (r *Repository) SaveRoom(ctx context.Context, snapshot *models.RoomSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal room: %w", err)
	}

	if err := r.client.Set(ctx, r.roomKey(snapshot.ID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save room: %w", err)
	}
	return nil
}

// GetRoom retrieves a room snapshot by ID
func (r *Repository) GetRoom(ctx context.Context, id string) (*models.RoomSnapshot, error) {
	data, err := r.client.Get(ctx, r.roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get room: %w", err)
	}

	var snapshot models.RoomSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal room: %w", err)
	}
	return &snapshot, nil
}

// ListRooms returns every stored snapshot ordered by room ID
func (r *Repository) ListRooms(ctx context.Context) ([]*models.RoomSnapshot, error) {
	keys, err := r.client.Keys(ctx, r.roomKey("*")).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	if len(keys) == 0 {
		return []*models.RoomSnapshot{}, nil
	}

	// Use MGET to retrieve all snapshots in a single roundtrip
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get room data: %w", err)
	}

	rooms := make([]*models.RoomSnapshot, 0, len(values))
	for _, v := range values {
		// Keys can expire between KEYS and MGET
		strData, ok := v.(string)
		if !ok {
			continue
		}

		var snapshot models.RoomSnapshot
		if err := json.Unmarshal([]byte(strData), &snapshot); err != nil {
			continue
		}
		rooms = append(rooms, &snapshot)
	}

	sort.Slice(rooms, func(i, j int) bool { return rooms[i].ID < rooms[j].ID })
	return rooms, nil
}

// DeleteRoom removes a room snapshot
func (r *Repository) DeleteRoom(ctx context.Context, id string) error {
	deleted, err := r.client.Del(ctx, r.roomKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	if deleted == 0 {
		return ErrNotFound
	}
	return nil
}
