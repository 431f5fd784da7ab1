package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/annikahq/planner-bridge/internal/task"
)

// Key layout under the configured namespace.
const (
	keyTasks   = "tasks"           // <ns>:tasks:<annikaID> → task JSON
	keyIDMap   = "planner:id_map"  // <ns>:planner:id_map:<id> → counterpart ID
	keyETag    = "planner:etag"    // <ns>:planner:etag:<plannerID> → etag
	keyUpdates = "tasks:updates"   // pub/sub channel for change signals
)

// plannerIDPrefixes distinguish Planner IDs from Annika IDs when scanning
// the shared id_map keyspace. Planner task IDs are opaque base64-ish
// strings; Annika IDs carry a "Task-" style prefix. We store a direction
// marker in the value instead of guessing: values are "a:<id>" or "p:<id>".
const (
	dirToPlanner = "p:"
	dirToAnnika  = "a:"
)

// Redis implements Store on a Redis connection.
type Redis struct {
	client    *redis.Client
	namespace string
	logger    *log.Logger
}

// RedisConfig holds connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string // key prefix, default "annika"

	Logger *log.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	if cfg.Namespace == "" {
		cfg.Namespace = "annika"
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return &Redis{
		client:    client,
		namespace: cfg.Namespace,
		logger:    cfg.Logger,
	}, nil
}

func (r *Redis) key(parts ...string) string {
	return r.namespace + ":" + strings.Join(parts, ":")
}

// GetTask implements Store.GetTask.
func (r *Redis) GetTask(ctx context.Context, id string) (*task.Task, error) {
	data, err := r.client.Get(ctx, r.key(keyTasks, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task %s: %w", id, err)
	}
	return task.Unmarshal(data)
}

// PutTask implements Store.PutTask.
func (r *Redis) PutTask(ctx context.Context, t *task.Task) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(keyTasks, t.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store task %s: %w", t.ID, err)
	}
	return nil
}

// DeleteTask implements Store.DeleteTask.
func (r *Redis) DeleteTask(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(keyTasks, id)).Err(); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// ListTaskIDs implements Store.ListTaskIDs using SCAN, not KEYS, so a
// large task set does not block the server.
func (r *Redis) ListTaskIDs(ctx context.Context) ([]string, error) {
	prefix := r.key(keyTasks) + ":"
	var ids []string

	iter := r.client.Scan(ctx, 0, prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan task keys: %w", err)
	}
	return ids, nil
}

// PutMapping implements Store.PutMapping. Both directions are written in
// one MULTI/EXEC so no observer ever sees half a pair.
func (r *Redis) PutMapping(ctx context.Context, annikaID, plannerID string) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(keyIDMap, annikaID), dirToPlanner+plannerID, 0)
	pipe.Set(ctx, r.key(keyIDMap, plannerID), dirToAnnika+annikaID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store mapping %s↔%s: %w", annikaID, plannerID, err)
	}
	return nil
}

// DeleteMapping implements Store.DeleteMapping.
func (r *Redis) DeleteMapping(ctx context.Context, annikaID, plannerID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.key(keyIDMap, annikaID))
	pipe.Del(ctx, r.key(keyIDMap, plannerID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete mapping %s↔%s: %w", annikaID, plannerID, err)
	}
	return nil
}

// GetPlannerID implements Store.GetPlannerID.
func (r *Redis) GetPlannerID(ctx context.Context, annikaID string) (string, error) {
	return r.getMapping(ctx, annikaID, dirToPlanner)
}

// GetAnnikaID implements Store.GetAnnikaID.
func (r *Redis) GetAnnikaID(ctx context.Context, plannerID string) (string, error) {
	return r.getMapping(ctx, plannerID, dirToAnnika)
}

func (r *Redis) getMapping(ctx context.Context, id, wantDir string) (string, error) {
	val, err := r.client.Get(ctx, r.key(keyIDMap, id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get mapping for %s: %w", id, err)
	}
	if !strings.HasPrefix(val, wantDir) {
		// Key exists but points the other way; the caller asked with the
		// wrong kind of ID.
		return "", ErrNotFound
	}
	return strings.TrimPrefix(val, wantDir), nil
}

// ListMappedPlannerIDs implements Store.ListMappedPlannerIDs.
func (r *Redis) ListMappedPlannerIDs(ctx context.Context) ([]string, error) {
	prefix := r.key(keyIDMap) + ":"
	var ids []string

	iter := r.client.Scan(ctx, 0, prefix+"*", 256).Iterator()
	for iter.Next(ctx) {
		val, err := r.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue // pair deleted mid-scan
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read mapping %s: %w", iter.Val(), err)
		}
		// Forward entries point at Planner IDs; collect those.
		if strings.HasPrefix(val, dirToPlanner) {
			ids = append(ids, strings.TrimPrefix(val, dirToPlanner))
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan mapping keys: %w", err)
	}
	return ids, nil
}

// GetETag implements Store.GetETag.
func (r *Redis) GetETag(ctx context.Context, plannerID string) (string, error) {
	etag, err := r.client.Get(ctx, r.key(keyETag, plannerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get etag for %s: %w", plannerID, err)
	}
	return etag, nil
}

// PutETag implements Store.PutETag.
func (r *Redis) PutETag(ctx context.Context, plannerID, etag string) error {
	if err := r.client.Set(ctx, r.key(keyETag, plannerID), etag, 0).Err(); err != nil {
		return fmt.Errorf("failed to store etag for %s: %w", plannerID, err)
	}
	return nil
}

// DeleteETag implements Store.DeleteETag.
func (r *Redis) DeleteETag(ctx context.Context, plannerID string) error {
	if err := r.client.Del(ctx, r.key(keyETag, plannerID)).Err(); err != nil {
		return fmt.Errorf("failed to delete etag for %s: %w", plannerID, err)
	}
	return nil
}

// PublishChange implements Store.PublishChange.
func (r *Redis) PublishChange(ctx context.Context, sig *task.Signal) error {
	data, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal change signal: %w", err)
	}
	if err := r.client.Publish(ctx, r.key(keyUpdates), data).Err(); err != nil {
		return fmt.Errorf("failed to publish change signal: %w", err)
	}
	return nil
}

// Subscribe implements Store.Subscribe. Malformed messages are logged and
// skipped; one bad publisher must not stall the engine.
func (r *Redis) Subscribe(ctx context.Context) (<-chan *task.Signal, error) {
	sub := r.client.Subscribe(ctx, r.key(keyUpdates))

	// Confirm the subscription before returning so callers don't miss
	// signals published immediately after.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.key(keyUpdates), err)
	}

	out := make(chan *task.Signal, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var sig task.Signal
				if err := json.Unmarshal([]byte(msg.Payload), &sig); err != nil {
					r.logger.Printf("Warning: dropping malformed change signal: %v", err)
					continue
				}
				select {
				case out <- &sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Ping implements Store.Ping.
func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close implements Store.Close.
func (r *Redis) Close() error {
	return r.client.Close()
}
