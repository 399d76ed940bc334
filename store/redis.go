package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/lukemcguire/portalaudit/result"
)

// DefaultRedisPrefix namespaces every key written by RedisStore.
const DefaultRedisPrefix = "portalaudit:"

// RedisStore keeps each result as a JSON string under <prefix>result:<id>,
// with ids in the sorted set <prefix>results and the id counter in
// <prefix>next_id.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to addr and checks the connection.
func OpenRedis(ctx context.Context, addr, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	s := &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: prefix,
	}
	if err := s.client.Ping(ctx).Err(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	return s, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) resultKey(id int64) string {
	return s.prefix + "result:" + strconv.FormatInt(id, 10)
}

func (s *RedisStore) indexKey() string   { return s.prefix + "results" }
func (s *RedisStore) counterKey() string { return s.prefix + "next_id" }

func (s *RedisStore) ListAll(ctx context.Context) ([]result.AnalysisResult, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list result ids: %w", err)
	}
	if len(ids) == 0 {
		return []result.AnalysisResult{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt result id %q: %w", raw, err)
		}
		keys = append(keys, s.resultKey(id))
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}

	results := make([]result.AnalysisResult, 0, len(vals))
	for i, val := range vals {
		payload, ok := val.(string)
		if !ok {
			// Index entry without a payload; removed concurrently.
			continue
		}
		var r result.AnalysisResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode %s: %w", keys[i], err)
		}
		if r.Violations == nil {
			r.Violations = []result.Violation{}
		}
		results = append(results, r)
	}
	return results, nil
}

func (s *RedisStore) Get(ctx context.Context, id int64) (result.AnalysisResult, error) {
	val, err := s.client.Get(ctx, s.resultKey(id)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return result.AnalysisResult{}, fmt.Errorf("result %d: %w", id, ErrNotFound)
		}
		return result.AnalysisResult{}, fmt.Errorf("get result %d: %w", id, err)
	}

	var r result.AnalysisResult
	if err := json.Unmarshal([]byte(val), &r); err != nil {
		return result.AnalysisResult{}, fmt.Errorf("decode result %d: %w", id, err)
	}
	if r.Violations == nil {
		r.Violations = []result.Violation{}
	}
	return r, nil
}

func (s *RedisStore) InsertMany(ctx context.Context, results []result.AnalysisResult) ([]result.AnalysisResult, error) {
	if len(results) == 0 {
		return []result.AnalysisResult{}, nil
	}

	last, err := s.client.IncrBy(ctx, s.counterKey(), int64(len(results))).Result()
	if err != nil {
		return nil, fmt.Errorf("allocate ids: %w", err)
	}
	first := last - int64(len(results)) + 1

	inserted := make([]result.AnalysisResult, 0, len(results))
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, r := range results {
			r.ID = first + int64(i)
			payload, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("encode %s: %w", r.URL, err)
			}
			pipe.Set(ctx, s.resultKey(r.ID), payload, 0)
			pipe.ZAdd(ctx, s.indexKey(), redis.Z{Score: float64(r.ID), Member: r.ID})
			inserted = append(inserted, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store results: %w", err)
	}
	return inserted, nil
}

func (s *RedisStore) Update(ctx context.Context, r result.AnalysisResult) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result %d: %w", r.ID, err)
	}
	// XX: only overwrite an existing key.
	ok, err := s.client.SetXX(ctx, s.resultKey(r.ID), payload, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("update result %d: %w", r.ID, err)
	}
	if !ok {
		return fmt.Errorf("result %d: %w", r.ID, ErrNotFound)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id int64) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, s.resultKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete result %d: %w", id, err)
	}
	if del.Val() == 0 {
		return fmt.Errorf("result %d: %w", id, ErrNotFound)
	}
	return nil
}
