// Package redis stores a catalog in Redis: one string key per form holding its
// JSON encoding and a sorted set indexing ids by creation time.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/joeshaw/envdecode"
	goredis "github.com/redis/go-redis/v9"

	"github.com/goliatone/go-formcalc/pkg/catalog"
	"github.com/goliatone/go-formcalc/pkg/schema"
)

const (
	defaultAddr   = "localhost:6379"
	defaultPrefix = "formcalc:forms:"
)

// Config for the Redis catalog. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: FORMCALC_REDIS_ADDR
	Addr string `env:"FORMCALC_REDIS_ADDR,default=localhost:6379"`
	// Prefix for all keys. ENV: FORMCALC_REDIS_PREFIX
	Prefix string `env:"FORMCALC_REDIS_PREFIX,default=formcalc:forms:"`
}

// Store is a catalog.Store backed by Redis.
type Store struct {
	client *goredis.Client
	prefix string
}

var _ catalog.Store = (*Store)(nil)

// New connects and pings the server.
func New(cfg Config) (*Store, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = defaultAddr
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	client := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return &Store{client: client, prefix: prefix}, nil
}

// NewFromEnv builds a Store from FORMCALC_REDIS_* variables.
func NewFromEnv() (*Store, error) {
	cfg, err := ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

// ConfigFromEnv decodes Config from the environment, applying tag defaults.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("redis: decode env: %w", err)
	}
	return cfg, nil
}

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

func (s *Store) formKey(id string) string { return s.prefix + "form:" + id }
func (s *Store) indexKey() string         { return s.prefix + "index" }

func (s *Store) Add(ctx context.Context, form schema.Form) (schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return schema.Form{}, err
	}
	prepared, err := catalog.Prepare(form)
	if err != nil {
		return schema.Form{}, err
	}
	payload, err := json.Marshal(prepared)
	if err != nil {
		return schema.Form{}, fmt.Errorf("redis: encode form: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.formKey(prepared.ID), payload, 0)
		pipe.ZAdd(ctx, s.indexKey(), goredis.Z{
			Score:  float64(prepared.CreatedAt.UnixMilli()),
			Member: prepared.ID,
		})
		return nil
	})
	if err != nil {
		return schema.Form{}, fmt.Errorf("redis: add %q: %w", prepared.ID, err)
	}
	return prepared, nil
}

func (s *Store) Get(ctx context.Context, id string) (schema.Form, error) {
	data, err := s.client.Get(ctx, s.formKey(id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return schema.Form{}, catalog.NotFound(id)
	}
	if err != nil {
		return schema.Form{}, fmt.Errorf("redis: get %q: %w", id, err)
	}
	return decodeForm(data)
}

// List reads the index and fetches every form in one MGET. Index entries
// whose form key has vanished are skipped.
func (s *Store) List(ctx context.Context) ([]schema.Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list index: %w", err)
	}
	forms := make([]schema.Form, 0, len(ids))
	if len(ids) == 0 {
		return forms, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.formKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: list forms: %w", err)
	}
	for _, raw := range values {
		var data []byte
		switch v := raw.(type) {
		case nil:
			continue
		case string:
			data = []byte(v)
		case []byte:
			data = v
		default:
			return nil, fmt.Errorf("redis: unexpected value type %T", raw)
		}
		form, err := decodeForm(data)
		if err != nil {
			return nil, err
		}
		forms = append(forms, form)
	}
	// Scores have millisecond resolution; settle ties and sub-millisecond
	// differences the same way every backend does.
	catalog.SortForms(forms)
	return forms, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	var removed *goredis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		removed = pipe.Del(ctx, s.formKey(id))
		pipe.ZRem(ctx, s.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: delete %q: %w", id, err)
	}
	if removed.Val() == 0 {
		return catalog.NotFound(id)
	}
	return nil
}

// Purge removes every key under the store's prefix that the catalog owns.
func (s *Store) Purge(ctx context.Context) error {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return fmt.Errorf("redis: purge: %w", err)
	}
	keys := []string{s.indexKey()}
	for _, id := range ids {
		keys = append(keys, s.formKey(id))
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: purge: %w", err)
	}
	return nil
}

func decodeForm(data []byte) (schema.Form, error) {
	var form schema.Form
	if err := json.Unmarshal(data, &form); err != nil {
		return schema.Form{}, fmt.Errorf("redis: decode form: %w", err)
	}
	return form, nil
}
