// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package redisstore implements store.Store on Redis.
//
// Layout, with every key under the configured prefix:
//
//	<p>:run:<id>               hash with the run entry fields
//	<p>:runs                   zset of run ids scored by timestamp
//	<p>:runs:<identifier>      zset of run ids for one identifier
//	<p>:plugruns:<identifier>  zset of plug.run.* ids, used by Count
//	<p>:activations            hash "<kind>/<identifier>" -> "<0|1> <updated_at>"
package redisstore

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/postwright/postwright/internal/store"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// DefaultPrefix namespaces keys when RedisConfig.Prefix is empty.
const DefaultPrefix = "postwright"

var (
	_ store.Store           = (*Store)(nil)
	_ store.RunLedger       = (*runLedger)(nil)
	_ store.ActivationStore = (*activationStore)(nil)
)

func init() {
	store.RegisterBackend("redis", func(cfg *store.Config, _ string) (store.Store, error) {
		return Open(context.Background(), cfg.Redis)
	})
}

// Store implements store.Store backed by Redis.
type Store struct {
	client      *redis.Client
	runs        *runLedger
	activations *activationStore
}

// Open connects to Redis and verifies the connection.
func Open(ctx context.Context, cfg store.RedisConfig) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		return nil, pwerr.New(pwerr.CodeStoreInvalidInput, "redis address must not be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "connecting to redis",
			pwerr.Field("addr", cfg.Addr))
	}
	return New(client, cfg.Prefix), nil
}

// New wraps an existing client. The client is closed by Store.Close.
func New(client *redis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	k := keys{prefix: prefix}
	return &Store{
		client:      client,
		runs:        &runLedger{client: client, keys: k},
		activations: &activationStore{client: client, keys: k},
	}
}

// Runs returns the run ledger.
func (s *Store) Runs() store.RunLedger { return s.runs }

// Activations returns the activation override store.
func (s *Store) Activations() store.ActivationStore { return s.activations }

// Close closes the Redis client.
func (s *Store) Close() error { return s.client.Close() }

type keys struct {
	prefix string
}

func (k keys) run(id string) string { return k.prefix + ":run:" + id }
func (k keys) runs() string         { return k.prefix + ":runs" }

func (k keys) runsFor(identifier string) string     { return k.prefix + ":runs:" + identifier }
func (k keys) plugRunsFor(identifier string) string { return k.prefix + ":plugruns:" + identifier }

func (k keys) activations() string { return k.prefix + ":activations" }

// ---------- runLedger ----------

type runLedger struct {
	client *redis.Client
	keys   keys
}

func (l *runLedger) Append(ctx context.Context, entry *store.RunEntry) error {
	if entry == nil {
		return pwerr.New(pwerr.CodeStoreInvalidInput, "run entry must not be nil")
	}
	if err := entry.Validate(); err != nil {
		return err
	}

	key := l.keys.run(entry.ID)
	created, err := l.client.HSetNX(ctx, key, "id", entry.ID).Result()
	if err != nil {
		return pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "appending run entry", pwerr.Field("id", entry.ID))
	}
	if !created {
		return pwerr.New(pwerr.CodeStoreDatabaseFailure, "run entry already exists", pwerr.Field("id", entry.ID))
	}

	score := float64(entry.Timestamp.UnixNano())
	member := redis.Z{Score: score, Member: entry.ID}
	_, err = l.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"kind", entry.Kind,
			"identifier", entry.Identifier,
			"owner", entry.Owner,
			"run", entry.Run,
			"error", entry.Error,
			"ts", entry.Timestamp.UnixNano(),
		)
		p.ZAdd(ctx, l.keys.runs(), member)
		p.ZAdd(ctx, l.keys.runsFor(entry.Identifier), member)
		if strings.HasPrefix(entry.Kind, "plug.run.") {
			p.ZAdd(ctx, l.keys.plugRunsFor(entry.Identifier), member)
		}
		return nil
	})
	if err != nil {
		return pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "appending run entry", pwerr.Field("id", entry.ID))
	}
	return nil
}

func (l *runLedger) Query(ctx context.Context, filter store.RunFilter) ([]*store.RunEntry, error) {
	index := l.keys.runs()
	if filter.Identifier != "" {
		index = l.keys.runsFor(filter.Identifier)
	}

	rng := &redis.ZRangeBy{Min: "-inf", Max: "+inf"}
	if !filter.From.IsZero() {
		rng.Min = strconv.FormatInt(filter.From.UnixNano(), 10)
	}
	if !filter.To.IsZero() {
		rng.Max = "(" + strconv.FormatInt(filter.To.UnixNano(), 10)
	}
	ids, err := l.client.ZRangeByScore(ctx, index, rng).Result()
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "querying run ledger")
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = l.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = p.HGetAll(ctx, l.keys.run(id))
		}
		return nil
	})
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "loading run entries")
	}

	limit := filter.EffectiveLimit()
	skip := max(filter.Offset, 0)
	var entries []*store.RunEntry
	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		e, err := decodeRun(fields)
		if err != nil {
			return nil, err
		}
		if filter.Kind != "" && e.Kind != filter.Kind {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		entries = append(entries, e)
		if len(entries) == limit {
			break
		}
	}
	return entries, nil
}

func (l *runLedger) Count(ctx context.Context, identifier string) (int, error) {
	n, err := l.client.ZCard(ctx, l.keys.plugRunsFor(identifier)).Result()
	if err != nil {
		return 0, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "counting runs", pwerr.FieldPlug(identifier))
	}
	return int(n), nil
}

func decodeRun(fields map[string]string) (*store.RunEntry, error) {
	run, err := strconv.Atoi(fields["run"])
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "decoding run number", pwerr.Field("id", fields["id"]))
	}
	ts, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "decoding run timestamp", pwerr.Field("id", fields["id"]))
	}
	return &store.RunEntry{
		ID:         fields["id"],
		Kind:       fields["kind"],
		Identifier: fields["identifier"],
		Owner:      fields["owner"],
		Run:        run,
		Error:      fields["error"],
		Timestamp:  time.Unix(0, ts).UTC(),
	}, nil
}

// ---------- activationStore ----------

type activationStore struct {
	client *redis.Client
	keys   keys
}

func (s *activationStore) Set(ctx context.Context, a store.Activation) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now()
	}
	if err := s.client.HSet(ctx, s.keys.activations(), activationField(a), encodeActivation(a)).Err(); err != nil {
		return pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "saving activation",
			pwerr.Field("kind", string(a.Kind)), pwerr.Field("identifier", a.Identifier))
	}
	return nil
}

func (s *activationStore) List(ctx context.Context) ([]store.Activation, error) {
	all, err := s.client.HGetAll(ctx, s.keys.activations()).Result()
	if err != nil {
		return nil, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "listing activations")
	}
	out := make([]store.Activation, 0, len(all))
	for field, value := range all {
		a, err := decodeActivation(field, value)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	sortActivations(out)
	return out, nil
}

func activationField(a store.Activation) string {
	return string(a.Kind) + "/" + a.Identifier
}

func encodeActivation(a store.Activation) string {
	flag := "0"
	if a.Disabled {
		flag = "1"
	}
	return flag + " " + strconv.FormatInt(a.UpdatedAt.UnixNano(), 10)
}

func decodeActivation(field, value string) (store.Activation, error) {
	kind, identifier, ok := strings.Cut(field, "/")
	flag, ts, ok2 := strings.Cut(value, " ")
	if !ok || !ok2 {
		return store.Activation{}, pwerr.New(pwerr.CodeStoreDatabaseFailure, "malformed activation record",
			pwerr.Field("field", field))
	}
	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return store.Activation{}, pwerr.Wrap(err, pwerr.CodeStoreDatabaseFailure, "decoding activation timestamp",
			pwerr.Field("field", field))
	}
	return store.Activation{
		Kind:       capability.Kind(kind),
		Identifier: identifier,
		Disabled:   flag == "1",
		UpdatedAt:  time.Unix(0, nanos).UTC(),
	}, nil
}

func sortActivations(list []store.Activation) {
	slices.SortFunc(list, func(a, b store.Activation) int {
		return strings.Compare(activationField(a), activationField(b))
	})
}
