package store

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// QueryObserver receives per-operation latencies.
type QueryObserver interface {
	ObserveDBQuery(label string, duration time.Duration)
}

// ListCache is the subset of the cache service used for list caching.
type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type instrumented struct {
	Store
	observer QueryObserver
}

// WithMetrics records the latency of every call under "<op>:<table>".
func WithMetrics(next Store, observer QueryObserver) Store {
	if observer == nil {
		return next
	}
	return &instrumented{Store: next, observer: observer}
}

func (s *instrumented) observe(op, table string, start time.Time) {
	s.observer.ObserveDBQuery(op+":"+table, time.Since(start))
}

func (s *instrumented) Select(ctx context.Context, q Query, dest interface{}) error {
	defer s.observe("select", q.Table, time.Now())
	return s.Store.Select(ctx, q, dest)
}

func (s *instrumented) Count(ctx context.Context, q Query) (int, error) {
	defer s.observe("count", q.Table, time.Now())
	return s.Store.Count(ctx, q)
}

func (s *instrumented) Get(ctx context.Context, q Query, dest interface{}) error {
	defer s.observe("get", q.Table, time.Now())
	return s.Store.Get(ctx, q, dest)
}

func (s *instrumented) Insert(ctx context.Context, table string, row Row, dest interface{}) error {
	defer s.observe("insert", table, time.Now())
	return s.Store.Insert(ctx, table, row, dest)
}

func (s *instrumented) Upsert(ctx context.Context, table string, conflict []string, row Row, dest interface{}) error {
	defer s.observe("upsert", table, time.Now())
	return s.Store.Upsert(ctx, table, conflict, row, dest)
}

func (s *instrumented) InsertIgnore(ctx context.Context, table string, conflict []string, rows []Row) (int, error) {
	defer s.observe("insert_ignore", table, time.Now())
	return s.Store.InsertIgnore(ctx, table, conflict, rows)
}

func (s *instrumented) Update(ctx context.Context, table string, filters []Filter, patch Row, dest interface{}) error {
	defer s.observe("update", table, time.Now())
	return s.Store.Update(ctx, table, filters, patch, dest)
}

type cached struct {
	Store
	cache ListCache
	ttl   time.Duration
	gens  sync.Map // table -> *atomic.Uint64, bumped after every write
}

// WithCache serves Select from the list cache and drops a table's cached lists
// after any successful write to it.
func WithCache(next Store, cache ListCache, ttl time.Duration) Store {
	if cache == nil {
		return next
	}
	return &cached{Store: next, cache: cache, ttl: ttl}
}

// ListKey is the cache key for q's rows.
func ListKey(q Query) string {
	return "list:" + q.Key()
}

// ListPattern matches every cached list of table.
func ListPattern(table string) string {
	return "list:" + table + ":*"
}

func (s *cached) generation(table string) *atomic.Uint64 {
	g, _ := s.gens.LoadOrStore(table, new(atomic.Uint64))
	return g.(*atomic.Uint64)
}

// Select only caches rows when no write to the table landed while they were
// fetched. A write that slips in between the check and the cache write is
// caught by the second check and the table's lists are dropped again.
func (s *cached) Select(ctx context.Context, q Query, dest interface{}) error {
	key := ListKey(q)
	if hit, err := s.cache.Get(ctx, key, dest); err == nil && hit {
		return nil
	}
	gen := s.generation(q.Table)
	seen := gen.Load()
	if err := s.Store.Select(ctx, q, dest); err != nil {
		return err
	}
	if gen.Load() != seen {
		return nil
	}
	_ = s.cache.Set(ctx, key, dest, s.ttl)
	if gen.Load() != seen {
		_ = s.cache.Invalidate(ctx, ListPattern(q.Table))
	}
	return nil
}

func (s *cached) invalidate(ctx context.Context, table string) {
	s.generation(table).Add(1)
	_ = s.cache.Invalidate(ctx, ListPattern(table))
}

func (s *cached) Insert(ctx context.Context, table string, row Row, dest interface{}) error {
	if err := s.Store.Insert(ctx, table, row, dest); err != nil {
		return err
	}
	s.invalidate(ctx, table)
	return nil
}

func (s *cached) Upsert(ctx context.Context, table string, conflict []string, row Row, dest interface{}) error {
	if err := s.Store.Upsert(ctx, table, conflict, row, dest); err != nil {
		return err
	}
	s.invalidate(ctx, table)
	return nil
}

func (s *cached) InsertIgnore(ctx context.Context, table string, conflict []string, rows []Row) (int, error) {
	n, err := s.Store.InsertIgnore(ctx, table, conflict, rows)
	if err != nil {
		return n, err
	}
	if n > 0 {
		s.invalidate(ctx, table)
	}
	return n, nil
}

func (s *cached) Update(ctx context.Context, table string, filters []Filter, patch Row, dest interface{}) error {
	if err := s.Store.Update(ctx, table, filters, patch, dest); err != nil {
		return err
	}
	s.invalidate(ctx, table)
	return nil
}

// sharedFetchTimeout bounds a collapsed fetch, which no longer follows any
// single caller's cancellation.
const sharedFetchTimeout = 30 * time.Second

type collapsing struct {
	Store
	group singleflight.Group
}

// WithSingleflight makes identical concurrent Select and Count calls share one
// fetch. Each caller receives its own copy of the rows, and a caller that
// goes away only abandons its own wait.
func WithSingleflight(next Store) Store {
	return &collapsing{Store: next}
}

func (s *collapsing) do(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()
		return fetch(fetchCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (s *collapsing) Select(ctx context.Context, q Query, dest interface{}) error {
	target := reflect.ValueOf(dest)
	if target.Kind() != reflect.Ptr || target.Elem().Kind() != reflect.Slice {
		return s.Store.Select(ctx, q, dest)
	}
	sliceType := target.Elem().Type()
	key := fmt.Sprintf("select|%s|%s", sliceType.String(), q.Key())
	shared, err := s.do(ctx, key, func(ctx context.Context) (interface{}, error) {
		fresh := reflect.New(sliceType)
		if err := s.Store.Select(ctx, q, fresh.Interface()); err != nil {
			return nil, err
		}
		return fresh.Elem().Interface(), nil
	})
	if err != nil {
		return err
	}
	rows := reflect.ValueOf(shared)
	copied := reflect.MakeSlice(sliceType, rows.Len(), rows.Len())
	reflect.Copy(copied, rows)
	target.Elem().Set(copied)
	return nil
}

func (s *collapsing) Count(ctx context.Context, q Query) (int, error) {
	shared, err := s.do(ctx, "count|"+q.Key(), func(ctx context.Context) (interface{}, error) {
		return s.Store.Count(ctx, q)
	})
	if err != nil {
		return 0, err
	}
	return shared.(int), nil
}
