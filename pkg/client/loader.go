package client

import (
	"context"
	"errors"
	"sync"
)

// Status is the display state of a list.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusLoaded
	StatusEmpty
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusLoaded:
		return "loaded"
	case StatusEmpty:
		return "empty"
	default:
		return "idle"
	}
}

// State is what a screen renders. Rows is shared between snapshots and must
// not be modified. Err is the last fetch failure; prior rows are kept.
type State[T any] struct {
	Status Status
	Rows   []T
	Err    error
	Seq    uint64
}

// FetchFunc loads the full current list.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// LoaderOption customises a Loader.
type LoaderOption[T any] func(*Loader[T])

// WithSessionExpired registers fn to run when a fetch fails with ErrSessionExpired.
func WithSessionExpired[T any](fn func()) LoaderOption[T] {
	return func(l *Loader[T]) { l.onExpired = fn }
}

// Loader drives one list screen. Every Refresh takes a new sequence number
// and only the newest fetch may update the state, so a slow response to an
// older request can never overwrite a newer one. Close cancels everything.
type Loader[T any] struct {
	fetch     FetchFunc[T]
	onExpired func()

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	seq      uint64
	inflight context.CancelFunc
	state    State[T]
	closed   bool
	subs     map[int]func(State[T])
	nextSub  int

	notifyMu sync.Mutex
}

func NewLoader[T any](fetch FetchFunc[T], opts ...LoaderOption[T]) *Loader[T] {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Loader[T]{fetch: fetch, ctx: ctx, cancel: cancel, subs: map[int]func(State[T]){}}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State returns the current snapshot.
func (l *Loader[T]) State() State[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Subscribe calls fn with the latest state after every change.
func (l *Loader[T]) Subscribe(fn func(State[T])) func() {
	l.mu.Lock()
	id := l.nextSub
	l.nextSub++
	l.subs[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Refresh fetches the list and returns the state afterwards. A newer Refresh
// started meanwhile cancels this fetch and its result is dropped.
func (l *Loader[T]) Refresh(ctx context.Context) State[T] {
	l.mu.Lock()
	if l.closed {
		st := l.state
		l.mu.Unlock()
		return st
	}
	l.seq++
	seq := l.seq
	if l.inflight != nil {
		l.inflight()
	}
	fetchCtx, cancel := context.WithCancel(l.ctx)
	stop := context.AfterFunc(ctx, cancel)
	l.inflight = cancel
	l.state.Status = StatusLoading
	l.state.Seq = seq
	l.mu.Unlock()
	l.publish()

	rows, err := l.fetch(fetchCtx)
	stop()
	cancel()

	l.mu.Lock()
	if l.closed || seq != l.seq {
		st := l.state
		l.mu.Unlock()
		return st
	}
	l.inflight = nil
	if err != nil {
		l.state.Err = err
		l.state.Status = settled(l.state.Rows)
	} else {
		l.state = State[T]{Status: settled(rows), Rows: rows, Seq: seq}
	}
	st := l.state
	l.mu.Unlock()

	if err != nil && errors.Is(err, ErrSessionExpired) && l.onExpired != nil {
		l.onExpired()
	}
	l.publish()
	return st
}

// Close cancels any fetch in flight; no later result changes the state.
func (l *Loader[T]) Close() {
	l.mu.Lock()
	l.closed = true
	l.subs = map[int]func(State[T]){}
	l.mu.Unlock()
	l.cancel()
}

func (l *Loader[T]) publish() {
	l.notifyMu.Lock()
	defer l.notifyMu.Unlock()

	l.mu.Lock()
	st := l.state
	subs := make([]func(State[T]), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()

	for _, fn := range subs {
		fn(st)
	}
}

func settled[T any](rows []T) Status {
	if len(rows) == 0 {
		return StatusEmpty
	}
	return StatusLoaded
}
