package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderLoadedAndEmpty(t *testing.T) {
	rows := []string{"a", "b"}
	l := NewLoader(func(context.Context) ([]string, error) { return rows, nil })
	defer l.Close()

	var statuses []Status
	l.Subscribe(func(s State[string]) { statuses = append(statuses, s.Status) })

	st := l.Refresh(context.Background())
	assert.Equal(t, StatusLoaded, st.Status)
	assert.Equal(t, []string{"a", "b"}, st.Rows)

	rows = nil
	st = l.Refresh(context.Background())
	assert.Equal(t, StatusEmpty, st.Status)
	assert.NoError(t, st.Err)

	assert.Equal(t, []Status{StatusLoading, StatusLoaded, StatusLoading, StatusEmpty}, statuses)
}

func TestLoaderSameQueryTwiceGivesSameRows(t *testing.T) {
	l := NewLoader(func(context.Context) ([]int, error) { return []int{3, 2, 1}, nil })
	defer l.Close()
	first := l.Refresh(context.Background())
	second := l.Refresh(context.Background())
	assert.Equal(t, first.Rows, second.Rows)
	assert.Greater(t, second.Seq, first.Seq)
}

func TestLoaderDiscardsStaleResponses(t *testing.T) {
	releaseA := make(chan struct{})
	startedA := make(chan struct{})
	var calls int
	var mu sync.Mutex

	l := NewLoader(func(ctx context.Context) ([]string, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			close(startedA)
			<-releaseA
			return []string{"A"}, nil
		}
		return []string{"B"}, nil
	})
	defer l.Close()

	done := make(chan State[string])
	go func() { done <- l.Refresh(context.Background()) }()
	<-startedA

	b := l.Refresh(context.Background())
	require.Equal(t, []string{"B"}, b.Rows)

	close(releaseA)
	<-done
	assert.Equal(t, []string{"B"}, l.State().Rows)
	assert.Equal(t, b.Seq, l.State().Seq)
}

func TestLoaderCancelsSupersededFetch(t *testing.T) {
	cancelled := make(chan struct{})
	started := make(chan struct{})
	first := true
	var mu sync.Mutex

	l := NewLoader(func(ctx context.Context) ([]int, error) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			close(started)
			<-ctx.Done()
			close(cancelled)
			return nil, ctx.Err()
		}
		return []int{1}, nil
	})
	defer l.Close()

	go l.Refresh(context.Background())
	<-started
	l.Refresh(context.Background())

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("superseded fetch was not cancelled")
	}
}

func TestLoaderErrorKeepsRows(t *testing.T) {
	fail := false
	l := NewLoader(func(context.Context) ([]string, error) {
		if fail {
			return nil, ErrTransport
		}
		return []string{"kept"}, nil
	})
	defer l.Close()

	l.Refresh(context.Background())
	fail = true
	st := l.Refresh(context.Background())
	assert.Equal(t, StatusLoaded, st.Status)
	assert.Equal(t, []string{"kept"}, st.Rows)
	assert.True(t, errors.Is(st.Err, ErrTransport))
}

func TestLoaderCloseStopsUpdates(t *testing.T) {
	started := make(chan struct{})
	l := NewLoader(func(ctx context.Context) ([]string, error) {
		close(started)
		<-ctx.Done()
		return []string{"late"}, nil
	})

	done := make(chan State[string])
	go func() { done <- l.Refresh(context.Background()) }()
	<-started
	l.Close()
	<-done

	assert.Empty(t, l.State().Rows)
	assert.Equal(t, StatusLoading, l.Refresh(context.Background()).Status)
}

func TestLoaderSessionExpiredHook(t *testing.T) {
	expired := 0
	l := NewLoader(func(context.Context) ([]string, error) {
		return nil, &APIError{Status: 401, Code: "SESSION_EXPIRED"}
	}, WithSessionExpired[string](func() { expired++ }))
	defer l.Close()

	st := l.Refresh(context.Background())
	assert.Equal(t, 1, expired)
	assert.Equal(t, StatusEmpty, st.Status)
	assert.True(t, errors.Is(st.Err, ErrSessionExpired))
}
