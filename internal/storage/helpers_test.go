package storage_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"stash/internal/objectstore"
)

var errUnavailable = errors.New("503 service unavailable")

// fakeStore is an objectstore.Store whose first failPuts PutObject calls fail
// (every call when failPuts is negative). An optional gate blocks puts until
// it is closed.
type fakeStore struct {
	mu       sync.Mutex
	failPuts int
	getErr   error
	gate     chan struct{}
	puts     int
	gets     int
	objects  map[string][]byte
}

func newFakeStore(failPuts int) *fakeStore {
	return &fakeStore{failPuts: failPuts, objects: make(map[string][]byte)}
}

func (f *fakeStore) PutObject(ctx context.Context, key string, data []byte) error {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if f.failPuts < 0 || f.puts <= f.failPuts {
		return errUnavailable
	}
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeStore) GetObject(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, objectstore.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

func (f *fakeStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

func (f *fakeStore) getCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets
}

func (f *fakeStore) object(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

// recordingTimer fires immediately and remembers every requested delay.
type recordingTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newRecordingTimer() *recordingTimer {
	return &recordingTimer{c: make(chan time.Time, 1)}
}

func (r *recordingTimer) Start(d time.Duration) {
	r.mu.Lock()
	r.delays = append(r.delays, d)
	r.mu.Unlock()
	r.c <- time.Now()
}

func (r *recordingTimer) Stop() {}

func (r *recordingTimer) C() <-chan time.Time {
	return r.c
}

func (r *recordingTimer) recorded() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

// stuckTimer never fires, so an upload waits in backoff until cancelled.
type stuckTimer struct {
	c chan time.Time
}

func (s *stuckTimer) Start(time.Duration) {}

func (s *stuckTimer) Stop() {}

func (s *stuckTimer) C() <-chan time.Time {
	return s.c
}

// panicStore panics on every put.
type panicStore struct{}

func (panicStore) PutObject(context.Context, string, []byte) error {
	panic("store exploded")
}

func (panicStore) GetObject(context.Context, string) ([]byte, error) {
	return nil, objectstore.ErrNotFound
}
