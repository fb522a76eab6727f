package testutil

import (
	"context"
	"errors"
	"sync"

	"kvstore-api/internal/apperrors"
	"kvstore-api/internal/connection"
)

// ErrBroken is returned by fake connections after BreakConnections.
var ErrBroken = errors.New("fake connection broken")

// Fake store operation names accepted by Calls.
const (
	CallDial   = "dial"
	CallPing   = "ping"
	CallUpsert = "upsert"
	CallGet    = "get"
	CallDelete = "delete"
)

// FakeStore is an in-memory backing store whose connections can be made to
// fail. It counts every call so tests can assert whether the store was touched.
type FakeStore struct {
	mu      sync.Mutex
	rows    map[int64]string
	calls   map[string]int
	dialErr error
	opErr   error
	conns   []*FakeConn
}

// NewFakeStore returns an empty fake store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		rows:  make(map[int64]string),
		calls: make(map[string]int),
	}
}

// Dialer returns a connection.Dialer opening connections to s.
func (s *FakeStore) Dialer() connection.Dialer {
	return func(ctx context.Context) (connection.Conn, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.calls[CallDial]++
		if s.dialErr != nil {
			return nil, s.dialErr
		}
		c := &FakeConn{store: s}
		s.conns = append(s.conns, c)
		return c, nil
	}
}

// FailDials makes every following dial return err. A nil err heals dialing.
func (s *FakeStore) FailDials(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dialErr = err
}

// FailOps makes every following upsert, get and delete return err.
func (s *FakeStore) FailOps(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opErr = err
}

// BreakConnections marks every connection opened so far as broken: pings and
// operations on them fail. Connections dialed afterwards are healthy.
func (s *FakeStore) BreakConnections() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		c.broken = true
	}
}

// Seed writes a row directly, bypassing call counting.
func (s *FakeStore) Seed(key int64, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key] = value
}

// Row reads a row directly, bypassing call counting.
func (s *FakeStore) Row(key int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.rows[key]
	return v, ok
}

// Calls returns how many times op was invoked.
func (s *FakeStore) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// OpenConns returns the number of connections dialed and not yet closed.
func (s *FakeStore) OpenConns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.conns {
		if !c.closed {
			n++
		}
	}
	return n
}

// FakeConn is a connection to a FakeStore.
type FakeConn struct {
	store  *FakeStore
	broken bool
	closed bool
}

func (c *FakeConn) begin(op string) error {
	c.store.calls[op]++
	if c.closed {
		return errors.New("fake connection closed")
	}
	if c.broken {
		return ErrBroken
	}
	if op != CallPing && c.store.opErr != nil {
		return c.store.opErr
	}
	return nil
}

// Ping implements connection.Conn.
func (c *FakeConn) Ping(ctx context.Context) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	return c.begin(CallPing)
}

// Upsert implements connection.Conn.
func (c *FakeConn) Upsert(ctx context.Context, key int64, value string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.begin(CallUpsert); err != nil {
		return err
	}
	c.store.rows[key] = value
	return nil
}

// Get implements connection.Conn.
func (c *FakeConn) Get(ctx context.Context, key int64) (string, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.begin(CallGet); err != nil {
		return "", err
	}
	v, ok := c.store.rows[key]
	if !ok {
		return "", apperrors.ErrNotFound
	}
	return v, nil
}

// Delete implements connection.Conn.
func (c *FakeConn) Delete(ctx context.Context, key int64) (int64, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if err := c.begin(CallDelete); err != nil {
		return 0, err
	}
	if _, ok := c.store.rows[key]; !ok {
		return 0, nil
	}
	delete(c.store.rows, key)
	return 1, nil
}

// Close implements connection.Conn.
func (c *FakeConn) Close() error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	c.closed = true
	return nil
}

var _ connection.Conn = (*FakeConn)(nil)
