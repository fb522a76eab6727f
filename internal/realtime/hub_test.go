package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	mu   sync.Mutex
	msgs []string
	fail bool
}

func (c *recordingClient) Send(message []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return false
	}
	c.msgs = append(c.msgs, string(message))
	return true
}

func (c *recordingClient) Close() {}

func TestHub_PublishToRegisteredClients(t *testing.T) {
	h := NewHub()
	a, b := &recordingClient{}, &recordingClient{fail: true}
	h.Register(a)
	h.Register(b)
	require.Equal(t, 2, h.Len())

	h.Publish(Event{Op: OpCreate, Key: 5})
	require.Equal(t, []string{`{"op":"create","key":5}`}, a.msgs)

	h.Unregister(a)
	h.Publish(Event{Op: OpDelete, Key: 5})
	require.Len(t, a.msgs, 1)
	require.Equal(t, 1, h.Len())
}
