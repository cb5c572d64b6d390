package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/wiotimer/internal/frame"
)

func TestMemoryDialer_Dial(t *testing.T) {
	d := NewMemoryDialer()

	var hooked *MemoryConn
	d.OnDial(func(c *MemoryConn) { hooked = c })

	tr, err := d.Dial(context.Background(), "ws://sensor")
	require.NoError(t, err)
	assert.Equal(t, 1, d.Dials())
	assert.Same(t, d.Last(), tr)
	assert.Same(t, hooked, tr)
	assert.Equal(t, "ws://sensor", d.Last().URI())

	_, err = d.Dial(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyAddress)

	boom := errors.New("refused")
	d.FailNext(boom)
	_, err = d.Dial(context.Background(), "ws://sensor")
	assert.ErrorIs(t, err, boom)

	_, err = d.Dial(context.Background(), "ws://sensor")
	assert.NoError(t, err, "FailNext applies once")
	assert.Equal(t, 2, d.Dials())
}

func TestMemoryConn_ReadWrite(t *testing.T) {
	c := NewMemoryConn("ws://x")
	ctx := context.Background()

	c.PushMessage("hello", 2)
	got, err := frame.Decode(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	for _, f := range frame.Encode("one", 2) {
		require.NoError(t, c.WriteFrame(ctx, f))
	}
	for _, f := range frame.Encode("two", 8) {
		require.NoError(t, c.WriteFrame(ctx, f))
	}
	assert.Len(t, c.Written(), 3)
	assert.Equal(t, []string{"one", "two"}, c.Messages())
}

func TestMemoryConn_CloseConfirmed(t *testing.T) {
	c := NewMemoryConn("ws://x")
	ctx := context.Background()

	require.NoError(t, c.Close(ctx, "bye"))
	require.NoError(t, c.Close(ctx, "again"))
	assert.Equal(t, []string{"bye"}, c.CloseReasons())

	f, err := c.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame.KindClose, f.Kind)
}

func TestMemoryConn_IgnoreClose(t *testing.T) {
	c := NewMemoryConn("ws://x")
	c.IgnoreClose()
	require.NoError(t, c.Close(context.Background(), ""))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.ReadFrame(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryConn_PeerCloseNotConfirmedTwice(t *testing.T) {
	c := NewMemoryConn("ws://x")
	ctx := context.Background()

	c.PeerClose()
	f, err := c.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame.KindClose, f.Kind)

	require.NoError(t, c.Close(ctx, ""))

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = c.ReadFrame(short)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryConn_Failures(t *testing.T) {
	c := NewMemoryConn("ws://x")
	ctx := context.Background()
	boom := errors.New("boom")

	c.Fail(boom)
	_, err := c.ReadFrame(ctx)
	assert.ErrorIs(t, err, boom)

	c.FailWrites(1, boom)
	assert.NoError(t, c.WriteFrame(ctx, frame.Frame{Payload: []byte("a")}))
	assert.ErrorIs(t, c.WriteFrame(ctx, frame.Frame{Payload: []byte("b")}), boom)
	assert.ErrorIs(t, c.WriteFrame(ctx, frame.Frame{Payload: []byte("c")}), boom)
	assert.Len(t, c.Written(), 1)
}

func TestMemoryConn_Dispose(t *testing.T) {
	c := NewMemoryConn("ws://x")
	assert.False(t, c.Disposed())

	require.NoError(t, c.Dispose())
	require.NoError(t, c.Dispose())
	assert.True(t, c.Disposed())

	select {
	case <-c.Done():
	default:
		t.Fatal("Done should be closed")
	}

	_, err := c.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
	assert.ErrorIs(t, c.WriteFrame(context.Background(), frame.Frame{}), ErrDisposed)

	// Pushing to a disposed connection must not block.
	c.PushMessage("late", 1)
}
