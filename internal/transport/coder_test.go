package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/wiotimer/internal/frame"
)

func coderServer(t *testing.T, handler func(context.Context, *websocket.Conn)) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("accept error: %v", err)
			return
		}
		defer conn.CloseNow()
		handler(r.Context(), conn)
	}))
}

func TestCoder_EchoRoundTrip(t *testing.T) {
	server := coderServer(t, func(ctx context.Context, conn *websocket.Conn) {
		for {
			typ, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			if err := conn.Write(ctx, typ, data); err != nil {
				return
			}
		}
	})
	defer server.Close()

	tr, err := NewCoderDialer(testConfig(4)).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	for _, f := range frame.Encode("hello world", 4) {
		require.NoError(t, tr.WriteFrame(ctx, f))
	}

	frames := readAll(t, tr)
	require.Len(t, frames, 3)
	assert.Equal(t, "hell", string(frames[0].Payload))
	assert.Equal(t, "o wo", string(frames[1].Payload))
	assert.Equal(t, "rld", string(frames[2].Payload))
	assert.True(t, frames[2].Final)
}

func TestCoder_LargeMessage(t *testing.T) {
	payload := strings.Repeat("abcdefgh", 1000)
	server := coderServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Write(ctx, websocket.MessageText, []byte(payload))
		conn.Read(ctx)
	})
	defer server.Close()

	tr, err := NewCoderDialer(testConfig(1024)).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	got, err := frame.Decode(ctx, tr)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestCoder_PeerClose(t *testing.T) {
	server := coderServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Close(websocket.StatusGoingAway, "bye")
	})
	defer server.Close()

	tr, err := NewCoderDialer(testConfig(1024)).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	f, err := tr.ReadFrame(ctx)
	require.NoError(t, err)
	assert.Equal(t, frame.KindClose, f.Kind)
	assert.True(t, f.Final)
}

func TestCoder_LocalClose(t *testing.T) {
	serverErr := make(chan error, 1)
	server := coderServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_, _, err := conn.Read(ctx)
		serverErr <- err
	})
	defer server.Close()

	tr, err := NewCoderDialer(testConfig(1024)).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)
	defer tr.Dispose()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, tr.Close(ctx, "done"))
	assert.NoError(t, tr.Close(ctx, "again"), "second Close should not write")

	select {
	case err := <-serverErr:
		assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
	case <-time.After(2 * time.Second):
		t.Fatal("server never saw the close")
	}
}

func TestCoder_Dispose(t *testing.T) {
	server := coderServer(t, func(ctx context.Context, conn *websocket.Conn) {
		conn.Read(ctx)
	})
	defer server.Close()

	tr, err := NewCoderDialer(testConfig(1024)).Dial(context.Background(), wsURL(server))
	require.NoError(t, err)

	require.NoError(t, tr.Dispose())
	assert.NoError(t, tr.Dispose())

	_, err = tr.ReadFrame(context.Background())
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestCoder_DialErrors(t *testing.T) {
	d := NewCoderDialer(Config{HandshakeTimeout: time.Second})

	_, err := d.Dial(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyAddress)

	_, err = d.Dial(context.Background(), "ws://127.0.0.1:1/nowhere")
	assert.Error(t, err)
}
