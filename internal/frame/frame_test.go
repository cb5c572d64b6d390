package frame

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sliceReader replays frames, then returns err.
type sliceReader struct {
	frames []Frame
	err    error
	reads  int
}

func (r *sliceReader) ReadFrame(ctx context.Context) (Frame, error) {
	if r.reads >= len(r.frames) {
		if r.err != nil {
			return Frame{}, r.err
		}
		return Frame{}, errors.New("no more frames")
	}
	f := r.frames[r.reads]
	r.reads++
	return f, nil
}

func TestEncode_Hello(t *testing.T) {
	frames := Encode("hello", 4)

	require.Len(t, frames, 2)
	assert.Equal(t, "hell", string(frames[0].Payload))
	assert.False(t, frames[0].Final)
	assert.Equal(t, "o", string(frames[1].Payload))
	assert.True(t, frames[1].Final)
	for _, f := range frames {
		assert.Equal(t, KindData, f.Kind)
	}
}

func TestEncode_FrameCounts(t *testing.T) {
	const chunk = 8

	tests := []struct {
		name   string
		length int
		want   int
	}{
		{"empty", 0, 1},
		{"shorter than chunk", chunk - 1, 1},
		{"exact chunk", chunk, 1},
		{"one over", chunk + 1, 2},
		{"exact multiple", chunk * 5, 5},
		{"large", chunk*100 + 3, 101},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames := Encode(strings.Repeat("x", tt.length), chunk)
			require.Len(t, frames, tt.want)

			for i, f := range frames {
				assert.LessOrEqual(t, len(f.Payload), chunk)
				assert.Equal(t, i == len(frames)-1, f.Final, "frame %d", i)
			}
			if tt.length > 0 {
				assert.NotEmpty(t, frames[len(frames)-1].Payload, "no trailing empty frame")
			}
		})
	}
}

func TestEncode_DefaultChunkSize(t *testing.T) {
	frames := Encode(strings.Repeat("a", DefaultChunkSize*2+1), 0)
	require.Len(t, frames, 3)
	assert.Len(t, frames[0].Payload, DefaultChunkSize)
	assert.Len(t, frames[2].Payload, 1)
}

func TestRoundTrip(t *testing.T) {
	payloads := []string{
		"",
		"a",
		strings.Repeat("b", 15),
		strings.Repeat("c", 16),
		strings.Repeat("d", 17),
		strings.Repeat("e", 16*64),
		"grüße aus köln ☀︎ — ünïcödé",
	}

	for _, chunk := range []int{1, 2, 3, 16, 1024} {
		for _, p := range payloads {
			r := &sliceReader{frames: Encode(p, chunk)}
			got, err := Decode(context.Background(), r)
			require.NoError(t, err)
			assert.Equal(t, p, got, "chunk=%d", chunk)
			assert.Equal(t, len(r.frames), r.reads)
		}
	}
}

func TestDecode_ManyContinuationFrames(t *testing.T) {
	var frames []Frame
	var want strings.Builder
	for i := 0; i < 500; i++ {
		frames = append(frames, Frame{Payload: []byte{byte('a' + i%26)}, Kind: KindData})
		want.WriteByte(byte('a' + i%26))
	}
	frames = append(frames, Frame{Payload: []byte("!"), Final: true, Kind: KindData})
	want.WriteString("!")

	got, err := Decode(context.Background(), &sliceReader{frames: frames})
	require.NoError(t, err)
	assert.Equal(t, want.String(), got)
}

func TestDecode_CloseMidMessage(t *testing.T) {
	r := &sliceReader{frames: []Frame{
		{Payload: []byte("par"), Kind: KindData},
		{Payload: []byte("tial"), Kind: KindData},
		{Kind: KindClose, Final: true},
	}}

	got, err := Decode(context.Background(), r)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, got)
}

func TestDecode_ReaderError(t *testing.T) {
	boom := errors.New("connection reset")
	r := &sliceReader{
		frames: []Frame{{Payload: []byte("abc"), Kind: KindData}},
		err:    boom,
	}

	got, err := Decode(context.Background(), r)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, got)
}

func TestDecode_SplitRune(t *testing.T) {
	// "é" is two bytes; each lands in its own frame.
	frames := Encode("é", 1)
	require.Len(t, frames, 2)

	got, err := Decode(context.Background(), &sliceReader{frames: frames})
	require.NoError(t, err)
	assert.Equal(t, "é", got)
}

func TestDecode_InvalidUTF8(t *testing.T) {
	frames := []Frame{
		{Payload: []byte{'o', 'k', 0xc3}, Kind: KindData},
		{Payload: []byte{0xff}, Final: true, Kind: KindData},
	}

	got, err := Decode(context.Background(), &sliceReader{frames: frames})
	assert.ErrorIs(t, err, ErrInvalidUTF8)
	assert.Empty(t, got)
}

func TestEncode_HugeChunkSize(t *testing.T) {
	for _, size := range []int{math.MaxInt, math.MaxInt - 1, MaxChunkSize + 1} {
		frames := Encode("abc", size)
		require.Len(t, frames, 1)
		assert.Equal(t, "abc", string(frames[0].Payload))
		assert.True(t, frames[0].Final)
	}

	big := strings.Repeat("x", MaxChunkSize+10)
	frames := Encode(big, math.MaxInt)
	require.Len(t, frames, 2)
	assert.Len(t, frames[0].Payload, MaxChunkSize)
	assert.Len(t, frames[1].Payload, 10)
	assert.True(t, frames[1].Final)
}

func TestClampChunkSize(t *testing.T) {
	assert.Equal(t, DefaultChunkSize, ClampChunkSize(0))
	assert.Equal(t, DefaultChunkSize, ClampChunkSize(-5))
	assert.Equal(t, 7, ClampChunkSize(7))
	assert.Equal(t, MaxChunkSize, ClampChunkSize(math.MaxInt))
}

func TestDecode_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Decode(ctx, &sliceReader{frames: Encode("x", 1)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "data", KindData.String())
	assert.Equal(t, "close", KindClose.String())
	assert.Equal(t, "unknown", Kind(9).String())
}
