package frame

import (
	"bytes"
	"context"
	"errors"
	"unicode/utf8"
)

// DefaultChunkSize is the frame payload size used when none is configured.
const DefaultChunkSize = 1024

// MaxChunkSize is the largest accepted frame size. Larger values are clamped.
const MaxChunkSize = 1 << 20

// Errors
var (
	ErrClosed      = errors.New("frame: close received")
	ErrInvalidUTF8 = errors.New("frame: message is not valid UTF-8")
)

// ClampChunkSize maps n into [1, MaxChunkSize], using DefaultChunkSize for
// n <= 0.
func ClampChunkSize(n int) int {
	if n <= 0 {
		return DefaultChunkSize
	}
	return min(n, MaxChunkSize)
}

// Kind identifies the type of a frame.
type Kind uint8

const (
	KindData Kind = iota
	KindClose
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindClose:
		return "close"
	default:
		return "unknown"
	}
}

// Frame is one unit of transport data.
type Frame struct {
	Payload []byte
	Final   bool // End of message
	Kind    Kind
}

// Reader yields frames from a transport.
type Reader interface {
	ReadFrame(ctx context.Context) (Frame, error)
}

// Encode splits the UTF-8 bytes of payload into frames of at most chunkSize
// bytes. The last frame is Final. An empty payload yields one empty Final frame.
func Encode(payload string, chunkSize int) []Frame {
	chunkSize = ClampChunkSize(chunkSize)

	data := []byte(payload)
	if len(data) == 0 {
		return []Frame{{Payload: data, Final: true, Kind: KindData}}
	}

	count := len(data) / chunkSize
	if len(data)%chunkSize != 0 {
		count++
	}
	frames := make([]Frame, 0, count)
	for offset := 0; offset < len(data); {
		end := offset + min(chunkSize, len(data)-offset)
		frames = append(frames, Frame{
			Payload: data[offset:end],
			Final:   end == len(data),
			Kind:    KindData,
		})
		offset = end
	}

	return frames
}

// Decode reads frames from r until a Final data frame completes a message and
// returns the message text. A close frame discards any accumulated bytes and
// returns ErrClosed. A message that is not valid UTF-8 returns ErrInvalidUTF8.
// Errors from r are returned unchanged.
func Decode(ctx context.Context, r Reader) (string, error) {
	var buf bytes.Buffer

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		f, err := r.ReadFrame(ctx)
		if err != nil {
			return "", err
		}

		if f.Kind == KindClose {
			return "", ErrClosed
		}

		buf.Write(f.Payload)
		if f.Final {
			if !utf8.Valid(buf.Bytes()) {
				return "", ErrInvalidUTF8
			}
			return buf.String(), nil
		}
	}
}
