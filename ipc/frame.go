// Package ipc implements the framing used between the orchestrator and
// its worker processes: a 4-byte big-endian length prefix followed by a
// msgpack payload, written over the worker's stdin/stdout pipes.
package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gristmill-io/gristmill/types"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size (16 MiB), including length prefix.
	MaxFrameSize = 16 * 1024 * 1024
	// MaxPayloadSize is the maximum payload size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame transport errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
	// FrameErrorEncode indicates a msgpack encoding or write error.
	FrameErrorEncode
)

// FrameError represents a frame transport error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if this error is fatal for the stream.
// Partial and oversized frames leave the stream unsynchronized; there
// is no resync.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw payload bytes (msgpack-encoded).
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		// Partial read of length prefix
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])

	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// FrameEncoder writes length-prefixed msgpack frames to a stream.
// Not safe for concurrent use; each pipe endpoint has one owner.
type FrameEncoder struct {
	writer io.Writer
}

// NewFrameEncoder creates a new frame encoder.
func NewFrameEncoder(w io.Writer) *FrameEncoder {
	return &FrameEncoder{writer: w}
}

// WriteFrame encodes v as msgpack and writes it as a single frame.
func (e *FrameEncoder) WriteFrame(v any) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return &FrameError{
			Kind: FrameErrorEncode,
			Msg:  "failed to encode payload",
			Err:  err,
		}
	}
	if len(payload) > MaxPayloadSize {
		return &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := e.writer.Write(lengthBuf[:]); err != nil {
		return &FrameError{
			Kind: FrameErrorEncode,
			Msg:  "failed to write length prefix",
			Err:  err,
		}
	}
	if _, err := e.writer.Write(payload); err != nil {
		return &FrameError{
			Kind: FrameErrorEncode,
			Msg:  "failed to write payload",
			Err:  err,
		}
	}
	return nil
}

// unmarshalLoose decodes with loose interface decoding so that every
// integer carried in an `any` field comes back at full width instead of
// whatever compact type the sender's format code suggests.
func unmarshalLoose(payload []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(payload))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

// normalizeInts folds unsigned wire integers into int64 wherever they
// fit, recursing through the maps and slices loose decoding produces.
// msgpack chooses unsigned format codes for non-negative values, so
// without this fold the Go type of a decoded item would depend on its
// magnitude (550 as uint64 but 5 as int64). Values above MaxInt64 keep
// uint64, the only representation that holds them.
func normalizeInts(v any) any {
	switch t := v.(type) {
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeInts(e)
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = normalizeInts(e)
		}
		return t
	case map[any]any:
		fixed := make(map[any]any, len(t))
		for k, e := range t {
			fixed[normalizeInts(k)] = normalizeInts(e)
		}
		return fixed
	default:
		return v
	}
}

// frameTypeProbe is used to peek at the type field without full decode.
type frameTypeProbe struct {
	Type string `msgpack:"type"`
}

// DecodeFrame decodes a payload and returns either a *types.TaskFrame
// or a *types.ResultFrame, discriminated by the type field.
func DecodeFrame(payload []byte) (any, error) {
	var probe frameTypeProbe
	if err := msgpack.Unmarshal(payload, &probe); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode frame type",
			Err:  err,
		}
	}

	switch probe.Type {
	case types.TaskFrameType:
		return DecodeTask(payload)
	case types.ResultFrameType:
		return DecodeResult(payload)
	default:
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  fmt.Sprintf("unknown frame type %q", probe.Type),
		}
	}
}

// DecodeTask decodes a payload as a TaskFrame.
func DecodeTask(payload []byte) (*types.TaskFrame, error) {
	var task types.TaskFrame
	if err := unmarshalLoose(payload, &task); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode task frame",
			Err:  err,
		}
	}
	normalizeInts(task.Items)
	return &task, nil
}

// DecodeResult decodes a payload as a ResultFrame.
func DecodeResult(payload []byte) (*types.ResultFrame, error) {
	var result types.ResultFrame
	if err := unmarshalLoose(payload, &result); err != nil {
		return nil, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode result frame",
			Err:  err,
		}
	}
	normalizeInts(result.Results)
	for i := range result.Reports {
		result.Reports[i].Item = normalizeInts(result.Reports[i].Item)
	}
	return &result, nil
}
