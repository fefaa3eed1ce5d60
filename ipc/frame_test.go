package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/gristmill-io/gristmill/types"
)

// encodeRaw encodes a payload with length prefix by hand, bypassing
// FrameEncoder, so decoder tests do not depend on the encoder.
func encodeRaw(payload []byte) []byte {
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf
}

func TestFrameDecoder_SingleTask(t *testing.T) {
	task := &types.TaskFrame{
		Type:  types.TaskFrameType,
		Seq:   3,
		Fn:    "normalize",
		Items: []any{"12 rue du Bac", "1 place d'Armes"},
	}

	payload, err := msgpack.Marshal(task)
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}

	decoder := NewFrameDecoder(bytes.NewReader(encodeRaw(payload)))
	raw, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}

	decoded, err := DecodeTask(raw)
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}
	if decoded.Seq != task.Seq {
		t.Errorf("Seq = %d, want %d", decoded.Seq, task.Seq)
	}
	if decoded.Fn != task.Fn {
		t.Errorf("Fn = %q, want %q", decoded.Fn, task.Fn)
	}
	if len(decoded.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(decoded.Items))
	}
}

func TestFrameEncoder_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	encoder := NewFrameEncoder(&buf)

	frames := []any{
		&types.TaskFrame{Type: types.TaskFrameType, Seq: 0, Fn: "f", Items: []any{int64(1)}},
		&types.ResultFrame{
			Type:    types.ResultFrameType,
			Seq:     0,
			Results: []any{int64(2)},
			Reports: []types.ReportEntry{{Message: "doubled", Level: types.LevelNotice}},
		},
		&types.ResultFrame{
			Type:    types.ResultFrameType,
			Seq:     1,
			Failure: &types.WorkerFailure{Fn: "f", Message: "boom"},
		},
	}
	for _, f := range frames {
		if err := encoder.WriteFrame(f); err != nil {
			t.Fatalf("WriteFrame failed: %v", err)
		}
	}

	decoder := NewFrameDecoder(&buf)

	raw, err := decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	first, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	if _, ok := first.(*types.TaskFrame); !ok {
		t.Fatalf("first frame = %T, want *types.TaskFrame", first)
	}

	raw, err = decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	second, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame failed: %v", err)
	}
	result, ok := second.(*types.ResultFrame)
	if !ok {
		t.Fatalf("second frame = %T, want *types.ResultFrame", second)
	}
	if len(result.Reports) != 1 || result.Reports[0].Message != "doubled" {
		t.Errorf("Reports = %+v, want one entry %q", result.Reports, "doubled")
	}

	raw, err = decoder.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame failed: %v", err)
	}
	failed, err := DecodeResult(raw)
	if err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}
	if failed.Failure == nil || failed.Failure.Message != "boom" {
		t.Errorf("Failure = %+v, want message %q", failed.Failure, "boom")
	}

	if _, err := decoder.ReadFrame(); err != io.EOF {
		t.Errorf("ReadFrame after last frame = %v, want io.EOF", err)
	}
}

// Decoded integer types must not depend on how compactly msgpack
// encoded the value. Positive ints travel in unsigned format codes, so
// without folding, 5 would come back int64 but 550 uint64.
func TestDecode_IntegerWidthIsUniform(t *testing.T) {
	items := []any{int64(0), int64(5), int64(127), int64(128), int64(550), int64(-7), int64(math.MaxInt64)}

	payload, err := msgpack.Marshal(&types.TaskFrame{
		Type:  types.TaskFrameType,
		Fn:    "f",
		Items: items,
	})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	task, err := DecodeTask(payload)
	if err != nil {
		t.Fatalf("DecodeTask failed: %v", err)
	}
	for i, item := range task.Items {
		got, ok := item.(int64)
		if !ok {
			t.Fatalf("Items[%d] = %T, want int64", i, item)
		}
		if got != items[i].(int64) {
			t.Errorf("Items[%d] = %d, want %d", i, got, items[i])
		}
	}

	payload, err = msgpack.Marshal(&types.ResultFrame{
		Type: types.ResultFrameType,
		Results: []any{
			int64(550),
			[]any{int64(200), map[string]any{"count": int64(300)}},
		},
		Reports: []types.ReportEntry{{Message: "m", Item: int64(957), Level: types.LevelNotice}},
	})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	result, err := DecodeResult(payload)
	if err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}
	if v, ok := result.Results[0].(int64); !ok || v != 550 {
		t.Errorf("Results[0] = %v (%T), want int64 550", result.Results[0], result.Results[0])
	}
	nested := result.Results[1].([]any)
	if v, ok := nested[0].(int64); !ok || v != 200 {
		t.Errorf("nested[0] = %v (%T), want int64 200", nested[0], nested[0])
	}
	if v, ok := nested[1].(map[string]any)["count"].(int64); !ok || v != 300 {
		t.Errorf("nested count = %v, want int64 300", nested[1])
	}
	if v, ok := result.Reports[0].Item.(int64); !ok || v != 957 {
		t.Errorf("report item = %v (%T), want int64 957", result.Reports[0].Item, result.Reports[0].Item)
	}
}

// Values above MaxInt64 have no signed representation and stay uint64.
func TestDecode_OverflowingIntStaysUnsigned(t *testing.T) {
	payload, err := msgpack.Marshal(&types.ResultFrame{
		Type:    types.ResultFrameType,
		Results: []any{uint64(math.MaxUint64)},
	})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	result, err := DecodeResult(payload)
	if err != nil {
		t.Fatalf("DecodeResult failed: %v", err)
	}
	if v, ok := result.Results[0].(uint64); !ok || v != math.MaxUint64 {
		t.Errorf("Results[0] = %v (%T), want uint64 MaxUint64", result.Results[0], result.Results[0])
	}
}

func TestFrameDecoder_PartialFrame(t *testing.T) {
	payload, err := msgpack.Marshal(&types.TaskFrame{Type: types.TaskFrameType, Fn: "f"})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}
	full := encodeRaw(payload)

	// Truncate mid-payload
	decoder := NewFrameDecoder(bytes.NewReader(full[:len(full)-2]))
	_, err = decoder.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("ReadFrame error = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorPartial {
		t.Errorf("Kind = %d, want FrameErrorPartial", frameErr.Kind)
	}
	if !IsFatalFrameError(err) {
		t.Error("partial frame should be fatal")
	}
}

func TestFrameDecoder_TooLarge(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], MaxPayloadSize+1)

	decoder := NewFrameDecoder(bytes.NewReader(prefix[:]))
	_, err := decoder.ReadFrame()

	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("ReadFrame error = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorTooLarge {
		t.Errorf("Kind = %d, want FrameErrorTooLarge", frameErr.Kind)
	}
	if !IsFatalFrameError(err) {
		t.Error("oversized frame should be fatal")
	}
}

func TestDecodeFrame_UnknownType(t *testing.T) {
	payload, err := msgpack.Marshal(map[string]any{"type": "telemetry"})
	if err != nil {
		t.Fatalf("msgpack.Marshal failed: %v", err)
	}

	_, err = DecodeFrame(payload)
	var frameErr *FrameError
	if !errors.As(err, &frameErr) {
		t.Fatalf("DecodeFrame error = %v, want *FrameError", err)
	}
	if frameErr.Kind != FrameErrorDecode {
		t.Errorf("Kind = %d, want FrameErrorDecode", frameErr.Kind)
	}
	if IsFatalFrameError(err) {
		t.Error("decode errors are not fatal framing errors")
	}
}
