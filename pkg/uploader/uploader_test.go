package uploader

import (
	"bytes"
	"testing"
)

type recordingSink struct {
	writes      [][]byte
	flushCalled int
}

func (r *recordingSink) SendAudio(payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	r.writes = append(r.writes, cp)
}

func (r *recordingSink) FlushAudio() { r.flushCalled++ }

func TestFlushSemanticsS5(t *testing.T) {
	sink := &recordingSink{}
	u := New(sink, 4096)

	data := make([]byte, 5000)
	for i := range data {
		data[i] = byte(i)
	}
	u.Write(data)
	u.Write(nil) // process_audio(0) == flush

	if len(sink.writes) != 2 {
		t.Fatalf("expected exactly two transport audio writes, got %d", len(sink.writes))
	}
	if len(sink.writes[0]) != 4096 {
		t.Fatalf("expected first write of 4096 bytes, got %d", len(sink.writes[0]))
	}
	if len(sink.writes[1]) != 904 {
		t.Fatalf("expected second write of 904 bytes, got %d", len(sink.writes[1]))
	}
	if sink.flushCalled != 1 {
		t.Fatalf("expected flush_audio to be called once, got %d", sink.flushCalled)
	}

	var got []byte
	for _, w := range sink.writes {
		got = append(got, w...)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("concatenation of emitted frames does not equal input bytes")
	}
}

func TestZeroFrameSizeDisablesBuffering(t *testing.T) {
	sink := &recordingSink{}
	u := New(sink, 0)
	u.Write([]byte("abc"))
	u.Write([]byte("def"))
	if len(sink.writes) != 2 {
		t.Fatalf("expected writes to pass straight through, got %d", len(sink.writes))
	}
	u.Flush()
	if sink.flushCalled != 1 {
		t.Fatalf("expected flush to be a pass-through no-op plus sink flush")
	}
}

func TestSetFrameSizeResetsBuffer(t *testing.T) {
	sink := &recordingSink{}
	u := New(sink, 10)
	u.Write([]byte("12345"))
	u.SetFrameSize(0)
	if len(sink.writes) != 0 {
		t.Fatalf("expected no frame emitted on reset of a partial buffer, got %d", len(sink.writes))
	}
	u.Write([]byte("x"))
	if len(sink.writes) != 1 || string(sink.writes[0]) != "x" {
		t.Fatalf("expected pass-through write after disabling buffering")
	}
}

func TestExactMultipleEmitsOnlyFullFrames(t *testing.T) {
	sink := &recordingSink{}
	u := New(sink, 4)
	u.Write([]byte("abcdefgh"))
	if len(sink.writes) != 2 {
		t.Fatalf("expected two full frames, got %d", len(sink.writes))
	}
	for _, w := range sink.writes {
		if len(w) != 4 {
			t.Fatalf("expected every emitted frame to equal frame_size, got %d", len(w))
		}
	}
}
