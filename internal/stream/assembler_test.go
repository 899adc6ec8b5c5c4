package stream_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"testing"

	"github.com/queryhub/chat-web-ui/internal/stream"
	"go.uber.org/goleak"
)

type chunkReader struct {
	chunks [][]byte
	err    error
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newChunkReader(err error, chunks ...string) *chunkReader {
	r := &chunkReader{err: err}
	for _, c := range chunks {
		r.chunks = append(r.chunks, []byte(c))
	}
	return r
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if len(r.chunks[0]) == 0 {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func collect(t *testing.T, a stream.Assembler, r io.Reader) ([]string, error) {
	t.Helper()

	var updates []string
	var lastErr error
	for content, err := range a.Assemble(context.Background(), r) {
		updates = append(updates, content)
		if err != nil {
			lastErr = err
		}
	}
	return updates, lastErr
}

func TestAssembleScenario(t *testing.T) {
	r := newChunkReader(nil, "data: <think>ignored</think>\n", "data: Hello", " world")

	updates, err := collect(t, stream.NewAssembler(0, true), r)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := []string{"", "Hello", "Hello world"}
	if !slices.Equal(updates, want) {
		t.Errorf("Assemble() updates = %q, want %q", updates, want)
	}
}

func TestAssembleLegacyScenario(t *testing.T) {
	r := newChunkReader(nil, "data: <think>ignored</think>\n", "data: Hello", " world")

	updates, err := collect(t, stream.NewAssembler(0, false), r)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if got := updates[len(updates)-1]; got != "Hello world" {
		t.Errorf("final content = %q, want %q", got, "Hello world")
	}
}

func TestAssembleSplitRune(t *testing.T) {
	// "é" is 0xC3 0xA9.
	r := newChunkReader(nil, "caf\xc3", "\xa9 ok")

	updates, err := collect(t, stream.NewAssembler(0, true), r)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := []string{"caf", "café ok"}
	if !slices.Equal(updates, want) {
		t.Errorf("Assemble() updates = %q, want %q", updates, want)
	}
}

func TestAssembleInvalidUTF8(t *testing.T) {
	r := newChunkReader(nil, "a\xffb")

	updates, err := collect(t, stream.NewAssembler(0, true), r)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if got := updates[len(updates)-1]; got != "a�b" {
		t.Errorf("final content = %q, want replacement character", got)
	}
}

func TestAssembleMidStreamError(t *testing.T) {
	errBroken := errors.New("connection reset")
	r := newChunkReader(errBroken, "data: partial", " answer <thi")

	updates, err := collect(t, stream.NewAssembler(0, true), r)
	if !errors.Is(err, errBroken) {
		t.Fatalf("Assemble() error = %v, want %v", err, errBroken)
	}

	want := []string{"partial", "partial answer ", "partial answer <thi"}
	if !slices.Equal(updates, want) {
		t.Errorf("Assemble() updates = %q, want %q", updates, want)
	}
}

func TestAssembleFlushesPendingMarker(t *testing.T) {
	r := newChunkReader(nil, "data: x <", "")

	updates, err := collect(t, stream.NewAssembler(0, true), r)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	want := []string{"x ", "x <"}
	if !slices.Equal(updates, want) {
		t.Errorf("Assemble() updates = %q, want %q", updates, want)
	}
}

func TestAssembleSmallChunkSize(t *testing.T) {
	r := newChunkReader(nil, "data: <think>plan</think>\ndata: Hi there, wörld")

	updates, err := collect(t, stream.NewAssembler(3, true), r)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if got := updates[len(updates)-1]; got != "Hi there, wörld" {
		t.Errorf("final content = %q", got)
	}
	if len(updates) < 10 {
		t.Errorf("expected an update per chunk, got %d updates", len(updates))
	}
}

func TestAssembleStopsWhenConsumerStops(t *testing.T) {
	r := newChunkReader(nil, "one ", "two ", "three")

	var got []string
	for content := range stream.NewAssembler(0, true).Assemble(context.Background(), r) {
		got = append(got, content)
		if len(got) == 2 {
			break
		}
	}

	if !slices.Equal(got, []string{"one ", "one two "}) {
		t.Errorf("updates = %q", got)
	}
}

func TestAssembleCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := newChunkReader(nil, "data: hello")
	for content, err := range stream.NewAssembler(0, true).Assemble(ctx, r) {
		t.Errorf("unexpected update %q, %v", content, err)
	}
}
