package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultChunkSize is the read buffer size used when none is configured.
const DefaultChunkSize = 4096

// Assembler turns a streamed answer body into the running content of a message.
type Assembler struct {
	chunkSize           int
	carryPartialMarkers bool
}

type cleaner interface {
	Write(chunk string) string
	Flush() string
}

type chunkCleaner struct{}

func (chunkCleaner) Write(chunk string) string { return Clean(chunk) }
func (chunkCleaner) Flush() string             { return "" }

// NewAssembler creates an Assembler reading at most chunkSize bytes per chunk. When
// carryPartialMarkers is false every chunk is cleaned in isolation (see Clean), and a sentinel split
// across two chunks leaks into the content.
func NewAssembler(chunkSize int, carryPartialMarkers bool) Assembler {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return Assembler{
		chunkSize:           chunkSize,
		carryPartialMarkers: carryPartialMarkers,
	}
}

// Assemble reads body until it is exhausted and yields the whole content assembled so far after
// every chunk, so the caller can repaint the message as it grows. Chunks are decoded as UTF-8; a
// character split across chunk boundaries is held back until its remaining bytes arrive, and
// ill-formed bytes are replaced with U+FFFD.
//
// The stream ends when body returns io.EOF. Any other read error is yielded once, together with the
// content assembled up to that point, which the caller should keep as final. Nothing is yielded after
// ctx is done.
func (a Assembler) Assemble(ctx context.Context, body io.Reader) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		var c cleaner = &Scanner{}
		if !a.carryPartialMarkers {
			c = chunkCleaner{}
		}

		dec := unicode.UTF8.NewDecoder()
		buf := make([]byte, a.chunkSize)
		var carry []byte
		var content strings.Builder
		last := ""

		for {
			if ctx.Err() != nil {
				return
			}

			n, err := body.Read(buf)
			if ctx.Err() != nil {
				return
			}
			ended := err != nil

			if n > 0 || (ended && len(carry) > 0) {
				src := append(carry, buf[:n]...)
				text, consumed, derr := decodeChunk(dec, src, ended)
				if derr != nil {
					yield(content.String(), fmt.Errorf("error decoding stream: %w", derr))
					return
				}
				carry = append([]byte(nil), src[consumed:]...)

				content.WriteString(c.Write(text))
				if !ended {
					last = content.String()
					if !yield(last, nil) {
						return
					}
				}
			}

			if !ended {
				continue
			}

			content.WriteString(c.Flush())
			if errors.Is(err, io.EOF) {
				if content.String() != last {
					yield(content.String(), nil)
				}
				return
			}
			yield(content.String(), fmt.Errorf("error reading stream: %w", err))
			return
		}
	}
}

// decodeChunk decodes as much of src as forms complete characters. An ill-formed byte expands to a
// three byte replacement character, so dst is sized to never run short.
func decodeChunk(t transform.Transformer, src []byte, atEOF bool) (string, int, error) {
	dst := make([]byte, 3*len(src)+utf8.UTFMax)
	nDst, nSrc, err := t.Transform(dst, src, atEOF)
	if err != nil && !errors.Is(err, transform.ErrShortSrc) {
		return "", 0, err
	}
	return string(dst[:nDst]), nSrc, nil
}
