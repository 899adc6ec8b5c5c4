package stream

import "strings"

const (
	linePrefix = "data:"
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

// Scanner removes protocol sentinels from a streamed answer. It drops the "data:" prefix of every
// logical line together with the whitespace after it, drops "<think>...</think>" blocks with their
// content and the whitespace following the close marker, and drops a close marker that has no
// matching open marker.
//
// A marker cut by a chunk boundary is held back and resolved with the next chunk, so feeding a
// stream chunk by chunk produces the same text as feeding it at once. The zero value is ready to
// use and positioned at the start of a line.
type Scanner struct {
	pending   string
	midLine   bool
	inThink   bool
	skipSpace bool
}

// Write consumes one decoded chunk and returns the cleaned text that can be displayed now.
func (s *Scanner) Write(chunk string) string {
	in := s.pending + chunk
	s.pending = ""

	var out strings.Builder
	out.Grow(len(in))

	for i := 0; i < len(in); {
		c := in[i]
		rest := in[i:]

		if s.skipSpace {
			if isSpace(c) {
				s.midLine = c != '\n'
				i++
				continue
			}
			s.skipSpace = false
		}

		if s.inThink {
			if c == '<' {
				if strings.HasPrefix(rest, thinkClose) {
					i += len(thinkClose)
					s.inThink = false
					s.skipSpace = true
					continue
				}
				if isPartial(rest, thinkClose) {
					s.pending = rest
					break
				}
			}
			s.midLine = c != '\n'
			i++
			continue
		}

		if !s.midLine && c == 'd' {
			if strings.HasPrefix(rest, linePrefix) {
				i += len(linePrefix)
				s.midLine = true
				s.skipSpace = true
				continue
			}
			if isPartial(rest, linePrefix) {
				s.pending = rest
				break
			}
		}

		if c == '<' {
			if strings.HasPrefix(rest, thinkOpen) {
				i += len(thinkOpen)
				s.inThink = true
				continue
			}
			if strings.HasPrefix(rest, thinkClose) {
				i += len(thinkClose)
				s.skipSpace = true
				continue
			}
			if isPartial(rest, thinkOpen) || isPartial(rest, thinkClose) {
				s.pending = rest
				break
			}
		}

		out.WriteByte(c)
		s.midLine = c != '\n'
		i++
	}

	return out.String()
}

// Flush ends the stream. Text held back as a possible marker is returned verbatim, unless it belongs
// to a think block that was never closed, in which case it is dropped with the rest of the block.
func (s *Scanner) Flush() string {
	p := s.pending
	inThink := s.inThink
	*s = Scanner{}
	if inThink {
		return ""
	}
	return p
}

// Clean removes sentinels from a single chunk in isolation. Markers cut by a chunk boundary are not
// recognized, and every chunk is treated as starting a new line.
func Clean(chunk string) string {
	var s Scanner
	return s.Write(chunk) + s.Flush()
}

func isPartial(rest, marker string) bool {
	return len(rest) < len(marker) && strings.HasPrefix(marker, rest)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
