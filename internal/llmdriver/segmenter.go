package llmdriver

import (
	"regexp"
	"strings"
)

// sentenceBoundary matches one sentence terminated by ./!/? followed by
// whitespace, per spec.md §4.5's incremental segmenter.
var sentenceBoundary = regexp.MustCompile(`^(.+?[.!?])\s+`)

const (
	wordFallbackCount = 15
	minWordsToEmit    = 5
)

// segmenter turns a stream of text deltas into sentence- or
// word-bounded candidates, each passed through the 5-word minimum
// before reaching onSegment. It holds no knowledge of TTS or the
// session; it is a pure text-buffering state machine.
type segmenter struct {
	buf        strings.Builder
	full       strings.Builder
	onSegment  func(string)
	emittedAny bool
}

func newSegmenter(onSegment func(string)) *segmenter {
	return &segmenter{onSegment: onSegment}
}

// feed appends one delta and emits as many complete candidates as the
// buffer now supports.
func (s *segmenter) feed(delta string) {
	s.buf.WriteString(delta)
	s.full.WriteString(delta)

	for {
		current := s.buf.String()

		if m := sentenceBoundary.FindStringSubmatchIndex(current); m != nil {
			sentence := current[m[2]:m[3]]
			rest := current[m[1]:]
			s.buf.Reset()
			s.buf.WriteString(rest)
			s.emit(sentence)
			continue
		}

		words := strings.Fields(strings.TrimSpace(current))
		if len(words) >= wordFallbackCount {
			head := strings.Join(words[:wordFallbackCount], " ")
			remainder := consumeWords(current, wordFallbackCount)
			s.buf.Reset()
			s.buf.WriteString(remainder)
			s.emit(head)
			continue
		}

		break
	}
}

// finish flushes whatever remains in the buffer on stream completion.
// If nothing was ever emitted and the buffer holds a non-empty
// response, the full response is emitted as a single segment
// regardless of the 5-word minimum, per spec.md §4.5.
func (s *segmenter) finish() {
	tail := strings.TrimSpace(s.buf.String())
	s.buf.Reset()

	if !s.emittedAny {
		full := strings.TrimSpace(s.full.String())
		if full == "" {
			return
		}
		if s.onSegment != nil {
			s.onSegment(full)
		}
		s.emittedAny = true
		return
	}

	s.emit(tail)
}

// emit applies the 5-word minimum gate before calling onSegment.
func (s *segmenter) emit(candidate string) {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return
	}
	if len(strings.Fields(candidate)) < minWordsToEmit {
		return
	}
	s.emittedAny = true
	if s.onSegment != nil {
		s.onSegment(candidate)
	}
}

// consumeWords returns the substring of text remaining after its first
// n whitespace-delimited words have been removed, preserving any
// leading whitespace collapse the same way strings.Fields would.
func consumeWords(text string, n int) string {
	idx := 0
	count := 0
	inWord := false
	for i, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r'
		if !isSpace && !inWord {
			inWord = true
		} else if isSpace && inWord {
			inWord = false
			count++
			if count == n {
				idx = i
				break
			}
		}
	}
	if count < n {
		return ""
	}
	return text[idx:]
}
