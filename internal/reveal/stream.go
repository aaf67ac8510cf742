package reveal

import (
	"context"
	"strings"
)

// Streamer reveals tokens across a sequence of incrementally-arriving text
// chunks (e.g. an SSE token stream from an LLM), holding back a trailing
// fragment that might be the opening of a bracketed token split across a
// chunk boundary. Grounded on anonymizer.go's StreamingDeanonymize, which
// does the same buffering for Anthropic's content_block_delta chunking;
// generalized here to a transport-agnostic Feed/Flush pair.
type Streamer struct {
	pipeline   *Pipeline
	sessionID  string
	authorized bool
	pending    string
	resolved   int
	missed     int
}

// NewStreamer starts a new streaming reveal session bound to sessionID.
func (pl *Pipeline) NewStreamer(sessionID string, authorized bool) *Streamer {
	return &Streamer{pipeline: pl, sessionID: sessionID, authorized: authorized}
}

// Feed appends chunk to the buffer and returns the text now safe to emit:
// everything up to the start of a trailing "[...]" fragment that has not
// yet been confirmed complete. An unauthorized Streamer passes chunks
// through unchanged without ever touching the Vault — a cheaper shortcut
// to the same outcome the non-streaming Reveal reaches by leaving every
// token in place.
func (s *Streamer) Feed(chunk string) (string, error) {
	if !s.authorized {
		return chunk, nil
	}

	s.pending += chunk
	safe, rest := splitTrailingOpenBracket(s.pending)

	result, err := s.pipeline.Reveal(context.Background(), s.sessionID, safe, true)
	if err != nil {
		return "", err
	}
	s.resolved += result.Resolved
	s.missed += result.Missed
	s.pending = rest
	return result.Text, nil
}

// Flush resolves and returns whatever remains buffered, for end-of-stream.
// Any incomplete bracket fragment at this point could not have been a
// real token, so it is emitted verbatim rather than held forever.
func (s *Streamer) Flush() (string, error) {
	if !s.authorized || s.pending == "" {
		rest := s.pending
		s.pending = ""
		return rest, nil
	}
	result, err := s.pipeline.Reveal(context.Background(), s.sessionID, s.pending, true)
	if err != nil {
		return "", err
	}
	s.resolved += result.Resolved
	s.missed += result.Missed
	s.pending = ""
	return result.Text, nil
}

// Counts returns the running resolved/missed token totals for this
// stream, for metrics.
func (s *Streamer) Counts() (resolved, missed int) { return s.resolved, s.missed }

// splitTrailingOpenBracket returns (safe, rest) where rest is the
// shortest suffix of s that could still grow into a complete "[...]"
// token — an unmatched "[" with no following "]" — and safe is everything
// before it. If s contains no unmatched trailing "[", rest is empty.
func splitTrailingOpenBracket(s string) (safe, rest string) {
	idx := strings.LastIndexByte(s, '[')
	if idx == -1 {
		return s, ""
	}
	if strings.IndexByte(s[idx:], ']') != -1 {
		return s, "" // the last "[" is already closed; nothing pending
	}
	return s[:idx], s[idx:]
}
