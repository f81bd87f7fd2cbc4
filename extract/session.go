package extract

import (
	"strings"
	"time"

	"github.com/brensch/tty2048/game"
)

// Session is the extraction state for one attached game: the last accepted
// board, the last seen scores and the accumulated output. A Session must not
// be used from more than one goroutine.
type Session struct {
	board     game.Board
	hasBoard  bool
	score     int
	highScore int

	buf       strings.Builder
	maxBuffer int

	lastErr error
}

// Option configures a Session.
type Option func(*Session)

// WithMaxBuffer caps the retained output at roughly n bytes. Older output is
// dropped from the front on a line boundary. Zero keeps everything.
func WithMaxBuffer(n int) Option {
	return func(s *Session) {
		s.maxBuffer = n
	}
}

// NewSession returns an empty session.
func NewSession(opts ...Option) *Session {
	s := &Session{}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Write appends raw output to the buffer. It never fails.
func (s *Session) Write(p []byte) (int, error) {
	s.buf.Write(p)
	s.trim()
	return len(p), nil
}

// Feed appends a chunk of output.
func (s *Session) Feed(chunk string) {
	s.buf.WriteString(chunk)
	s.trim()
}

// FeedAndExtract appends chunk and runs Extract.
func (s *Session) FeedAndExtract(chunk string) bool {
	s.Feed(chunk)
	return s.Extract()
}

func (s *Session) trim() {
	if s.maxBuffer <= 0 || s.buf.Len() <= s.maxBuffer {
		return
	}
	data := s.buf.String()
	cut := len(data) - s.maxBuffer
	if i := strings.IndexByte(data[cut:], '\n'); i >= 0 {
		cut += i + 1
	}
	s.buf.Reset()
	s.buf.WriteString(data[cut:])
}

// Extract scans the whole buffer. Score markers update the session whenever
// they are found. The board is replaced only when the newest closed frame
// parses completely; the return value reports whether that happened.
// Calling Extract again on an unchanged buffer gives the same result.
func (s *Session) Extract() bool {
	f, err := ParseFrame(s.buf.String())
	if f.HasScore {
		s.score = f.Score
	}
	if f.HasHighScore {
		s.highScore = f.HighScore
	}
	s.lastErr = err
	if err != nil {
		return false
	}
	s.board, s.hasBoard = f.Board, true
	return true
}

// Board returns the last accepted board. ok is false until a board has been
// extracted.
func (s *Session) Board() (b game.Board, ok bool) {
	return s.board, s.hasBoard
}

// Score returns the last seen score.
func (s *Session) Score() int { return s.score }

// HighScore returns the last seen high score.
func (s *Session) HighScore() int { return s.highScore }

// Err returns why the last Extract call did not accept a board, or nil.
func (s *Session) Err() error { return s.lastErr }

// Buffer returns the retained output.
func (s *Session) Buffer() string { return s.buf.String() }

// BufferLen returns the number of retained bytes.
func (s *Session) BufferLen() int { return s.buf.Len() }

// ClearBuffer drops the retained output but keeps the last known state.
func (s *Session) ClearBuffer() {
	s.buf.Reset()
}

// Reset returns the session to its initial state.
func (s *Session) Reset() {
	*s = Session{maxBuffer: s.maxBuffer}
}

// Snapshot renders the current state in the game's own text format.
func (s *Session) Snapshot() (string, bool) {
	if !s.hasBoard {
		return "", false
	}
	return RenderSnapshot(s.board, s.score, s.highScore), true
}

// Record returns the current state as a structured record stamped with now.
func (s *Session) Record(now time.Time) (Record, bool) {
	if !s.hasBoard {
		return Record{}, false
	}
	return Record{
		Board:     s.board,
		Score:     s.score,
		HighScore: s.highScore,
		Timestamp: now.UTC(),
	}, true
}
