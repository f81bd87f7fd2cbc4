package source

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/brensch/tty2048/game"
)

// Layout is the order tiles are stored in a memory dump.
type Layout int

const (
	// ColumnMajor is how the game keeps its grid: mem[col*4+row].
	ColumnMajor Layout = iota
	RowMajor
)

func (l Layout) String() string {
	if l == RowMajor {
		return "row-major"
	}
	return "column-major"
}

const (
	cellWords = game.Size * game.Size
	wordSize  = 4
	// largest exponent that still fits an int tile on every platform.
	maxExponent = 30
)

var ErrShortDump = errors.New("memory dump shorter than 16 words")

// DumpFunc reads a raw memory dump of the game's grid.
type DumpFunc func(ctx context.Context) ([]byte, error)

// MemorySource decodes the grid straight out of the game's memory. The dump
// is 16 little-endian uint32 exponents (0 empty, e means 2^e), optionally
// followed by the score and high score words.
type MemorySource struct {
	read   DumpFunc
	layout Layout
	words  bool
}

// NewMemorySource returns a source reading dumps with read.
func NewMemorySource(read DumpFunc, layout Layout) *MemorySource {
	return &MemorySource{read: read, layout: layout}
}

// NewDebuggerSource returns a source whose dumps are a debugger's decimal
// word listing (see ParseDebuggerWords) rather than raw bytes.
func NewDebuggerSource(read DumpFunc, layout Layout) *MemorySource {
	return &MemorySource{read: read, layout: layout, words: true}
}

// ExtractState reads and decodes one dump. A dump that is too short is
// treated as not ready yet.
func (m *MemorySource) ExtractState(ctx context.Context) (State, error) {
	data, err := m.read(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read dump: %w", err)
	}
	var st State
	if m.words {
		words, werr := ParseDebuggerWords(string(data))
		if werr != nil {
			return State{}, fmt.Errorf("%w: %w", ErrNoUpdate, werr)
		}
		st, err = DecodeWords(words, m.layout)
	} else {
		st, err = DecodeDump(data, m.layout)
	}
	if errors.Is(err, ErrShortDump) {
		return State{}, fmt.Errorf("%w: %w", ErrNoUpdate, err)
	}
	return st, err
}

// DecodeDump converts raw little-endian words into a row-major State.
func DecodeDump(data []byte, layout Layout) (State, error) {
	if len(data) < cellWords*wordSize {
		return State{}, fmt.Errorf("%w: %d bytes", ErrShortDump, len(data))
	}
	words := make([]uint32, len(data)/wordSize)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*wordSize:])
	}
	return DecodeWords(words, layout)
}

// DecodeWords is DecodeDump for already split words.
func DecodeWords(words []uint32, layout Layout) (State, error) {
	var st State
	if len(words) < cellWords {
		return st, fmt.Errorf("%w: %d words", ErrShortDump, len(words))
	}
	for i := 0; i < cellWords; i++ {
		row, col := i/game.Size, i%game.Size
		if layout == ColumnMajor {
			col, row = i/game.Size, i%game.Size
		}
		e := words[i]
		if e == 0 {
			continue
		}
		if e > maxExponent {
			return State{}, fmt.Errorf("%w: word %d has exponent %d", game.ErrInvalidBoardState, i, e)
		}
		st.Board[row][col] = 1 << e
	}
	if len(words) > cellWords {
		st.Score = int(words[cellWords])
	}
	if len(words) > cellWords+1 {
		st.HighScore = int(words[cellWords+1])
	}
	return st, nil
}

// EncodeDump is the inverse of DecodeDump, used to build fixtures and by the
// local game's state export. Tiles must be valid.
func EncodeDump(st State, layout Layout) ([]byte, error) {
	if err := st.Board.Validate(); err != nil {
		return nil, err
	}
	out := make([]byte, (cellWords+2)*wordSize)
	for r := 0; r < game.Size; r++ {
		for c := 0; c < game.Size; c++ {
			i := r*game.Size + c
			if layout == ColumnMajor {
				i = c*game.Size + r
			}
			var e uint32
			for v := st.Board[r][c]; v > 1; v >>= 1 {
				e++
			}
			binary.LittleEndian.PutUint32(out[i*wordSize:], e)
		}
	}
	binary.LittleEndian.PutUint32(out[cellWords*wordSize:], uint32(st.Score))
	binary.LittleEndian.PutUint32(out[(cellWords+1)*wordSize:], uint32(st.HighScore))
	return out, nil
}

// ParseDebuggerWords reads the decimal word listing a debugger prints for a
// memory read, e.g.
//
//	0x100003f60: 0 0 0 1 0 0 0 0
//	0x100003f80: 0 0 1 0 1 0 0 1
//
// Lines without an address prefix are ignored.
func ParseDebuggerWords(text string) ([]uint32, error) {
	var words []uint32
	for _, line := range strings.Split(text, "\n") {
		_, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		for _, f := range strings.Fields(rest) {
			v, err := strconv.ParseUint(f, 0, 32)
			if err != nil {
				return nil, fmt.Errorf("parse word %q: %w", f, err)
			}
			words = append(words, uint32(v))
		}
	}
	return words, nil
}
