package game

import (
	"errors"
	"fmt"
	"strings"
)

// Direction is a cardinal move command.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions lists every direction in ordinal order.
var Directions = [4]Direction{Up, Down, Left, Right}

// ErrInvalidKey is returned for any byte outside the move key protocol.
var ErrInvalidKey = errors.New("invalid move key")

var directionNames = [4]string{"Up", "Down", "Left", "Right"}

// keys maps directions to the bytes the game reads from its terminal.
var keys = [4]byte{'w', 's', 'a', 'd'}

func (d Direction) Valid() bool {
	return d >= Up && d <= Right
}

func (d Direction) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Direction(%d)", int(d))
	}
	return directionNames[d]
}

// Key returns the single keystroke that performs d.
func (d Direction) Key() (byte, error) {
	if !d.Valid() {
		return 0, fmt.Errorf("%w: direction %d", ErrInvalidKey, int(d))
	}
	return keys[d], nil
}

// DirectionForKey maps a keystroke back to its direction.
func DirectionForKey(k byte) (Direction, error) {
	for i, kk := range keys {
		if kk == k {
			return Direction(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKey, k)
}

// ParseDirection accepts a direction name (any case) or its key.
func ParseDirection(s string) (Direction, error) {
	s = strings.TrimSpace(s)
	for i, name := range directionNames {
		if strings.EqualFold(s, name) {
			return Direction(i), nil
		}
	}
	if len(s) == 1 {
		return DirectionForKey(s[0])
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidKey, s)
}
