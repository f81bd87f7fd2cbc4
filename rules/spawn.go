// spawn.go implements new-tile spawning for the local game.

package rules

import (
	"math/rand"

	"github.com/brensch/tty2048/game"
)

// SpawnSettings controls tile spawning.
type SpawnSettings struct {
	FourChance int // Percentage chance (0–100) that a spawned tile is a 4
}

// DefaultSpawnSettings matches the classic game (10% fours).
var DefaultSpawnSettings = SpawnSettings{FourChance: 10}

// AddRandomTile places a 2 or 4 on a random empty cell. It reports false when
// the board is full. If rng is nil a deterministic hash of the board is used.
func AddRandomTile(b game.Board, rng *rand.Rand, settings SpawnSettings) (game.Board, bool) {
	free := b.EmptyCells()
	if len(free) == 0 {
		return b, false
	}

	var idx, roll int
	if rng != nil {
		idx = rng.Intn(len(free))
		roll = rng.Intn(100)
	} else {
		seed := boardHash(b)
		idx = int(deterministicU64Fast(seed, 0xDEADBEEF) % uint64(len(free)))
		roll = int(deterministicU64Fast(seed, 0xF00D) % 100)
	}

	value := 2
	if roll < settings.FourChance {
		value = 4
	}
	p := free[idx]
	b[p.Row][p.Col] = value
	return b, true
}

// NewGame returns a board with two spawned tiles.
func NewGame(rng *rand.Rand, settings SpawnSettings) game.Board {
	var b game.Board
	b, _ = AddRandomTile(b, rng, settings)
	b, _ = AddRandomTile(b, rng, settings)
	return b
}

func boardHash(b game.Board) uint64 {
	var h uint64
	for _, v := range b.Cells() {
		h = h*31 + uint64(v)
	}
	return h
}

// deterministicU64Fast is a simple deterministic hasher for reproducibility.
func deterministicU64Fast(a, b uint64) uint64 {
	// Variant of splitmix64
	x := a + b
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
