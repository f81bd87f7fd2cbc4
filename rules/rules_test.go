package rules

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/brensch/tty2048/game"
)

func logMove(t *testing.T, name string, before game.Board, d game.Direction, after game.Board) {
	t.Helper()
	t.Logf("=== %s ===\nBefore:\n%sMove: %s\nAfter:\n%s", name, before, d, after)
}

func TestMergeLine(t *testing.T) {
	cases := []struct {
		in, want Line
	}{
		{Line{2, 2, 2, 2}, Line{4, 4, 0, 0}},
		{Line{2, 2, 4, 0}, Line{4, 4, 0, 0}},
		{Line{0, 0, 0, 2}, Line{2, 0, 0, 0}},
		{Line{4, 0, 4, 4}, Line{8, 4, 0, 0}},
		{Line{2, 4, 8, 16}, Line{2, 4, 8, 16}},
		{Line{8, 8, 16, 16}, Line{16, 32, 0, 0}},
		{Line{0, 0, 0, 0}, Line{0, 0, 0, 0}},
		{Line{2, 0, 0, 2}, Line{4, 0, 0, 0}},
	}
	for _, tc := range cases {
		if got := MergeLine(tc.in); got != tc.want {
			t.Fatalf("MergeLine(%v) = %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestSimulateMove_AllDirections(t *testing.T) {
	before := game.Board{
		{2, 2, 0, 4},
		{0, 0, 0, 0},
		{2, 0, 4, 4},
		{0, 0, 0, 2},
	}

	want := map[game.Direction]game.Board{
		game.Left: {
			{4, 4, 0, 0},
			{0, 0, 0, 0},
			{2, 8, 0, 0},
			{2, 0, 0, 0},
		},
		game.Right: {
			{0, 0, 4, 4},
			{0, 0, 0, 0},
			{0, 0, 2, 8},
			{0, 0, 0, 2},
		},
		game.Up: {
			{4, 2, 4, 8},
			{0, 0, 0, 2},
			{0, 0, 0, 0},
			{0, 0, 0, 0},
		},
		game.Down: {
			{0, 0, 0, 0},
			{0, 0, 0, 0},
			{0, 0, 0, 8},
			{4, 2, 4, 2},
		},
	}

	for _, d := range game.Directions {
		after, changed := SimulateMove(before, d)
		logMove(t, "SimulateMove", before, d, after)
		if !changed {
			t.Fatalf("%s: changed=false", d)
		}
		if after != want[d] {
			t.Fatalf("%s: got\n%swant\n%s", d, after, want[d])
		}
	}
}

func TestSimulateMove_DoesNotCascade(t *testing.T) {
	before := game.Board{{2, 2, 2, 2}}
	after, changed := SimulateMove(before, game.Left)
	if !changed || after[0] != [4]int{4, 4, 0, 0} {
		t.Fatalf("Left on [2,2,2,2]: %v changed=%v", after[0], changed)
	}
	after, _ = SimulateMove(before, game.Right)
	if after[0] != [4]int{0, 0, 4, 4} {
		t.Fatalf("Right on [2,2,2,2]: %v", after[0])
	}
}

func TestSimulateMove_NoOp(t *testing.T) {
	before := game.Board{{2, 4, 8, 16}}
	after, changed := SimulateMove(before, game.Left)
	logMove(t, "no-op", before, game.Left, after)
	if changed {
		t.Fatalf("changed=true for compacted row")
	}
	if after != before {
		t.Fatalf("board mutated on no-op:\n%s", after)
	}
	if _, changed := SimulateMove(before, game.Up); changed {
		t.Fatalf("Up on top row should be a no-op")
	}
	if _, changed := SimulateMove(before, game.Down); !changed {
		t.Fatalf("Down should move the top row")
	}
}

func TestSimulateMove_LeavesInputUntouched(t *testing.T) {
	before := game.Board{{2, 2, 0, 0}, {0, 4, 0, 4}}
	keep := before
	SimulateMove(before, game.Right)
	if before != keep {
		t.Fatalf("input board modified")
	}
}

func TestMoveScore(t *testing.T) {
	b := game.Board{{2, 2, 4, 4}, {8, 8, 0, 0}}
	if got := MoveScore(b, game.Left); got != 4+8+16 {
		t.Fatalf("MoveScore = %d want 28", got)
	}
	if got := MoveScore(b, game.Up); got != 0 {
		t.Fatalf("MoveScore(Up) = %d want 0", got)
	}
}

func TestSimulateMoveChecked(t *testing.T) {
	bad := game.Board{{3, 0, 0, 0}}
	if _, _, err := SimulateMoveChecked(bad, game.Left); !errors.Is(err, game.ErrInvalidBoardState) {
		t.Fatalf("err=%v want ErrInvalidBoardState", err)
	}
	if _, _, err := SimulateMoveChecked(game.Board{}, game.Direction(9)); !errors.Is(err, game.ErrInvalidBoardState) {
		t.Fatalf("bad direction err=%v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("MustSimulateMove did not panic")
		}
	}()
	MustSimulateMove(bad, game.Left)
}

func TestLegalMovesAndGameOver(t *testing.T) {
	stuck := game.Board{
		{2, 4, 2, 4},
		{4, 2, 4, 2},
		{2, 4, 2, 4},
		{4, 2, 4, 2},
	}
	if !IsGameOver(stuck) {
		t.Fatalf("checkerboard should be game over")
	}
	if moves := LegalMoves(stuck); len(moves) != 0 {
		t.Fatalf("LegalMoves(stuck) = %v", moves)
	}

	almost := stuck
	almost[3][3] = 4
	if IsGameOver(almost) {
		t.Fatalf("a merge is available")
	}
	moves := LegalMoves(almost)
	if len(moves) == 0 {
		t.Fatalf("expected legal moves")
	}
	for _, d := range moves {
		if _, changed := SimulateMove(almost, d); !changed {
			t.Fatalf("LegalMoves returned no-op %s", d)
		}
	}
}

func TestAddRandomTile(t *testing.T) {
	var b game.Board
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < game.Size*game.Size; i++ {
		var ok bool
		b, ok = AddRandomTile(b, rng, DefaultSpawnSettings)
		if !ok {
			t.Fatalf("spawn %d failed on non-full board", i)
		}
	}
	if b.EmptyCount() != 0 {
		t.Fatalf("board not full after 16 spawns:\n%s", b)
	}
	if err := b.Validate(); err != nil {
		t.Fatalf("spawned invalid tile: %v", err)
	}
	if _, ok := AddRandomTile(b, rng, DefaultSpawnSettings); ok {
		t.Fatalf("spawn on full board reported ok")
	}
}

func TestAddRandomTile_DeterministicWithoutRNG(t *testing.T) {
	start := game.Board{{2, 0, 0, 0}}
	a, _ := AddRandomTile(start, nil, DefaultSpawnSettings)
	b, _ := AddRandomTile(start, nil, DefaultSpawnSettings)
	if a != b {
		t.Fatalf("nil rng spawn not deterministic:\n%s\n%s", a, b)
	}
	if a.EmptyCount() != start.EmptyCount()-1 {
		t.Fatalf("expected one new tile")
	}
}

func TestNewGame(t *testing.T) {
	b := NewGame(rand.New(rand.NewSource(7)), SpawnSettings{FourChance: 0})
	if got := 16 - b.EmptyCount(); got != 2 {
		t.Fatalf("NewGame placed %d tiles", got)
	}
	if b.Sum() != 4 {
		t.Fatalf("FourChance=0 should only spawn 2s, sum=%d", b.Sum())
	}
}
