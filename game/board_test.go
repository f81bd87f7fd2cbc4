package game

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	good := Board{{2, 4, 8, 16}, {0, 0, 0, 0}, {2048, 0, 0, 0}, {0, 0, 0, 131072}}
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate(good) = %v", err)
	}

	for _, v := range []int{1, 3, 6, -2, 100} {
		b := good
		b[1][2] = v
		err := b.Validate()
		if !errors.Is(err, ErrInvalidBoardState) {
			t.Fatalf("Validate with cell %d: err=%v want ErrInvalidBoardState", v, err)
		}
	}
}

func TestFromRows_RejectsShape(t *testing.T) {
	if _, err := FromRows([][]int{{2, 2, 2, 2}}); !errors.Is(err, ErrInvalidBoardState) {
		t.Fatalf("one row: err=%v", err)
	}
	if _, err := FromRows([][]int{{2, 2, 2}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}}); !errors.Is(err, ErrInvalidBoardState) {
		t.Fatalf("short row: err=%v", err)
	}
	b, err := FromRows([][]int{{2, 0, 0, 0}, {0, 4, 0, 0}, {0, 0, 8, 0}, {0, 0, 0, 16}})
	if err != nil {
		t.Fatalf("FromRows: %v", err)
	}
	if b[3][3] != 16 || b[1][1] != 4 {
		t.Fatalf("FromRows placed cells wrong:\n%s", b)
	}
}

func TestCellsRoundTrip(t *testing.T) {
	b := Board{{2, 4, 8, 16}, {32, 64, 128, 256}, {0, 0, 0, 0}, {2, 0, 2, 0}}
	got, err := FromCells(b.Cells())
	if err != nil {
		t.Fatalf("FromCells: %v", err)
	}
	if got != b {
		t.Fatalf("FromCells(Cells()) =\n%swant\n%s", got, b)
	}
}

func TestMaxTile_FirstInReadingOrder(t *testing.T) {
	b := Board{{0, 0, 0, 0}, {0, 64, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 64}}
	v, at := b.MaxTile()
	if v != 64 || at != (Point{1, 1}) {
		t.Fatalf("MaxTile = %d at %v", v, at)
	}
}

func TestPointHelpers(t *testing.T) {
	for _, p := range Corners {
		if !p.IsCorner() {
			t.Fatalf("%v should be a corner", p)
		}
	}
	if (Point{1, 0}).IsCorner() {
		t.Fatalf("(1,0) is not a corner")
	}
	if d := (Point{0, 0}).Manhattan(Point{3, 2}); d != 5 {
		t.Fatalf("Manhattan = %d want 5", d)
	}
}

func TestDirectionKeys(t *testing.T) {
	want := map[Direction]byte{Up: 'w', Down: 's', Left: 'a', Right: 'd'}
	for d, k := range want {
		got, err := d.Key()
		if err != nil || got != k {
			t.Fatalf("%s.Key() = %q, %v want %q", d, got, err, k)
		}
		back, err := DirectionForKey(k)
		if err != nil || back != d {
			t.Fatalf("DirectionForKey(%q) = %s, %v", k, back, err)
		}
	}

	if _, err := Direction(7).Key(); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Direction(7).Key() err=%v", err)
	}
	if _, err := DirectionForKey('q'); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("DirectionForKey('q') err=%v", err)
	}
}

func TestParseDirection(t *testing.T) {
	cases := map[string]Direction{"up": Up, "DOWN": Down, " Left ": Left, "d": Right, "w": Up}
	for in, want := range cases {
		got, err := ParseDirection(in)
		if err != nil || got != want {
			t.Fatalf("ParseDirection(%q) = %s, %v want %s", in, got, err, want)
		}
	}
	if _, err := ParseDirection("sideways"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("ParseDirection(sideways) err=%v", err)
	}
}
