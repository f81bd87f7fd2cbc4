// analyze reports on a saved 2048 board: complexity metrics, the suggested
// strategy and what the heuristic player would do next.
//
// The input is a snapshot (.txt as the game draws it, or the .json record)
// given as a path or on stdin.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/brensch/tty2048/extract"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/heuristic"
)

// Report is the analysis of one board.
type Report struct {
	heuristic.ComplexityScore
	Board           game.Board          `json:"board"`
	Score           int                 `json:"score"`
	NeedsInspection bool                `json:"needs_inspection"`
	Strategy        heuristic.Strategy  `json:"strategy"`
	Advice          string              `json:"advice"`
	Best            string              `json:"best_move,omitempty"`
	Candidates      map[string]*float64 `json:"candidates"`
}

func main() {
	threshold := flag.Float64("threshold", heuristic.DefaultInspectionThreshold, "Complexity threshold for manual inspection")
	asJSON := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	var in io.Reader = os.Stdin
	if flag.NArg() > 0 {
		f, err := os.Open(flag.Arg(0))
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer f.Close()
		in = f
	}

	data, err := io.ReadAll(in)
	if err != nil {
		log.Fatalf("read board: %v", err)
	}
	board, score, err := parseBoard(data)
	if err != nil {
		log.Fatalf("Could not parse a valid 4x4 board: %v", err)
	}

	rep := analyze(board, score, *threshold, heuristic.DefaultWeights)
	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}
	writeText(os.Stdout, rep, *threshold)
}

// parseBoard accepts a JSON record, a full frame, or bare "|" rows.
func parseBoard(data []byte) (game.Board, int, error) {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		var rec extract.Record
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return game.Board{}, 0, err
		}
		if err := rec.Board.Validate(); err != nil {
			return game.Board{}, 0, err
		}
		return rec.Board, rec.Score, nil
	}

	frame, err := extract.ParseFrame(string(data))
	if err == nil {
		return frame.Board, frame.Score, nil
	}
	if !errors.Is(err, extract.ErrNoFrame) {
		return game.Board{}, 0, err
	}

	var rows []string
	sc := bufio.NewScanner(strings.NewReader(extract.Normalize(string(data))))
	for sc.Scan() {
		line := sc.Text()
		if strings.Contains(line, "|") && !strings.Contains(line, "---") {
			rows = append(rows, line)
		}
	}
	b, err := extract.ParseRows(rows)
	return b, frame.Score, err
}

func analyze(b game.Board, score int, threshold float64, w heuristic.Weights) Report {
	cs := heuristic.Complexity(b)
	rep := Report{
		ComplexityScore: cs,
		Board:           b,
		Score:           score,
		NeedsInspection: cs.Complexity >= threshold,
		Strategy:        cs.Strategy(),
		Candidates:      make(map[string]*float64),
	}
	rep.Advice = rep.Strategy.Description()

	chooser := heuristic.NewChooser(w)
	for _, c := range chooser.Candidates(b) {
		if !c.Legal {
			rep.Candidates[c.Direction.String()] = nil
			continue
		}
		v := c.Score
		rep.Candidates[c.Direction.String()] = &v
	}
	if d, _, ok := chooser.BestMove(b); ok {
		rep.Best = d.String()
	}
	return rep
}

func writeText(w io.Writer, rep Report, threshold float64) {
	corner := "not corner"
	if rep.MaxInCorner {
		corner = "corner"
	}
	fmt.Fprintln(w, rep.Board)
	fmt.Fprintln(w, "\n=== Board Analysis ===")
	fmt.Fprintf(w, "Complexity Score: %.1f/100\n", rep.Complexity)
	fmt.Fprintf(w, "Empty Cells: %d\n", rep.EmptyCells)
	fmt.Fprintf(w, "Max Tile: %d (%s)\n", rep.MaxTile, corner)
	fmt.Fprintf(w, "Monotonicity: %.2f\n", rep.Monotonicity)
	fmt.Fprintf(w, "Merge Opportunities: %d\n", rep.MergeOpportunities)
	fmt.Fprintf(w, "Scattered Score: %.2f\n", rep.Scatter)
	fmt.Fprintf(w, "\nStrategy: %s\n", rep.Advice)

	if rep.Best == "" {
		fmt.Fprintln(w, "No legal moves: game over")
	} else {
		fmt.Fprintf(w, "Best Move: %s\n", rep.Best)
		for _, d := range []game.Direction{game.Up, game.Down, game.Left, game.Right} {
			if v := rep.Candidates[d.String()]; v != nil {
				fmt.Fprintf(w, "  %-5s %10.1f\n", d, *v)
			} else {
				fmt.Fprintf(w, "  %-5s %10s\n", d, "-")
			}
		}
	}

	if rep.NeedsInspection {
		fmt.Fprintf(w, "\nBoard complexity exceeds threshold (%.0f)\n", threshold)
		fmt.Fprintln(w, "Manual inspection recommended!")
	}
}
