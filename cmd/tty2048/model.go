package main

import (
	"math/rand"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/tty2048/extract"
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/rules"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	overStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
)

type model struct {
	board game.Board
	score int
	hi    int
	moves int
	over  bool
	rng   *rand.Rand
	spawn rules.SpawnSettings
}

func newModel(rng *rand.Rand, hi int) model {
	return model{
		board: rules.NewGame(rng, rules.DefaultSpawnSettings),
		hi:    hi,
		rng:   rng,
		spawn: rules.DefaultSpawnSettings,
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "up":
		return m.move(game.Up), nil
	case "down":
		return m.move(game.Down), nil
	case "left":
		return m.move(game.Left), nil
	case "right":
		return m.move(game.Right), nil
	}
	if len(key.Runes) == 1 && key.Runes[0] < 128 {
		if d, err := game.DirectionForKey(byte(key.Runes[0])); err == nil {
			return m.move(d), nil
		}
	}
	return m, nil
}

// move applies d and spawns a tile. Moves that change nothing are ignored.
func (m model) move(d game.Direction) model {
	if m.over {
		return m
	}
	next, changed := rules.SimulateMove(m.board, d)
	if !changed {
		return m
	}
	m.score += rules.MoveScore(m.board, d)
	m.hi = max(m.hi, m.score)
	m.board, _ = rules.AddRandomTile(next, m.rng, m.spawn)
	m.moves++
	m.over = rules.IsGameOver(m.board)
	return m
}

func (m model) View() string {
	s := titleStyle.Render("tty2048") + "\n"
	s += extract.RenderSnapshot(m.board, m.score, m.hi)
	if m.over {
		s += overStyle.Render("Game over!") + " " + statusStyle.Render("q: quit") + "\n"
	} else {
		s += statusStyle.Render("w a s d: move   q: quit") + "\n"
	}
	return s
}
