package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/brensch/tty2048/driver"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	labelStyle = lipgloss.NewStyle().Width(14).Foreground(lipgloss.Color("244"))
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

type tickMsg time.Time

type doneMsg struct{}

type dashboard struct {
	target      int
	gamesPlayed int
	moves       int64
	bestScore   int
	bestTile    int
	totalScore  int
	startTime   time.Time
	recentGames []string
	updates     <-chan gameUpdate
	done        bool
}

func newDashboard(target int, updates <-chan gameUpdate) dashboard {
	return dashboard{
		target:    target,
		startTime: time.Now(),
		updates:   updates,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForUpdate(updates <-chan gameUpdate) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return doneMsg{}
		}
		return u
	}
}

func (m dashboard) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
	case tickMsg:
		m.moves = totalMoves.Load()
		return m, tickCmd()
	case gameUpdate:
		m.record(msg.Index, msg.Result)
		return m, waitForUpdate(m.updates)
	case doneMsg:
		m.done = true
		m.moves = totalMoves.Load()
		return m, tea.Quit
	}
	return m, nil
}

func (m *dashboard) record(index int, r driver.Result) {
	m.gamesPlayed++
	m.totalScore += r.Score
	m.bestScore = max(m.bestScore, r.Score)
	m.bestTile = max(m.bestTile, r.MaxTile)
	line := fmt.Sprintf("game %d: score %d, tile %d, %d moves (%s)", index, r.Score, r.MaxTile, r.Moves, r.End)
	m.recentGames = append([]string{line}, m.recentGames...)
	if len(m.recentGames) > 10 {
		m.recentGames = m.recentGames[:10]
	}
}

func (m dashboard) View() string {
	duration := time.Since(m.startTime)
	movesPerSec := 0.0
	if duration.Seconds() >= 1 {
		movesPerSec = float64(m.moves) / duration.Seconds()
	}
	avg := 0.0
	if m.gamesPlayed > 0 {
		avg = float64(m.totalScore) / float64(m.gamesPlayed)
	}

	row := func(label, value string) string {
		return labelStyle.Render(label) + value + "\n"
	}
	var b strings.Builder
	b.WriteString(row("Games", fmt.Sprintf("%d / %d", m.gamesPlayed, m.target)))
	b.WriteString(row("Moves", fmt.Sprintf("%d", m.moves)))
	b.WriteString(row("Moves/Sec", fmt.Sprintf("%.2f", movesPerSec)))
	b.WriteString(row("Avg Score", fmt.Sprintf("%.0f", avg)))
	b.WriteString(row("Best Score", fmt.Sprintf("%d", m.bestScore)))
	b.WriteString(row("Best Tile", fmt.Sprintf("%d", m.bestTile)))
	b.WriteString(row("Duration", duration.Round(time.Second).String()))

	recent := "Recent Games:\n"
	for _, g := range m.recentGames {
		recent += g + "\n"
	}

	footer := "Press q to quit."
	if m.done {
		footer = "All games finished."
	}
	return titleStyle.Render("play2048") + "\n" +
		boxStyle.Render(strings.TrimRight(b.String(), "\n")) + "\n" +
		recent + "\n" + dimStyle.Render(footer) + "\n"
}
