package main

import (
	"github.com/brensch/tty2048/game"
	"github.com/brensch/tty2048/heuristic"
)

// GameSummary is one row of the games list.
type GameSummary struct {
	GameID     string `json:"game_id"`
	Moves      int32  `json:"moves"`
	Score      int32  `json:"score"`
	HighScore  int32  `json:"high_score"`
	MaxTile    int32  `json:"max_tile"`
	End        string `json:"end"`
	ExitStatus int32  `json:"exit_status"`
	CreatedNs  int64  `json:"created_ns"`
	Source     string `json:"source"`
	SourceFile string `json:"file"`
}

// GamesResponse is the paginated response for /api/games.
type GamesResponse struct {
	Total int64         `json:"total"`
	Games []GameSummary `json:"games"`
}

// StatsPoint is a single time bucket of finished games.
type StatsPoint struct {
	TNs        int64   `json:"t_ns"`
	Games      int64   `json:"games"`
	TotalMoves int64   `json:"total_moves"`
	AvgScore   float64 `json:"avg_score"`
	BestScore  int64   `json:"best_score"`
	BestTile   int64   `json:"best_tile"`
}

// StatsResponse is the response for /api/stats.
type StatsResponse struct {
	FromNs   int64        `json:"from_ns"`
	ToNs     int64        `json:"to_ns"`
	BucketNs int64        `json:"bucket_ns"`
	Points   []StatsPoint `json:"points"`
}

// TileCount is how many games peaked at a tile.
type TileCount struct {
	MaxTile int64 `json:"max_tile"`
	Games   int64 `json:"games"`
}

// Turn is one archived move.
type Turn struct {
	GameID     string     `json:"game_id"`
	Turn       int32      `json:"turn"`
	Direction  string     `json:"direction"`
	Board      game.Board `json:"board"`
	Score      int32      `json:"score"`
	HighScore  int32      `json:"high_score"`
	Evaluation float64    `json:"evaluation"`
	Complexity float64    `json:"complexity"`
	Strategy   string     `json:"strategy"`
	Source     string     `json:"source"`
	UnixNano   int64      `json:"unix_nano"`
}

// SimulateRequest asks what a move does to a board. An empty direction
// only scores the board.
type SimulateRequest struct {
	Board     game.Board `json:"board"`
	Direction string     `json:"direction"`
}

// MoveOption is one direction as the player sees it.
type MoveOption struct {
	Direction  string     `json:"direction"`
	Legal      bool       `json:"legal"`
	Board      game.Board `json:"board"`
	Evaluation float64    `json:"evaluation"`
}

// SimulateResponse is the response for /api/simulate.
type SimulateResponse struct {
	Board      game.Board                `json:"board"`
	Changed    bool                      `json:"changed"`
	Gained     int                       `json:"gained"`
	GameOver   bool                      `json:"game_over"`
	Best       string                    `json:"best,omitempty"`
	Options    []MoveOption              `json:"options"`
	Complexity heuristic.ComplexityScore `json:"complexity"`
	Strategy   heuristic.Strategy        `json:"strategy"`
	Advice     string                    `json:"advice"`
}
