package main

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DBCache maintains a cached DuckDB connection over the archive roots and
// refreshes it periodically so new batch files show up.
type DBCache struct {
	roots       []string
	refreshRate time.Duration
	logger      *slog.Logger

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time

	// Cached games index for fast pagination
	gamesIndex []GameSummary
}

// NewDBCache creates a new DBCache with the given roots and refresh rate.
func NewDBCache(roots []string, refreshRate time.Duration, logger *slog.Logger) *DBCache {
	return &DBCache{
		roots:       roots,
		refreshRate: refreshRate,
		logger:      logger,
	}
}

// Get returns the cached DB connection, refreshing if needed.
func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check after acquiring write lock
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}
	return c.refreshLocked()
}

// Refresh forces a refresh of the cached DB connection.
func (c *DBCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked()
	return err
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()

	newDB, err := openDuckDB(c.roots)
	if err != nil {
		return nil, err
	}
	if c.db != nil {
		_ = c.db.Close()
	}

	c.db = newDB
	c.lastRefresh = time.Now()
	c.gamesIndex = nil

	c.logger.Debug("db refreshed", "took", time.Since(start))
	return c.db, nil
}

// GetGamesIndex returns the cached games index, rebuilding it after a
// refresh.
func (c *DBCache) GetGamesIndex(ctx context.Context) ([]GameSummary, error) {
	c.mu.RLock()
	if c.gamesIndex != nil && c.db != nil {
		idx := c.gamesIndex
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gamesIndex != nil && c.db != nil {
		return c.gamesIndex, nil
	}
	if c.db == nil {
		if _, err := c.refreshLocked(); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	games, err := queryAllGames(ctx, c.db, c.roots)
	if err != nil {
		return nil, err
	}
	c.gamesIndex = games
	c.logger.Debug("games index rebuilt", "games", len(games), "took", time.Since(start))
	return c.gamesIndex, nil
}

// Close closes the cached DB connection.
func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		err := c.db.Close()
		c.db = nil
		return err
	}
	return nil
}

const emptyTurns = `SELECT
	NULL::VARCHAR AS game_id,
	NULL::INTEGER AS turn,
	NULL::VARCHAR AS direction,
	NULL::INTEGER[] AS cells,
	NULL::INTEGER AS score,
	NULL::INTEGER AS high_score,
	NULL::DOUBLE AS evaluation,
	NULL::DOUBLE AS complexity,
	NULL::VARCHAR AS strategy,
	NULL::VARCHAR AS source,
	NULL::BIGINT AS unix_nano,
	NULL::VARCHAR AS filename
WHERE 1=0`

const emptyGames = `SELECT
	NULL::VARCHAR AS game_id,
	NULL::INTEGER AS moves,
	NULL::INTEGER AS score,
	NULL::INTEGER AS high_score,
	NULL::INTEGER AS max_tile,
	NULL::VARCHAR AS "end",
	NULL::INTEGER AS exit_status,
	NULL::INTEGER[] AS final,
	NULL::BIGINT AS created_ns,
	NULL::VARCHAR AS filename
WHERE 1=0`

// openDuckDB creates an in-memory DuckDB with a turns view over
// <root>/turns/*.parquet and a games view over <root>/games/*.parquet.
// In-flight files live in tmp/ subdirectories and are never matched.
func openDuckDB(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, err
	}
	// Ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")

	for _, view := range []struct{ name, sub, empty string }{
		{"turns", "turns", emptyTurns},
		{"games", "games", emptyGames},
	} {
		sqlText := "CREATE OR REPLACE VIEW " + view.name + " AS " + view.empty
		if globs := parquetGlobs(roots, view.sub); len(globs) > 0 {
			sqlText = "CREATE OR REPLACE VIEW " + view.name + ` AS
				SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)`
		}
		if _, err := db.Exec(sqlText); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

// parquetGlobs returns quoted glob patterns for the roots that currently
// hold at least one file; read_parquet fails on a pattern with no matches.
func parquetGlobs(roots []string, sub string) []string {
	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, sub, "*.parquet")
		if matches, _ := filepath.Glob(glob); len(matches) == 0 {
			continue
		}
		globs = append(globs, "'"+escapeSQLString(glob)+"'")
	}
	return globs
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func normalizeSort(sortKey string, sortDir string) (string, string) {
	sk := strings.ToLower(strings.TrimSpace(sortKey))
	sd := strings.ToLower(strings.TrimSpace(sortDir))
	if sd != "asc" && sd != "desc" {
		sd = "desc"
	}
	switch sk {
	case "time", "created", "created_ns":
		sk = "created_ns"
	case "id", "game", "game_id":
		sk = "game_id"
	case "score":
		sk = "score"
	case "moves", "turns":
		sk = "moves"
	case "tile", "max_tile":
		sk = "max_tile"
	case "end":
		sk = "end"
	case "source":
		sk = "source"
	default:
		sk = "created_ns"
		sd = "desc"
	}
	return sk, sd
}

func makeRelativeToRoots(filename string, roots []string) string {
	fn := strings.TrimSpace(filename)
	if fn == "" {
		return ""
	}
	best := fn
	bestLen := len(best)
	for _, r := range roots {
		root := strings.TrimSpace(r)
		if root == "" {
			continue
		}
		rel, err := filepath.Rel(root, fn)
		if err != nil {
			continue
		}
		// Ignore paths that escape the root.
		if strings.HasPrefix(rel, "..") {
			continue
		}
		cand := filepath.ToSlash(filepath.Join(root, rel))
		if len(cand) < bestLen {
			best = cand
			bestLen = len(cand)
		}
	}
	return best
}

// queryAllGames loads every game summary, newest first.
func queryAllGames(ctx context.Context, db *sql.DB, roots []string) ([]GameSummary, error) {
	query := `SELECT
			g.game_id,
			g.moves::INTEGER,
			g.score::INTEGER,
			g.high_score::INTEGER,
			g.max_tile::INTEGER,
			g."end",
			g.exit_status::INTEGER,
			g.created_ns::BIGINT,
			COALESCE(t.source, '') AS source,
			g.filename
		FROM games g
		LEFT JOIN (
			SELECT game_id, MIN(source) AS source FROM turns GROUP BY game_id
		) t ON t.game_id = g.game_id`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]GameSummary, 0, 1024)
	for rows.Next() {
		var g GameSummary
		var file string
		if err := rows.Scan(&g.GameID, &g.Moves, &g.Score, &g.HighScore, &g.MaxTile, &g.End, &g.ExitStatus, &g.CreatedNs, &g.Source, &file); err != nil {
			return nil, err
		}
		g.SourceFile = makeRelativeToRoots(file, roots)
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedNs != out[j].CreatedNs {
			return out[i].CreatedNs > out[j].CreatedNs
		}
		return out[i].GameID > out[j].GameID
	})
	return out, nil
}

// paginateGames sorts and paginates a games index in memory.
func paginateGames(games []GameSummary, limit, offset int, sortKey, sortDir string) []GameSummary {
	sk, sd := normalizeSort(sortKey, sortDir)

	sorted := make([]GameSummary, len(games))
	copy(sorted, games)

	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if sd == "desc" {
			a, b = b, a
		}
		switch sk {
		case "game_id":
			return a.GameID < b.GameID
		case "score":
			return a.Score < b.Score
		case "moves":
			return a.Moves < b.Moves
		case "max_tile":
			return a.MaxTile < b.MaxTile
		case "end":
			return a.End < b.End
		case "source":
			return a.Source < b.Source
		default:
			return a.CreatedNs < b.CreatedNs
		}
	})

	if offset < 0 || offset >= len(sorted) {
		return []GameSummary{}
	}
	limit = max(min(limit, len(sorted)-offset), 0)
	return sorted[offset : offset+limit]
}

func queryTurns(ctx context.Context, db *sql.DB, gameID string) ([]Turn, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT game_id, turn::INTEGER, direction, cells, score::INTEGER, high_score::INTEGER,
			evaluation, complexity, strategy, source, unix_nano
		 FROM turns
		 WHERE game_id = ?
		 ORDER BY turn ASC`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	turns := make([]Turn, 0, 256)
	for rows.Next() {
		var t Turn
		var cellsAny any
		if err := rows.Scan(&t.GameID, &t.Turn, &t.Direction, &cellsAny, &t.Score, &t.HighScore,
			&t.Evaluation, &t.Complexity, &t.Strategy, &t.Source, &t.UnixNano); err != nil {
			return nil, err
		}
		if t.Board, err = asBoard(cellsAny); err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(turns) == 0 {
		return nil, sql.ErrNoRows
	}
	return turns, nil
}

// queryFinal returns a game's last board from the games view.
func queryFinal(ctx context.Context, db *sql.DB, gameID string) (GameSummary, []int, error) {
	var g GameSummary
	var finalAny any
	err := db.QueryRowContext(ctx,
		`SELECT game_id, moves::INTEGER, score::INTEGER, high_score::INTEGER, final
		 FROM games WHERE game_id = ? LIMIT 1`, gameID).
		Scan(&g.GameID, &g.Moves, &g.Score, &g.HighScore, &finalAny)
	if err != nil {
		return GameSummary{}, nil, err
	}
	return g, asInts(finalAny), nil
}

func queryStats(ctx context.Context, db *sql.DB, fromNs int64, toNs int64, bucketNs int64) ([]StatsPoint, error) {
	query := `SELECT
			(? + floor((created_ns - ?)::DOUBLE / ?::DOUBLE) * ?)::BIGINT AS bucket_start_ns,
			COUNT(*)::BIGINT,
			SUM(moves)::BIGINT,
			AVG(score)::DOUBLE,
			MAX(score)::BIGINT,
			MAX(max_tile)::BIGINT
		FROM games
		WHERE created_ns >= ? AND created_ns <= ?
		GROUP BY bucket_start_ns
		ORDER BY bucket_start_ns ASC`

	rows, err := db.QueryContext(ctx, query, fromNs, fromNs, bucketNs, bucketNs, fromNs, toNs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := make([]StatsPoint, 0, 256)
	for rows.Next() {
		var p StatsPoint
		if err := rows.Scan(&p.TNs, &p.Games, &p.TotalMoves, &p.AvgScore, &p.BestScore, &p.BestTile); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func queryTiles(ctx context.Context, db *sql.DB) ([]TileCount, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT max_tile::BIGINT, COUNT(*)::BIGINT FROM games GROUP BY max_tile ORDER BY max_tile ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]TileCount, 0, 16)
	for rows.Next() {
		var tc TileCount
		if err := rows.Scan(&tc.MaxTile, &tc.Games); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}
