package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/brensch/tty2048/game"
)

const userAgent = "tty2048/1.0 (state-reader)"

// HTMLConfig holds HTMLSource settings.
type HTMLConfig struct {
	URL     string
	Timeout time.Duration
}

// HTMLSource reads the board from the web build's page. The page keeps the
// grid in a table.board with one tr per row and one td per cell, and the
// scores in .score and .best.
type HTMLSource struct {
	config HTMLConfig
	client *http.Client
}

// NewHTMLSource creates a source polling config.URL.
func NewHTMLSource(config HTMLConfig) *HTMLSource {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &HTMLSource{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// ExtractState fetches and parses the page.
func (h *HTMLSource) ExtractState(ctx context.Context) (State, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.config.URL, nil)
	if err != nil {
		return State{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return State{}, fmt.Errorf("fetch %s: %w", h.config.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return State{}, fmt.Errorf("fetch %s: unexpected status code: %d", h.config.URL, resp.StatusCode)
	}
	return ParseHTML(resp.Body)
}

// ParseHTML parses board markup. A page without a complete 4x4 table is
// reported as ErrNoUpdate.
func ParseHTML(r io.Reader) (State, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return State{}, fmt.Errorf("parse html: %w", err)
	}

	var st State
	st.Score = intText(doc.Find(".score").First())
	st.HighScore = intText(doc.Find(".best").First())

	rows := doc.Find("table.board tr")
	if rows.Length() != game.Size {
		return st, fmt.Errorf("%w: board has %d rows", ErrNoUpdate, rows.Length())
	}

	var parseErr error
	rows.EachWithBreak(func(r int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() != game.Size {
			parseErr = fmt.Errorf("%w: row %d has %d cells", ErrNoUpdate, r, cells.Length())
			return false
		}
		cells.EachWithBreak(func(c int, cell *goquery.Selection) bool {
			text := strings.TrimSpace(cell.Text())
			if text == "" {
				return true
			}
			v, err := strconv.Atoi(text)
			if err != nil || !game.ValidTile(v) {
				parseErr = fmt.Errorf("%w: cell (%d,%d) = %q", game.ErrInvalidBoardState, r, c, text)
				return false
			}
			st.Board[r][c] = v
			return true
		})
		return parseErr == nil
	})
	if parseErr != nil {
		return State{Score: st.Score, HighScore: st.HighScore}, parseErr
	}
	return st, nil
}

// intText reads the first integer in a node's text, 0 if none.
func intText(s *goquery.Selection) int {
	fields := strings.FieldsFunc(s.Text(), func(r rune) bool { return r < '0' || r > '9' })
	if len(fields) == 0 {
		return 0
	}
	v, _ := strconv.Atoi(fields[0])
	return v
}
