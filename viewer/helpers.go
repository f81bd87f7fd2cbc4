package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/brensch/tty2048/game"
)

func withCORS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	_ = enc.Encode(v)
}

func parseIntQuery(r *http.Request, key string, def int) int {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	if n < 0 {
		return def
	}
	return n
}

func parseInt64Query(r *http.Request, key string, def int64) int64 {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

// asInts converts a DuckDB list value into ints.
func asInts(v any) []int {
	switch vv := v.(type) {
	case []int32:
		out := make([]int, len(vv))
		for i, x := range vv {
			out[i] = int(x)
		}
		return out
	case []int64:
		out := make([]int, len(vv))
		for i, x := range vv {
			out[i] = int(x)
		}
		return out
	case []any:
		out := make([]int, len(vv))
		for i, x := range vv {
			out[i] = int(asInt64(x))
		}
		return out
	default:
		return nil
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case uint64:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

// asBoard rebuilds a board from a stored cells list.
func asBoard(v any) (game.Board, error) {
	return game.FromCells(asInts(v))
}
