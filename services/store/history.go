package store

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"mkessler/pricewatch/internal/watch"
	"mkessler/pricewatch/logger"
	"mkessler/pricewatch/pkg/errors"
)

// History is the durable record of observed prices: an append-only series
// of observations per item. The previous price used by the notification
// gate is the last recorded entry.
//
// Record may be called from concurrently completing item checks; the
// in-memory mutation is serialized by a mutex. Flush must be called exactly
// once per run, after all checks settle.
type History struct {
	mu      sync.Mutex
	path    string
	logPath string
	series  map[string][]watch.Observation
}

// NewHistory creates a history store. logPath is the CSV price log appended
// on every observation; empty disables it.
func NewHistory(path, logPath string) *History {
	return &History{
		path:    path,
		logPath: logPath,
		series:  make(map[string][]watch.Observation),
	}
}

// Load reads the history file. A missing file is an empty history. Both the
// series schema (name -> [{timestamp, price}]) and the legacy flat schema
// (name -> price) are accepted; flat entries become single-element series.
func (h *History) Load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewConfig(fmt.Sprintf("reading history %s", h.path), err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.NewConfig(fmt.Sprintf("parsing history %s", h.path), err)
	}

	for name, msg := range raw {
		var obs []watch.Observation
		if err := json.Unmarshal(msg, &obs); err == nil {
			h.series[name] = obs
			continue
		}

		var price float64
		if err := json.Unmarshal(msg, &price); err != nil {
			return errors.NewConfig(fmt.Sprintf("parsing history entry %q", name), err)
		}
		h.series[name] = []watch.Observation{{Price: price}}
	}
	return nil
}

// Previous returns the latest recorded price for an item.
func (h *History) Previous(name string) (float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	obs := h.series[name]
	if len(obs) == 0 {
		return 0, false
	}
	return obs[len(obs)-1].Price, true
}

// Record appends an observation. Timestamps within an item's series stay
// non-decreasing: an earlier clock reading is clamped to the last entry.
// The observation is also appended to the CSV price log, best-effort.
func (h *History) Record(name string, price float64, ts time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()

	obs := h.series[name]
	if n := len(obs); n > 0 && ts.Before(obs[n-1].Timestamp) {
		ts = obs[n-1].Timestamp
	}
	h.series[name] = append(obs, watch.Observation{Timestamp: ts, Price: price})

	// Under the lock so the header row is written exactly once.
	h.appendLog(name, price, ts)
}

// Series returns a copy of the observation series for all items, for
// offline chart rendering.
func (h *History) Series() map[string][]watch.Observation {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make(map[string][]watch.Observation, len(h.series))
	for name, obs := range h.series {
		cp := make([]watch.Observation, len(obs))
		copy(cp, obs)
		out[name] = cp
	}
	return out
}

// Flush durably persists the full store. The write is atomic: a crash
// mid-flush never corrupts previously recorded history. Flush failure is
// fatal for the run.
func (h *History) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.MarshalIndent(h.series, "", "  ")
	if err != nil {
		return errors.NewStorage("encoding history", err)
	}
	if err := writeFileAtomic(h.path, data); err != nil {
		return errors.NewStorage(fmt.Sprintf("writing history %s", h.path), err)
	}
	return nil
}

func (h *History) appendLog(name string, price float64, ts time.Time) {
	if h.logPath == "" {
		return
	}

	_, statErr := os.Stat(h.logPath)
	f, err := os.OpenFile(h.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.ForStore().Warn().Err(err).Str("path", h.logPath).Msg("price log unavailable")
		return
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if os.IsNotExist(statErr) {
		cw.Write([]string{"timestamp", "name", "price"})
	}
	cw.Write([]string{ts.Format(time.RFC3339), name, fmt.Sprintf("%.2f", price)})
	cw.Flush()
	if err := cw.Error(); err != nil {
		logger.ForStore().Warn().Err(err).Str("path", h.logPath).Msg("price log write failed")
	}
}
