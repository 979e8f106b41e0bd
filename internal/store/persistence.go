package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/domain"
	"github.com/ItsBr0dyy/7TV-Live-Emote-Tracker/internal/metrics"
)

// persistedState is the on-disk format: channel -> username -> record.
type persistedState map[string]map[string]*domain.UserRecord

// Load reads the state file. An absent or unparseable file yields empty
// state, never an error: availability over strictness.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Warn("Failed to read state file, starting empty", "path", s.path, "error", err)
		return
	}

	var state persistedState
	if err := json.Unmarshal(data, &state); err != nil {
		slog.Warn("Failed to parse state file, starting empty", "path", s.path, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for channel, users := range state {
		s.persisted[channel] = users
	}
	slog.Info("State file loaded", "path", s.path, "channels", len(state))
}

// Save flushes all counters to the state file. Live channels overwrite
// their persisted entry; untracked persisted channels are carried along.
func (s *Store) Save() error {
	state := make(persistedState)

	s.mu.RLock()
	for channel, users := range s.persisted {
		state[channel] = users
	}
	channels := make([]*Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		channels = append(channels, ch)
	}
	s.mu.RUnlock()

	for _, ch := range channels {
		users := make(map[string]*domain.UserRecord)
		for _, u := range ch.Users() {
			u := u
			users[u.Username] = &u
		}
		state[ch.Name()] = users
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		metrics.PersistenceFlushesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("marshal state: %w", err)
	}

	if err := writeFileAtomic(s.path, data); err != nil {
		metrics.PersistenceFlushesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("write state file: %w", err)
	}

	metrics.PersistenceFlushesTotal.WithLabelValues("ok").Inc()
	return nil
}

// RunSaver flushes on the given interval until ctx is cancelled, then once
// more on the way out.
func (s *Store) RunSaver(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			if err := s.Save(); err != nil {
				slog.Error("Failed to save state", "error", err)
			}
		case <-ctx.Done():
			if err := s.Save(); err != nil {
				slog.Error("Failed to save state on shutdown", "error", err)
			}
			return
		}
	}
}

// writeFileAtomic writes via temp file and rename so a crash mid-flush never
// corrupts the previous state file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
