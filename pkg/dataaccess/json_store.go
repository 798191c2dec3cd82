package dataaccess

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/wardenlabs/warden/pkg/dataaccess/monitoring"
	"github.com/wardenlabs/warden/pkg/entities"
	"github.com/wardenlabs/warden/pkg/logging"
)

const jsonBackendName = "json"

// File names, one JSON document per concern, each mapping guild ID to record.
const (
	permissionsFile = "permissions.json"
	ticketsFile     = "tickets.json"
	warnsFile       = "warns.json"
)

// jsonStore is the default Store backend. Each concern lives in its own JSON
// file; the whole file is rewritten atomically on every mutation, so readers
// always observe the latest fully-written snapshot.
type jsonStore struct {
	// l is the logger.
	l *slog.Logger

	// dir is the directory holding the JSON files.
	dir string

	// mu guards the in-memory maps.
	mu sync.RWMutex

	permissions map[string]*entities.GuildPermissions
	guilds      map[string]*entities.Guild
	warns       map[string][]*entities.Warn
}

// NewJSONStore creates a Store backed by JSON files under dir, loading any
// existing documents.
func NewJSONStore(l *slog.Logger, dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}

	s := &jsonStore{
		l:           l.With(slog.String(logging.KeyDal, jsonBackendName)),
		dir:         dir,
		permissions: make(map[string]*entities.GuildPermissions),
		guilds:      make(map[string]*entities.Guild),
		warns:       make(map[string][]*entities.Warn),
	}

	if err := loadJSONFile(filepath.Join(dir, permissionsFile), &s.permissions); err != nil {
		return nil, fmt.Errorf("error loading permissions: %w", err)
	}
	if err := loadJSONFile(filepath.Join(dir, ticketsFile), &s.guilds); err != nil {
		return nil, fmt.Errorf("error loading tickets: %w", err)
	}
	if err := loadJSONFile(filepath.Join(dir, warnsFile), &s.warns); err != nil {
		return nil, fmt.Errorf("error loading warns: %w", err)
	}

	return s, nil
}

func loadJSONFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return fmt.Errorf("error reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("invalid JSON in %s: %w", path, err)
	}
	return nil
}

// writeJSONFileAtomic writes data to path via a temp file, fsync and rename,
// so a crash mid-write never leaves a torn document behind.
func writeJSONFileAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling document: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error creating temp file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("error writing temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("error syncing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error closing temp file: %w", err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("error renaming temp file: %w", err)
	}
	return nil
}

// cloneRecord deep-copies src into dst via JSON. Records are handed out as
// copies so callers can mutate them freely before saving.
func cloneRecord(src, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("error cloning record: %w", err)
	}
	return json.Unmarshal(data, dst)
}

func (s *jsonStore) observe(dal, query string) func() {
	monitoring.StoreTotalRequests.WithLabelValues(dal, query, jsonBackendName, "-").Inc()
	t := prometheus.NewTimer(monitoring.StoreLatency.WithLabelValues(dal, query, jsonBackendName, "-"))
	return func() { t.ObserveDuration() }
}

func (s *jsonStore) GetGuildPermissions(_ context.Context, guildID string) (*entities.GuildPermissions, error) {
	done := s.observe(permissionsDalName, "get_guild_permissions")
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.permissions[guildID]
	if !ok {
		return entities.NewGuildPermissions(guildID), nil
	}

	out := new(entities.GuildPermissions)
	if err := cloneRecord(rec, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *jsonStore) SaveGuildPermissions(_ context.Context, rec *entities.GuildPermissions) error {
	done := s.observe(permissionsDalName, "save_guild_permissions")
	defer done()

	stored := new(entities.GuildPermissions)
	if err := cloneRecord(rec, stored); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.permissions[rec.ID] = stored
	return writeJSONFileAtomic(filepath.Join(s.dir, permissionsFile), s.permissions)
}

func (s *jsonStore) GetGuildByID(_ context.Context, guildID string) (*entities.Guild, error) {
	done := s.observe(guildDalName, "get_guild_by_id")
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.guilds[guildID]
	if !ok {
		return entities.NewGuild(guildID), nil
	}

	out := new(entities.Guild)
	if err := cloneRecord(g, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *jsonStore) SaveGuild(_ context.Context, guild *entities.Guild) error {
	done := s.observe(guildDalName, "save_guild")
	defer done()

	stored := new(entities.Guild)
	if err := cloneRecord(guild, stored); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.guilds[guild.ID] = stored
	return writeJSONFileAtomic(filepath.Join(s.dir, ticketsFile), s.guilds)
}

func (s *jsonStore) AddWarn(_ context.Context, warn *entities.Warn) error {
	done := s.observe(warnDalName, "add_warn")
	defer done()

	stored := new(entities.Warn)
	if err := cloneRecord(warn, stored); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.warns[warn.GuildID] = append(s.warns[warn.GuildID], stored)
	return writeJSONFileAtomic(filepath.Join(s.dir, warnsFile), s.warns)
}

func (s *jsonStore) GetWarns(_ context.Context, guildID, userID string) ([]*entities.Warn, error) {
	done := s.observe(warnDalName, "get_warns")
	defer done()

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*entities.Warn
	for _, w := range s.warns[guildID] {
		if w.UserID != userID {
			continue
		}
		c := new(entities.Warn)
		if err := cloneRecord(w, c); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *jsonStore) RemoveWarn(_ context.Context, guildID, userID string, index int) error {
	done := s.observe(warnDalName, "remove_warn")
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := 0
	for i, w := range s.warns[guildID] {
		if w.UserID != userID {
			continue
		}
		if seen == index {
			s.warns[guildID] = append(s.warns[guildID][:i], s.warns[guildID][i+1:]...)
			return writeJSONFileAtomic(filepath.Join(s.dir, warnsFile), s.warns)
		}
		seen++
	}
	return ErrWarnNotFound
}

func (s *jsonStore) ClearWarns(_ context.Context, guildID, userID string) (int, error) {
	done := s.observe(warnDalName, "clear_warns")
	defer done()

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.warns[guildID][:0]
	removed := 0
	for _, w := range s.warns[guildID] {
		if w.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, w)
	}
	if removed == 0 {
		return 0, nil
	}

	s.warns[guildID] = kept
	return removed, writeJSONFileAtomic(filepath.Join(s.dir, warnsFile), s.warns)
}

func (s *jsonStore) Ping(_ context.Context) error {
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("data directory unavailable: %w", err)
	}
	return nil
}
