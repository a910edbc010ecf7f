package prefs

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ltg-uic/beaconsync/internal/logger"
)

// Well-known keys. The preference store is outside the transactional stores:
// plain key-value, last write wins, loaded once at process start.
const (
	KeySectionName   = "sectionName"
	KeyGroupIndex    = "groupIndex"
	KeyActivity      = "activity"
	KeyRoom          = "room"
	KeyChannelList   = "channelList"
	KeyChannelNames  = "channelNames"
	KeySpeciesNames  = "speciesNames"
	KeyCurrentRoster = "currentRoster"
)

type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]any
	log    *logger.Logger
}

// Open loads the preference file, creating an empty store when the file does
// not exist yet.
func Open(path string, log *logger.Logger) (*Store, error) {
	s := &Store{
		path:   path,
		values: map[string]any{},
		log:    log.With("service", "PrefStore"),
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read prefs: %w", err)
	}
	if err := yaml.Unmarshal(raw, &s.values); err != nil {
		return nil, fmt.Errorf("parse prefs: %w", err)
	}
	if s.values == nil {
		s.values = map[string]any{}
	}
	return s, nil
}

func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	raw, err := yaml.Marshal(s.values)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("failed to encode prefs", "key", key, "error", err)
		return
	}
	if err := os.WriteFile(s.path, raw, 0o644); err != nil {
		s.log.Warn("failed to persist prefs", "key", key, "error", err)
	}
}

func (s *Store) GetString(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	return str, ok
}

func (s *Store) GetInt(key string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func (s *Store) GetStrings(key string) ([]string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false
	}
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}
