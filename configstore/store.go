// Package configstore holds the bot's persistent key/value
// configuration document. The document is the single source of truth
// for the role message id; every Set rewrites the whole file
// atomically so a crash never leaves a torn config behind.
package configstore

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"

	"github.com/neural022/discord-bot-application/internal/fsstore"
)

// Recognized configuration keys.
const (
	KeyDevMode              = "dev_mode"
	KeyDefaultRuleMsg       = "default_rule_msg"
	KeyRoleMessageID        = "role_message_id"
	KeyEmojiIDs             = "emoji_ids"
	KeyEmojiToRole          = "emoji_to_role"
	KeyTestCommandChannelID = "test_command_channel_id"
	KeyBotCommandChannelID  = "bot_command_channel_id"
)

type Store struct {
	path string

	mu     sync.Mutex
	values map[string]any
}

// Load reads the configuration document at path. A missing file is
// not an error; it yields an empty configuration.
func Load(path string) (*Store, error) {
	values := map[string]any{}
	if _, err := fsstore.ReadJSONNumbers(path, &values); err != nil {
		return nil, err
	}
	return &Store{path: path, values: values}, nil
}

func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) GetString(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

func (s *Store) GetBool(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// GetInt64 reads an integer-like value. The backing document may hold
// it as a JSON number, a digit string, or a native int64 set earlier
// in the same process.
func (s *Store) GetInt64(key string) int64 {
	v, ok := s.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case json.Number:
		parsed, err := n.Int64()
		if err != nil {
			return 0
		}
		return parsed
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	default:
		return 0
	}
}

// GetMap reads a nested JSON object. Absent or mismatched values
// yield an empty map.
func (s *Store) GetMap(key string) map[string]any {
	v, ok := s.Get(key)
	if !ok {
		return map[string]any{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// Set stores the value and persists the whole document. If the write
// fails, the in-memory value is rolled back so memory never claims
// state the disk does not have.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.values[key]
	s.values[key] = value
	if err := fsstore.WriteJSONAtomic(s.path, s.values, fsstore.FileOptions{}); err != nil {
		if existed {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}
