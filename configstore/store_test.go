package configstore

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileIsEmpty(t *testing.T) {
	t.Parallel()

	store, err := Load(filepath.Join(t.TempDir(), "config.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if _, ok := store.Get(KeyDevMode); ok {
		t.Fatalf("Get() found value in empty config")
	}
	if got := store.GetInt64(KeyRoleMessageID); got != 0 {
		t.Fatalf("GetInt64() = %d, want 0", got)
	}
}

func TestSetPersistsAcrossReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := store.Set(KeyRoleMessageID, int64(1146693727856242789)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after Set error = %v", err)
	}
	if got := reloaded.GetInt64(KeyRoleMessageID); got != 1146693727856242789 {
		t.Fatalf("GetInt64() after reload = %d, want 1146693727856242789", got)
	}
}

func TestSetRollsBackOnWriteFailure(t *testing.T) {
	t.Parallel()

	// Point the store at a path whose parent is a file, so the
	// atomic write cannot create its temp file.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	store := &Store{path: filepath.Join(blocker, "config.json"), values: map[string]any{}}

	if err := store.Set(KeyRoleMessageID, int64(42)); err == nil {
		t.Fatalf("Set() error = nil, want write failure")
	}
	if _, ok := store.Get(KeyRoleMessageID); ok {
		t.Fatalf("Get() found value after failed Set, want rollback")
	}
}

func TestTypedAccessors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.json")
	doc := `{
		"dev_mode": true,
		"default_rule_msg": "pick a role:\n",
		"role_message_id": 1146693727856242789,
		"test_command_channel_id": "987654321098765432",
		"emoji_ids": {"555": "sunlight"}
	}`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	store, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if !store.GetBool(KeyDevMode) {
		t.Fatalf("GetBool(dev_mode) = false, want true")
	}
	if got := store.GetString(KeyDefaultRuleMsg); got != "pick a role:\n" {
		t.Fatalf("GetString() = %q", got)
	}
	if got := store.GetInt64(KeyRoleMessageID); got != 1146693727856242789 {
		t.Fatalf("GetInt64(role_message_id) = %d, want full precision", got)
	}
	// Digit strings are accepted for integer-like keys.
	if got := store.GetInt64(KeyTestCommandChannelID); got != 987654321098765432 {
		t.Fatalf("GetInt64(test_command_channel_id) = %d", got)
	}
	emojis := store.GetMap(KeyEmojiIDs)
	if name, _ := emojis["555"].(string); name != "sunlight" {
		t.Fatalf("GetMap(emoji_ids)[555] = %v, want sunlight", emojis["555"])
	}
	if m := store.GetMap(KeyEmojiToRole); len(m) != 0 {
		t.Fatalf("GetMap(absent) = %v, want empty", m)
	}
}
