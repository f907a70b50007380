// Package rolesync keeps a single role-selection message in a guild
// channel consistent with the configured emoji→role bindings, and
// turns reaction events on that message into role grants and revokes.
package rolesync

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var ErrInvalidBinding = errors.New("rolesync: invalid binding")

// Binding ties a custom emoji (the reaction marker) to a guild role.
type Binding struct {
	MarkerID   string
	MarkerName string
	RoleID     int64
	RoleName   string
}

// Render returns the emoji in Discord's inline custom-emoji form.
func (b Binding) Render() string {
	return "<:" + b.MarkerName + ":" + b.MarkerID + ">"
}

// Table is the read-only emoji→role view built once from the
// configuration maps. Iteration order is fixed at construction so
// rendered content is deterministic.
type Table struct {
	byMarker map[string]Binding
	ordered  []Binding
}

// NewTable validates the emoji_ids and emoji_to_role config maps
// eagerly: a marker without a display name, a malformed role entry,
// or a non-positive role id fails construction instead of surfacing
// later on some event path.
func NewTable(emojiIDs, emojiToRole map[string]any) (*Table, error) {
	byMarker := make(map[string]Binding, len(emojiToRole))
	for markerID, rawEntry := range emojiToRole {
		markerID = strings.TrimSpace(markerID)
		if markerID == "" {
			return nil, fmt.Errorf("%w: empty marker id", ErrInvalidBinding)
		}
		markerName, err := stringValue(emojiIDs[markerID])
		if err != nil || markerName == "" {
			return nil, fmt.Errorf("%w: marker %s has no emoji name", ErrInvalidBinding, markerID)
		}
		entry, ok := rawEntry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: marker %s entry is not an object", ErrInvalidBinding, markerID)
		}
		roleID, err := int64Value(entry["role_id"])
		if err != nil || roleID <= 0 {
			return nil, fmt.Errorf("%w: marker %s has invalid role_id", ErrInvalidBinding, markerID)
		}
		roleName, err := stringValue(entry["role_name"])
		if err != nil || roleName == "" {
			return nil, fmt.Errorf("%w: marker %s has no role_name", ErrInvalidBinding, markerID)
		}
		byMarker[markerID] = Binding{
			MarkerID:   markerID,
			MarkerName: markerName,
			RoleID:     roleID,
			RoleName:   roleName,
		}
	}

	ordered := make([]Binding, 0, len(byMarker))
	for _, b := range byMarker {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].MarkerID < ordered[j].MarkerID })

	return &Table{byMarker: byMarker, ordered: ordered}, nil
}

func (t *Table) Lookup(markerID string) (Binding, bool) {
	b, ok := t.byMarker[strings.TrimSpace(markerID)]
	return b, ok
}

// All returns the bindings in their fixed iteration order. The slice
// is a copy; callers may not mutate table state through it.
func (t *Table) All() []Binding {
	return append([]Binding(nil), t.ordered...)
}

func (t *Table) Len() int {
	return len(t.ordered)
}

func stringValue(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("value %v is not a string", v)
	}
	return strings.TrimSpace(s), nil
}

func int64Value(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("value %v is not integer-like", v)
	}
}
