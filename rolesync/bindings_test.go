package rolesync

import (
	"encoding/json"
	"errors"
	"testing"
)

func validMaps() (map[string]any, map[string]any) {
	emojiIDs := map[string]any{
		"555": "sunlight",
		"666": "moonbeam",
	}
	emojiToRole := map[string]any{
		"555": map[string]any{"role_id": json.Number("901"), "role_name": "Gardener"},
		"666": map[string]any{"role_id": json.Number("902"), "role_name": "Stargazer"},
	}
	return emojiIDs, emojiToRole
}

func TestNewTableBuildsBindings(t *testing.T) {
	t.Parallel()

	table, err := NewTable(validMaps())
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	b, ok := table.Lookup("555")
	if !ok {
		t.Fatalf("Lookup(555) not found")
	}
	if b.MarkerName != "sunlight" || b.RoleID != 901 || b.RoleName != "Gardener" {
		t.Fatalf("Lookup(555) = %+v", b)
	}
	if _, ok := table.Lookup("999"); ok {
		t.Fatalf("Lookup(999) found, want not found")
	}
}

func TestNewTableStableOrder(t *testing.T) {
	t.Parallel()

	table, err := NewTable(validMaps())
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	first := table.All()
	for i := 0; i < 10; i++ {
		again := table.All()
		if len(again) != len(first) {
			t.Fatalf("All() len changed: %d vs %d", len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("All() order changed at %d: %+v vs %+v", j, again[j], first[j])
			}
		}
	}
	if first[0].MarkerID != "555" || first[1].MarkerID != "666" {
		t.Fatalf("All() order = %+v, want sorted by marker id", first)
	}
}

func TestNewTableRejectsMalformedEntries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(emojiIDs, emojiToRole map[string]any)
	}{
		{"missing emoji name", func(ids, m map[string]any) { delete(ids, "555") }},
		{"entry not object", func(ids, m map[string]any) { m["555"] = "nope" }},
		{"missing role_id", func(ids, m map[string]any) {
			m["555"] = map[string]any{"role_name": "Gardener"}
		}},
		{"zero role_id", func(ids, m map[string]any) {
			m["555"] = map[string]any{"role_id": json.Number("0"), "role_name": "Gardener"}
		}},
		{"missing role_name", func(ids, m map[string]any) {
			m["555"] = map[string]any{"role_id": json.Number("901")}
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			emojiIDs, emojiToRole := validMaps()
			tc.mutate(emojiIDs, emojiToRole)
			if _, err := NewTable(emojiIDs, emojiToRole); !errors.Is(err, ErrInvalidBinding) {
				t.Fatalf("NewTable() error = %v, want ErrInvalidBinding", err)
			}
		})
	}
}

func TestNewTableEmpty(t *testing.T) {
	t.Parallel()

	table, err := NewTable(map[string]any{}, map[string]any{})
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}
	if table.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", table.Len())
	}
	if got := table.All(); len(got) != 0 {
		t.Fatalf("All() = %v, want empty", got)
	}
}

func TestBindingRender(t *testing.T) {
	t.Parallel()

	b := Binding{MarkerID: "555", MarkerName: "sunlight"}
	if got := b.Render(); got != "<:sunlight:555>" {
		t.Fatalf("Render() = %q, want %q", got, "<:sunlight:555>")
	}
}
