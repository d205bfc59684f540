package model

import (
	"testing"
	"time"
)

func TestTimestampFormat(t *testing.T) {
	ts := Timestamp(time.Date(2025, 3, 7, 9, 5, 42, 0, time.Local))
	if ts != "2025-03-07 09:05" {
		t.Errorf("Timestamp = %q, want %q", ts, "2025-03-07 09:05")
	}
}

func TestAppendMissedDeduplicates(t *testing.T) {
	missed := []Item{
		{ID: "INV-1", Name: "Chair", QRCode: "CH-1"},
		{ID: "INV-2", Name: "Monitor", QRCode: "MON-1"},
	}

	// Re-adding an item with an existing barcode replaces the old entry
	// and moves it to the end.
	got := AppendMissed(missed, Item{ID: "INV-5", Name: "Monitor", QRCode: "MON-1"})
	if len(got) != 2 {
		t.Fatalf("expected 2 missed items, got %d", len(got))
	}
	if got[0].QRCode != "CH-1" || got[1].QRCode != "MON-1" {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[1].ID != "INV-5" {
		t.Errorf("expected replacement entry, got %+v", got[1])
	}

	// The input slice is left untouched.
	if missed[1].ID != "INV-2" {
		t.Errorf("input slice mutated: %+v", missed)
	}
}

func TestAppendMissedNewBarcode(t *testing.T) {
	got := AppendMissed(nil, Item{Name: "Desk", QRCode: "DSK-1"})
	if len(got) != 1 || got[0].QRCode != "DSK-1" {
		t.Errorf("unexpected result: %+v", got)
	}
}

func TestRoomClone(t *testing.T) {
	r := Room{
		ID:        "A101",
		Name:      "Lab",
		Inventory: []Item{{ID: "INV-1", Name: "Chair", QRCode: "CH-1"}},
	}
	c := r.Clone()
	c.Inventory[0].Name = "Stool"
	if r.Inventory[0].Name != "Chair" {
		t.Error("Clone shares inventory backing array")
	}
}
