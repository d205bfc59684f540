package store

import (
	"context"
	"errors"
	"testing"

	"github.com/Gulaghaa/SDP/internal/db"
	"github.com/Gulaghaa/SDP/internal/model"
)

func testRoom() model.Room {
	return model.Room{
		ID:              "A101",
		Name:            "Conference Room",
		LastCheckedTime: "2025-03-07 09:05",
		Inventory: []model.Item{
			{ID: "INV-1", Name: "Monitor", QRCode: "ABC123"},
			{ID: "INV-2", Name: "Chair", QRCode: "CH-44"},
		},
		MissedItems: []model.Item{},
	}
}

func TestCreateAndGetRoom(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := CreateRoom(ctx, database, testRoom()); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}

	room, err := GetRoom(ctx, database, "A101")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if room == nil {
		t.Fatal("expected room, got nil")
	}
	if room.Name != "Conference Room" {
		t.Errorf("expected name 'Conference Room', got %q", room.Name)
	}
	if room.LastCheckedTime != "2025-03-07 09:05" {
		t.Errorf("unexpected lastCheckedTime %q", room.LastCheckedTime)
	}
	if len(room.Inventory) != 2 {
		t.Fatalf("expected 2 inventory items, got %d", len(room.Inventory))
	}
	if room.Inventory[0].QRCode != "ABC123" || room.Inventory[1].QRCode != "CH-44" {
		t.Errorf("inventory order not preserved: %+v", room.Inventory)
	}
	if len(room.MissedItems) != 0 {
		t.Errorf("expected empty missed list, got %+v", room.MissedItems)
	}
}

func TestCreateRoomDuplicateID(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	if err := CreateRoom(ctx, database, testRoom()); err != nil {
		t.Fatalf("CreateRoom: %v", err)
	}
	err := CreateRoom(ctx, database, testRoom())
	if !errors.Is(err, ErrRoomExists) {
		t.Errorf("expected ErrRoomExists, got %v", err)
	}
}

func TestGetRoomMissing(t *testing.T) {
	database := db.NewTestDB(t)

	room, err := GetRoom(context.Background(), database, "nope")
	if err != nil {
		t.Fatalf("GetRoom: %v", err)
	}
	if room != nil {
		t.Errorf("expected nil room, got %+v", room)
	}
}

func TestReplaceRoom(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateRoom(ctx, database, testRoom())

	updated := testRoom()
	updated.Name = "Main Lab"
	updated.LastCheckedTime = "2025-03-08 10:00"
	updated.Inventory = updated.Inventory[:1]
	updated.MissedItems = []model.Item{{ID: "INV-2", Name: "Chair", QRCode: "CH-44"}}

	if err := ReplaceRoom(ctx, database, updated); err != nil {
		t.Fatalf("ReplaceRoom: %v", err)
	}

	room, _ := GetRoom(ctx, database, "A101")
	if room.Name != "Main Lab" {
		t.Errorf("expected updated name, got %q", room.Name)
	}
	if len(room.Inventory) != 1 || len(room.MissedItems) != 1 {
		t.Errorf("expected 1 inventory + 1 missed, got %d + %d",
			len(room.Inventory), len(room.MissedItems))
	}
	if room.MissedItems[0].QRCode != "CH-44" {
		t.Errorf("unexpected missed item: %+v", room.MissedItems[0])
	}
}

func TestReplaceRoomNotFound(t *testing.T) {
	database := db.NewTestDB(t)

	err := ReplaceRoom(context.Background(), database, testRoom())
	if !errors.Is(err, ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestDeleteRoom(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateRoom(ctx, database, testRoom())

	deleted, err := DeleteRoom(ctx, database, "A101")
	if err != nil {
		t.Fatalf("DeleteRoom: %v", err)
	}
	if !deleted {
		t.Error("expected room to be deleted")
	}

	room, _ := GetRoom(ctx, database, "A101")
	if room != nil {
		t.Errorf("expected room gone, got %+v", room)
	}

	deleted, _ = DeleteRoom(ctx, database, "A101")
	if deleted {
		t.Error("expected second delete to report false")
	}
}

func TestAddMissedItemDeduplicates(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateRoom(ctx, database, testRoom())

	item := model.Item{ID: "INV-1", Name: "Monitor", QRCode: "ABC123"}
	if err := AddMissedItem(ctx, database, "A101", item, "2025-03-08 11:00"); err != nil {
		t.Fatalf("AddMissedItem: %v", err)
	}
	if err := AddMissedItem(ctx, database, "A101", item, "2025-03-08 11:05"); err != nil {
		t.Fatalf("AddMissedItem again: %v", err)
	}

	room, _ := GetRoom(ctx, database, "A101")
	if len(room.MissedItems) != 1 {
		t.Errorf("expected 1 missed item after re-insert, got %d", len(room.MissedItems))
	}
	if room.LastCheckedTime != "2025-03-08 11:05" {
		t.Errorf("expected timestamp update, got %q", room.LastCheckedTime)
	}
}

func TestClearMissedItems(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	room := testRoom()
	room.MissedItems = []model.Item{{ID: "INV-9", Name: "Desk", QRCode: "DSK-1"}}
	CreateRoom(ctx, database, room)

	ok, err := ClearMissedItems(ctx, database, "A101")
	if err != nil {
		t.Fatalf("ClearMissedItems: %v", err)
	}
	if !ok {
		t.Error("expected room to exist")
	}

	got, _ := GetRoom(ctx, database, "A101")
	if len(got.MissedItems) != 0 {
		t.Errorf("expected missed list cleared, got %+v", got.MissedItems)
	}
	if len(got.Inventory) != 2 {
		t.Errorf("inventory should be untouched, got %d items", len(got.Inventory))
	}

	ok, _ = ClearMissedItems(ctx, database, "missing-room")
	if ok {
		t.Error("expected false for unknown room")
	}
}

func TestBarcodeExists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	room := testRoom()
	room.MissedItems = []model.Item{{ID: "INV-3", Name: "Lamp", QRCode: "LMP-7"}}
	CreateRoom(ctx, database, room)

	ref, err := BarcodeExists(ctx, database, "ABC123")
	if err != nil {
		t.Fatalf("BarcodeExists: %v", err)
	}
	if ref == nil || ref.ID != "A101" {
		t.Errorf("expected room A101, got %+v", ref)
	}

	// Missed items don't reserve their barcode.
	ref, _ = BarcodeExists(ctx, database, "LMP-7")
	if ref != nil {
		t.Errorf("missed item barcode should not count, got %+v", ref)
	}

	ref, _ = BarcodeExists(ctx, database, "unknown")
	if ref != nil {
		t.Errorf("expected nil for unknown barcode, got %+v", ref)
	}
}

func TestRoomExists(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	CreateRoom(ctx, database, testRoom())

	ref, err := RoomExists(ctx, database, "A101")
	if err != nil {
		t.Fatalf("RoomExists: %v", err)
	}
	if ref == nil || ref.Name != "Conference Room" {
		t.Errorf("expected ref for A101, got %+v", ref)
	}

	ref, _ = RoomExists(ctx, database, "B202")
	if ref != nil {
		t.Errorf("expected nil for unknown room, got %+v", ref)
	}
}
