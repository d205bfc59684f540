// Package draft builds and validates room documents for the admin add and
// edit flows. A draft is edited field by field, then Build validates it
// locally (empty fields, duplicate barcodes within the draft) before
// consulting the server for cross-room uniqueness, assigns positional item
// IDs and a fresh timestamp, and produces the room to submit.
package draft

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Gulaghaa/SDP/internal/model"
)

// ErrNoItems rejects a draft with an empty inventory.
var ErrNoItems = errors.New("a room needs at least one inventory item")

// FieldError marks a blank required field. Index is the inventory row, or
// -1 for the room's own fields.
type FieldError struct {
	Index int
	Field string
}

func (e *FieldError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s must not be empty", e.Field)
	}
	return fmt.Sprintf("item %d: %s must not be empty", e.Index+1, e.Field)
}

// ConflictError marks a value already taken elsewhere in the system.
type ConflictError struct {
	Field string
	Value string
	Room  *model.RoomRef
}

func (e *ConflictError) Error() string {
	if e.Room != nil {
		return fmt.Sprintf("%s %q is already used in room %q", e.Field, e.Value, e.Room.Name)
	}
	return fmt.Sprintf("%s %q is already used", e.Field, e.Value)
}

// Checker answers the uniqueness questions a draft asks before submitting.
// The API client implements it.
type Checker interface {
	BarcodeExists(ctx context.Context, code string) (bool, *model.RoomRef, error)
	RoomIDExists(ctx context.Context, id string) (bool, *model.RoomRef, error)
}

// ItemInput is one inventory row as typed by the admin.
type ItemInput struct {
	Name   string
	QRCode string
}

// Draft is an in-progress room document.
type Draft struct {
	RoomID   string
	RoomName string
	Items    []ItemInput

	existing *model.Room
}

// NewRoom starts a draft for a room that does not exist yet.
func NewRoom() *Draft {
	return &Draft{}
}

// EditRoom starts a draft prefilled from an existing room. The room's ID is
// fixed; missed items are carried over untouched on Build.
func EditRoom(room model.Room) *Draft {
	d := &Draft{
		RoomID:   room.ID,
		RoomName: room.Name,
	}
	for _, item := range room.Inventory {
		d.Items = append(d.Items, ItemInput{Name: item.Name, QRCode: item.QRCode})
	}
	snapshot := room.Clone()
	d.existing = &snapshot
	return d
}

// AddItem appends an empty inventory row.
func (d *Draft) AddItem() {
	d.Items = append(d.Items, ItemInput{})
}

// RemoveItem drops the inventory row at index i.
func (d *Draft) RemoveItem(i int) {
	if i < 0 || i >= len(d.Items) {
		return
	}
	d.Items = append(d.Items[:i], d.Items[i+1:]...)
}

// IsEdit reports whether the draft modifies an existing room.
func (d *Draft) IsEdit() bool { return d.existing != nil }

// Build validates the draft and produces the room document to submit.
// Local checks run first so obviously broken drafts never hit the network:
// no field may be blank, the draft needs at least one item, and no barcode
// may repeat within the draft. Then the server is consulted: a new room's
// ID must be unused, and every barcode must be free of other rooms.
//
// Item IDs are derived from position (INV-1, INV-2, ...) and the timestamp
// is set to now, so editing a room renumbers and restamps it.
func (d *Draft) Build(ctx context.Context, chk Checker, now time.Time) (model.Room, error) {
	id := strings.TrimSpace(d.RoomID)
	name := strings.TrimSpace(d.RoomName)
	if id == "" {
		return model.Room{}, &FieldError{Index: -1, Field: "room ID"}
	}
	if name == "" {
		return model.Room{}, &FieldError{Index: -1, Field: "room name"}
	}
	if len(d.Items) == 0 {
		return model.Room{}, ErrNoItems
	}

	seen := make(map[string]bool, len(d.Items))
	items := make([]model.Item, 0, len(d.Items))
	for i, in := range d.Items {
		itemName := strings.TrimSpace(in.Name)
		code := strings.TrimSpace(in.QRCode)
		if itemName == "" {
			return model.Room{}, &FieldError{Index: i, Field: "name"}
		}
		if code == "" {
			return model.Room{}, &FieldError{Index: i, Field: "barcode"}
		}
		if seen[code] {
			return model.Room{}, &ConflictError{Field: "barcode", Value: code}
		}
		seen[code] = true
		items = append(items, model.Item{
			ID:     fmt.Sprintf("INV-%d", i+1),
			Name:   itemName,
			QRCode: code,
		})
	}

	if d.existing == nil {
		exists, ref, err := chk.RoomIDExists(ctx, id)
		if err != nil {
			return model.Room{}, fmt.Errorf("checking room ID: %w", err)
		}
		if exists {
			return model.Room{}, &ConflictError{Field: "room ID", Value: id, Room: ref}
		}
	}

	for _, item := range items {
		if d.ownsBarcode(item.QRCode) {
			continue // already registered to this room
		}
		exists, ref, err := chk.BarcodeExists(ctx, item.QRCode)
		if err != nil {
			return model.Room{}, fmt.Errorf("checking barcode %q: %w", item.QRCode, err)
		}
		if exists {
			return model.Room{}, &ConflictError{Field: "barcode", Value: item.QRCode, Room: ref}
		}
	}

	room := model.Room{
		ID:              id,
		Name:            name,
		LastCheckedTime: model.Timestamp(now),
		Inventory:       items,
		MissedItems:     []model.Item{},
	}
	if d.existing != nil {
		room.MissedItems = append([]model.Item{}, d.existing.MissedItems...)
	}
	return room, nil
}

// ownsBarcode reports whether the barcode already belongs to the room
// being edited; those skip the server-side uniqueness check.
func (d *Draft) ownsBarcode(code string) bool {
	if d.existing == nil {
		return false
	}
	for _, item := range d.existing.Inventory {
		if item.QRCode == code {
			return true
		}
	}
	return false
}
