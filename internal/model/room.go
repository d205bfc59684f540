package model

import "time"

// TimeFormat is the wall-clock layout stored in a room's lastCheckedTime.
const TimeFormat = "2006-01-02 15:04"

// Timestamp formats t the way lastCheckedTime is persisted.
// Local wall clock, minute precision.
func Timestamp(t time.Time) string {
	return t.Format(TimeFormat)
}

// Item is a tracked object inside a room. Item IDs are positional
// ("INV-1", "INV-2", ...) and reassigned whenever the admin saves a room,
// so only the barcode identifies an item reliably.
type Item struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"required"`
	QRCode string `json:"qrCode" validate:"required"`
}

// Room is a named location with an inventory list and the items that
// failed their last verification walk. Rooms are stored and transferred
// as whole documents; PUT replaces everything.
type Room struct {
	ID              string `json:"id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	LastCheckedTime string `json:"lastCheckedTime"`
	Inventory       []Item `json:"inventory"`
	MissedItems     []Item `json:"missedItems"`
}

// RoomRef identifies a room in existence-check responses.
type RoomRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Clone returns a deep copy of the room.
func (r Room) Clone() Room {
	c := r
	c.Inventory = append([]Item(nil), r.Inventory...)
	c.MissedItems = append([]Item(nil), r.MissedItems...)
	return c
}

// AppendMissed appends item to missed, first dropping any existing entry
// with the same barcode so the missed list never holds duplicates.
func AppendMissed(missed []Item, item Item) []Item {
	out := make([]Item, 0, len(missed)+1)
	for _, m := range missed {
		if m.QRCode != item.QRCode {
			out = append(out, m)
		}
	}
	return append(out, item)
}
