package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gulaghaa/SDP/internal/model"
)

var buildTime = time.Date(2024, 6, 10, 14, 45, 0, 0, time.UTC)

// fakeChecker answers uniqueness checks from in-memory sets and counts
// network round trips.
type fakeChecker struct {
	barcodes map[string]*model.RoomRef
	roomIDs  map[string]*model.RoomRef
	calls    int
	err      error
}

func (c *fakeChecker) BarcodeExists(_ context.Context, code string) (bool, *model.RoomRef, error) {
	c.calls++
	if c.err != nil {
		return false, nil, c.err
	}
	ref, ok := c.barcodes[code]
	return ok, ref, nil
}

func (c *fakeChecker) RoomIDExists(_ context.Context, id string) (bool, *model.RoomRef, error) {
	c.calls++
	if c.err != nil {
		return false, nil, c.err
	}
	ref, ok := c.roomIDs[id]
	return ok, ref, nil
}

func validDraft() *Draft {
	return &Draft{
		RoomID:   "C303",
		RoomName: "Storage",
		Items: []ItemInput{
			{Name: "Shelf", QRCode: "SH-1"},
			{Name: "Cabinet", QRCode: "CB-2"},
		},
	}
}

func TestBuildNewRoom(t *testing.T) {
	room, err := validDraft().Build(context.Background(), &fakeChecker{}, buildTime)
	require.NoError(t, err)

	assert.Equal(t, "C303", room.ID)
	assert.Equal(t, "Storage", room.Name)
	assert.Equal(t, "2024-06-10 14:45", room.LastCheckedTime)
	require.Len(t, room.Inventory, 2)
	assert.Equal(t, "INV-1", room.Inventory[0].ID)
	assert.Equal(t, "INV-2", room.Inventory[1].ID)
	assert.Equal(t, []model.Item{}, room.MissedItems)
}

func TestBuildTrimsFields(t *testing.T) {
	d := validDraft()
	d.RoomID = "  C303 "
	d.Items[0] = ItemInput{Name: " Shelf ", QRCode: " SH-1\t"}

	room, err := d.Build(context.Background(), &fakeChecker{}, buildTime)
	require.NoError(t, err)
	assert.Equal(t, "C303", room.ID)
	assert.Equal(t, "Shelf", room.Inventory[0].Name)
	assert.Equal(t, "SH-1", room.Inventory[0].QRCode)
}

func TestBuildEmptyFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Draft)
		index  int
		field  string
	}{
		{"room id", func(d *Draft) { d.RoomID = "  " }, -1, "room ID"},
		{"room name", func(d *Draft) { d.RoomName = "" }, -1, "room name"},
		{"item name", func(d *Draft) { d.Items[1].Name = "" }, 1, "name"},
		{"item barcode", func(d *Draft) { d.Items[0].QRCode = " " }, 0, "barcode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.mutate(d)
			chk := &fakeChecker{}

			_, err := d.Build(context.Background(), chk, buildTime)
			var fieldErr *FieldError
			require.ErrorAs(t, err, &fieldErr)
			assert.Equal(t, tt.index, fieldErr.Index)
			assert.Equal(t, tt.field, fieldErr.Field)
			assert.Zero(t, chk.calls, "local validation must run before any network call")
		})
	}
}

func TestBuildNoItems(t *testing.T) {
	d := validDraft()
	d.Items = nil

	_, err := d.Build(context.Background(), &fakeChecker{}, buildTime)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestBuildLocalDuplicateBarcode(t *testing.T) {
	d := validDraft()
	d.Items[1].QRCode = "SH-1"
	chk := &fakeChecker{}

	_, err := d.Build(context.Background(), chk, buildTime)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "SH-1", conflict.Value)
	assert.Zero(t, chk.calls, "duplicates within the draft are caught locally")
}

func TestBuildRoomIDTaken(t *testing.T) {
	chk := &fakeChecker{roomIDs: map[string]*model.RoomRef{
		"C303": {ID: "C303", Name: "Old Storage"},
	}}

	_, err := validDraft().Build(context.Background(), chk, buildTime)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "room ID", conflict.Field)
	assert.Equal(t, "Old Storage", conflict.Room.Name)
}

func TestBuildBarcodeTakenElsewhere(t *testing.T) {
	chk := &fakeChecker{barcodes: map[string]*model.RoomRef{
		"CB-2": {ID: "A100", Name: "Office"},
	}}

	_, err := validDraft().Build(context.Background(), chk, buildTime)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "barcode", conflict.Field)
	assert.Equal(t, "CB-2", conflict.Value)
}

func TestBuildCheckerFailure(t *testing.T) {
	chk := &fakeChecker{err: errors.New("network down")}

	_, err := validDraft().Build(context.Background(), chk, buildTime)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoItems)
}

func TestEditRoom(t *testing.T) {
	existing := model.Room{
		ID:              "C303",
		Name:            "Storage",
		LastCheckedTime: "2024-01-01 08:00",
		Inventory: []model.Item{
			{ID: "INV-1", Name: "Shelf", QRCode: "SH-1"},
		},
		MissedItems: []model.Item{
			{ID: "INV-9", Name: "Ladder", QRCode: "LD-9"},
		},
	}

	d := EditRoom(existing)
	require.True(t, d.IsEdit())
	d.AddItem()
	d.Items[1] = ItemInput{Name: "Cabinet", QRCode: "CB-2"}

	// SH-1 belongs to this room already; only CB-2 needs a server check,
	// and the room ID is not re-checked on edit.
	chk := &fakeChecker{barcodes: map[string]*model.RoomRef{
		"SH-1": {ID: "C303", Name: "Storage"},
	}}
	room, err := d.Build(context.Background(), chk, buildTime)
	require.NoError(t, err)
	assert.Equal(t, 1, chk.calls)

	require.Len(t, room.Inventory, 2)
	assert.Equal(t, "INV-2", room.Inventory[1].ID)
	assert.Equal(t, "2024-06-10 14:45", room.LastCheckedTime)
	require.Len(t, room.MissedItems, 1, "missed items survive an edit")
	assert.Equal(t, "Ladder", room.MissedItems[0].Name)
}

func TestRemoveItem(t *testing.T) {
	d := validDraft()
	d.RemoveItem(0)
	require.Len(t, d.Items, 1)
	assert.Equal(t, "Cabinet", d.Items[0].Name)

	d.RemoveItem(5)
	assert.Len(t, d.Items, 1)
}
