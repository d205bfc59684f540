package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Gulaghaa/SDP/internal/model"
)

// Sentinel errors callers branch on.
var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
)

// room_items list discriminators.
const (
	listInventory = "inventory"
	listMissed    = "missed"
)

// CreateRoom inserts a room with its inventory and missed items.
// Returns ErrRoomExists if the room ID is already taken.
func CreateRoom(ctx context.Context, db *sql.DB, room model.Room) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE id = ?`, room.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking room id: %w", err)
	}
	if exists > 0 {
		return ErrRoomExists
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO rooms (id, name, last_checked) VALUES (?, ?, ?)`,
		room.ID, room.Name, room.LastCheckedTime,
	)
	if err != nil {
		return fmt.Errorf("inserting room: %w", err)
	}

	if err := insertItems(ctx, tx, room); err != nil {
		return err
	}

	return tx.Commit()
}

// GetRoom returns a room document by ID, or nil if it doesn't exist.
func GetRoom(ctx context.Context, db *sql.DB, id string) (*model.Room, error) {
	room := &model.Room{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name, last_checked FROM rooms WHERE id = ?`, id,
	).Scan(&room.ID, &room.Name, &room.LastCheckedTime)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting room: %w", err)
	}

	if err := loadItems(ctx, db, room); err != nil {
		return nil, err
	}
	return room, nil
}

// ListRooms returns all rooms with their item lists.
func ListRooms(ctx context.Context, db *sql.DB) ([]model.Room, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, last_checked FROM rooms ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	defer rows.Close()

	var rooms []model.Room
	for rows.Next() {
		var room model.Room
		if err := rows.Scan(&room.ID, &room.Name, &room.LastCheckedTime); err != nil {
			return nil, fmt.Errorf("scanning room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range rooms {
		if err := loadItems(ctx, db, &rooms[i]); err != nil {
			return nil, err
		}
	}
	return rooms, nil
}

// ReplaceRoom replaces a room document wholesale: name, timestamp, and both
// item lists. Returns ErrRoomNotFound if the room doesn't exist.
func ReplaceRoom(ctx context.Context, db *sql.DB, room model.Room) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE rooms SET name = ?, last_checked = ? WHERE id = ?`,
		room.Name, room.LastCheckedTime, room.ID,
	)
	if err != nil {
		return fmt.Errorf("updating room: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking room update: %w", err)
	}
	if n == 0 {
		return ErrRoomNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM room_items WHERE room_id = ?`, room.ID); err != nil {
		return fmt.Errorf("clearing room items: %w", err)
	}

	if err := insertItems(ctx, tx, room); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteRoom removes a room and its items. Reports whether a room was deleted.
func DeleteRoom(ctx context.Context, db *sql.DB, id string) (bool, error) {
	result, err := db.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("deleting room: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking room delete: %w", err)
	}
	return n > 0, nil
}

// AddMissedItem appends an item to a room's missed list, deduplicating by
// barcode, and stamps the room's last-checked time.
func AddMissedItem(ctx context.Context, db *sql.DB, roomID string, item model.Item, checkedAt string) error {
	room, err := GetRoom(ctx, db, roomID)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}

	room.MissedItems = model.AppendMissed(room.MissedItems, item)
	room.LastCheckedTime = checkedAt
	return ReplaceRoom(ctx, db, *room)
}

// AddInventoryItem appends an item to a room's inventory, assigning a
// position-derived ID when the item carries none, and stamps the room's
// last-checked time. Returns the item as stored.
func AddInventoryItem(ctx context.Context, db *sql.DB, roomID string, item model.Item, checkedAt string) (*model.Item, error) {
	room, err := GetRoom(ctx, db, roomID)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}

	if item.ID == "" {
		item.ID = fmt.Sprintf("INV-%d", len(room.Inventory)+1)
	}
	room.Inventory = append(room.Inventory, item)
	room.LastCheckedTime = checkedAt
	if err := ReplaceRoom(ctx, db, *room); err != nil {
		return nil, err
	}
	return &item, nil
}

// ClearMissedItems empties a room's missed list. Reports whether the room exists.
func ClearMissedItems(ctx context.Context, db *sql.DB, roomID string) (bool, error) {
	result, err := db.ExecContext(ctx,
		`DELETE FROM room_items WHERE room_id = ? AND list = ?`, roomID, listMissed,
	)
	if err != nil {
		return false, fmt.Errorf("clearing missed items: %w", err)
	}
	// Distinguish "no missed items" from "no such room".
	_ = result
	var exists int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rooms WHERE id = ?`, roomID).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking room: %w", err)
	}
	return exists > 0, nil
}

// BarcodeExists reports which room (if any) holds an inventory item with the
// given barcode. Only active inventory counts; missed items do not reserve
// their barcode.
func BarcodeExists(ctx context.Context, db *sql.DB, barcode string) (*model.RoomRef, error) {
	ref := &model.RoomRef{}
	err := db.QueryRowContext(ctx,
		`SELECT r.id, r.name FROM room_items ri
		 JOIN rooms r ON r.id = ri.room_id
		 WHERE ri.qr_code = ? AND ri.list = ?
		 LIMIT 1`, barcode, listInventory,
	).Scan(&ref.ID, &ref.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking barcode: %w", err)
	}
	return ref, nil
}

// RoomExists reports whether a room ID is taken, returning its reference.
func RoomExists(ctx context.Context, db *sql.DB, id string) (*model.RoomRef, error) {
	ref := &model.RoomRef{}
	err := db.QueryRowContext(ctx,
		`SELECT id, name FROM rooms WHERE id = ?`, id,
	).Scan(&ref.ID, &ref.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking room id: %w", err)
	}
	return ref, nil
}

// insertItems writes both item lists for a room inside tx.
func insertItems(ctx context.Context, tx *sql.Tx, room model.Room) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO room_items (room_id, list, position, item_id, name, qr_code)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing item insert: %w", err)
	}
	defer stmt.Close()

	for pos, item := range room.Inventory {
		if _, err := stmt.ExecContext(ctx, room.ID, listInventory, pos, item.ID, item.Name, item.QRCode); err != nil {
			return fmt.Errorf("inserting inventory item: %w", err)
		}
	}
	for pos, item := range room.MissedItems {
		if _, err := stmt.ExecContext(ctx, room.ID, listMissed, pos, item.ID, item.Name, item.QRCode); err != nil {
			return fmt.Errorf("inserting missed item: %w", err)
		}
	}
	return nil
}

// loadItems fills a room's inventory and missed lists in stored order.
func loadItems(ctx context.Context, db *sql.DB, room *model.Room) error {
	rows, err := db.QueryContext(ctx,
		`SELECT list, item_id, name, qr_code FROM room_items
		 WHERE room_id = ? ORDER BY list, position`, room.ID,
	)
	if err != nil {
		return fmt.Errorf("loading room items: %w", err)
	}
	defer rows.Close()

	room.Inventory = []model.Item{}
	room.MissedItems = []model.Item{}
	for rows.Next() {
		var list string
		var item model.Item
		if err := rows.Scan(&list, &item.ID, &item.Name, &item.QRCode); err != nil {
			return fmt.Errorf("scanning room item: %w", err)
		}
		if list == listMissed {
			room.MissedItems = append(room.MissedItems, item)
		} else {
			room.Inventory = append(room.Inventory, item)
		}
	}
	return rows.Err()
}
