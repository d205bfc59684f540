package api

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Gulaghaa/SDP/internal/model"
	"github.com/Gulaghaa/SDP/internal/store"
)

// RoomDeletedConfirmation is the fixed confirmation string clients look for
// in the DELETE response body.
const RoomDeletedConfirmation = "Room deleted"

// RoomsHandler handles room CRUD and the uniqueness-check endpoints.
type RoomsHandler struct {
	DB *sql.DB
}

// existsResponse is the body of both check endpoints.
type existsResponse struct {
	Exists bool           `json:"exists"`
	Room   *model.RoomRef `json:"room,omitempty"`
}

// List handles GET /rooms.
func (h *RoomsHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := store.ListRooms(r.Context(), h.DB)
	if err != nil {
		log.Error().Err(err).Msg("listing rooms")
		jsonError(w, http.StatusInternalServerError, "failed to list rooms")
		return
	}
	if rooms == nil {
		rooms = []model.Room{}
	}
	jsonResponse(w, http.StatusOK, rooms)
}

// Get handles GET /rooms/{id}.
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := store.GetRoom(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		log.Error().Err(err).Msg("getting room")
		jsonError(w, http.StatusInternalServerError, "failed to get room")
		return
	}
	if room == nil {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}
	jsonResponse(w, http.StatusOK, room)
}

// Create handles POST /rooms. The body is a full room document.
func (h *RoomsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var room model.Room
	if err := decodeJSON(r, &room); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validate.Struct(room); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	msg, err := h.checkBarcodes(r, room)
	if err != nil {
		log.Error().Err(err).Msg("checking barcodes")
		jsonError(w, http.StatusInternalServerError, "failed to check barcodes")
		return
	}
	if msg != "" {
		jsonError(w, http.StatusConflict, msg)
		return
	}

	if room.LastCheckedTime == "" {
		room.LastCheckedTime = model.Timestamp(time.Now())
	}

	err = store.CreateRoom(r.Context(), h.DB, room)
	if errors.Is(err, store.ErrRoomExists) {
		jsonError(w, http.StatusConflict, "room id already exists")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", room.ID).Msg("creating room")
		jsonError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	log.Info().Str("room", room.ID).Int("items", len(room.Inventory)).Msg("room created")
	jsonResponse(w, http.StatusCreated, room)
}

// Replace handles PUT /rooms/{id}. The body replaces the whole document;
// this is how both admin edits and verification results are persisted.
func (h *RoomsHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var room model.Room
	if err := decodeJSON(r, &room); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	room.ID = r.PathValue("id")

	if err := validate.Struct(room); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	msg, err := h.checkBarcodes(r, room)
	if err != nil {
		log.Error().Err(err).Msg("checking barcodes")
		jsonError(w, http.StatusInternalServerError, "failed to check barcodes")
		return
	}
	if msg != "" {
		jsonError(w, http.StatusConflict, msg)
		return
	}

	err = store.ReplaceRoom(r.Context(), h.DB, room)
	if errors.Is(err, store.ErrRoomNotFound) {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", room.ID).Msg("replacing room")
		jsonError(w, http.StatusInternalServerError, "failed to update room")
		return
	}

	jsonResponse(w, http.StatusOK, room)
}

// Delete handles DELETE /rooms/{id}.
func (h *RoomsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	deleted, err := store.DeleteRoom(r.Context(), h.DB, id)
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("deleting room")
		jsonError(w, http.StatusInternalServerError, "failed to delete room")
		return
	}
	if !deleted {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}

	log.Info().Str("room", id).Msg("room deleted")
	jsonResponse(w, http.StatusOK, map[string]string{"message": RoomDeletedConfirmation})
}

// GetInventory handles GET /rooms/{id}/inventory.
func (h *RoomsHandler) GetInventory(w http.ResponseWriter, r *http.Request) {
	room, err := store.GetRoom(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get room")
		return
	}
	if room == nil {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}
	jsonResponse(w, http.StatusOK, room.Inventory)
}

// GetInventoryItem handles GET /rooms/{id}/inventory/{itemId}.
func (h *RoomsHandler) GetInventoryItem(w http.ResponseWriter, r *http.Request) {
	room, err := store.GetRoom(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to get room")
		return
	}
	if room == nil {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}

	itemID := r.PathValue("itemId")
	for _, item := range room.Inventory {
		if item.ID == itemID {
			jsonResponse(w, http.StatusOK, item)
			return
		}
	}
	jsonError(w, http.StatusNotFound, "item not found")
}

// AddInventory handles POST /rooms/{id}/inventory: appends one item to the
// room's inventory. The barcode must be unused anywhere in the system,
// including this room. An empty item ID gets a position-derived one.
func (h *RoomsHandler) AddInventory(w http.ResponseWriter, r *http.Request) {
	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(item); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	id := r.PathValue("id")
	ref, err := store.BarcodeExists(r.Context(), h.DB, item.QRCode)
	if err != nil {
		log.Error().Err(err).Msg("checking barcode")
		jsonError(w, http.StatusInternalServerError, "failed to check barcode")
		return
	}
	if ref != nil {
		jsonError(w, http.StatusConflict, "barcode "+item.QRCode+" already used in room "+ref.ID)
		return
	}

	stored, err := store.AddInventoryItem(r.Context(), h.DB, id, item, model.Timestamp(time.Now()))
	if errors.Is(err, store.ErrRoomNotFound) {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("adding inventory item")
		jsonError(w, http.StatusInternalServerError, "failed to add inventory item")
		return
	}

	log.Info().Str("room", id).Str("item", stored.Name).Msg("inventory item added")
	jsonResponse(w, http.StatusCreated, stored)
}

// AddMissed handles POST /rooms/{id}/missed.
func (h *RoomsHandler) AddMissed(w http.ResponseWriter, r *http.Request) {
	var item model.Item
	if err := decodeJSON(r, &item); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(item); err != nil {
		jsonError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	id := r.PathValue("id")
	err := store.AddMissedItem(r.Context(), h.DB, id, item, model.Timestamp(time.Now()))
	if errors.Is(err, store.ErrRoomNotFound) {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("adding missed item")
		jsonError(w, http.StatusInternalServerError, "failed to add missed item")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Missed item added"})
}

// ClearMissed handles DELETE /rooms/{id}/missed.
func (h *RoomsHandler) ClearMissed(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	ok, err := store.ClearMissedItems(r.Context(), h.DB, id)
	if err != nil {
		log.Error().Err(err).Str("room", id).Msg("clearing missed items")
		jsonError(w, http.StatusInternalServerError, "failed to clear missed items")
		return
	}
	if !ok {
		jsonError(w, http.StatusNotFound, "room not found")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "Missed items cleared"})
}

// CheckBarcode handles GET /inventory/check-barcode/{barcode}.
func (h *RoomsHandler) CheckBarcode(w http.ResponseWriter, r *http.Request) {
	ref, err := store.BarcodeExists(r.Context(), h.DB, r.PathValue("barcode"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check barcode")
		return
	}
	jsonResponse(w, http.StatusOK, existsResponse{Exists: ref != nil, Room: ref})
}

// CheckRoomID handles GET /inventory/check-room-id/{roomId}.
func (h *RoomsHandler) CheckRoomID(w http.ResponseWriter, r *http.Request) {
	ref, err := store.RoomExists(r.Context(), h.DB, r.PathValue("roomId"))
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to check room id")
		return
	}
	jsonResponse(w, http.StatusOK, existsResponse{Exists: ref != nil, Room: ref})
}

// checkBarcodes enforces global barcode uniqueness for a room being written:
// no duplicates within the payload, and no inventory barcode held by another
// room. Returns a client-facing message, or "" if the payload is clean.
// A check that cannot be completed is an error; it must not admit a
// possible duplicate.
func (h *RoomsHandler) checkBarcodes(r *http.Request, room model.Room) (string, error) {
	seen := make(map[string]bool, len(room.Inventory))
	for _, item := range room.Inventory {
		if seen[item.QRCode] {
			return "duplicate barcode in inventory: " + item.QRCode, nil
		}
		seen[item.QRCode] = true

		ref, err := store.BarcodeExists(r.Context(), h.DB, item.QRCode)
		if err != nil {
			return "", err
		}
		if ref != nil && ref.ID != room.ID {
			return "barcode " + item.QRCode + " already used in room " + ref.ID, nil
		}
	}
	return "", nil
}
