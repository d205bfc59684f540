// Package verify drives a room verification walk: each inventory item is
// checked by scanning its barcode and then confirming its physical presence
// through object detection. Items that fail either check are relocated to
// the room's missed list.
//
// A Session tracks per-item check state for one walk. The state is local to
// the session; the server only ever sees whole-room updates, and those are
// committed locally only after the server accepted them, so local and
// remote state cannot diverge.
package verify

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Gulaghaa/SDP/internal/model"
)

// State of one inventory item within a walk session.
type State int

const (
	// Unverified: neither check performed.
	Unverified State = iota
	// BarcodeOnly: barcode matched, object detection pending.
	BarcodeOnly
	// Verified: both checks passed.
	Verified
)

func (s State) String() string {
	switch s {
	case BarcodeOnly:
		return "barcode-only"
	case Verified:
		return "verified"
	default:
		return "unverified"
	}
}

// Sentinel errors callers branch on.
var (
	ErrNoSuchItem      = errors.New("no such item")
	ErrAlreadyVerified = errors.New("item is already verified")
	ErrBarcodeFirst    = errors.New("barcode must be verified first")
)

// RoomWriter persists a replaced room document. The REST client implements
// it; tests substitute fakes.
type RoomWriter interface {
	UpdateRoom(ctx context.Context, room model.Room) error
}

type itemChecks struct {
	barcode bool
	object  bool
}

// Session is the verification walk for one room. It is not safe for
// concurrent use; all transitions run on the caller's goroutine.
type Session struct {
	id     string
	writer RoomWriter
	room   model.Room
	checks map[int]*itemChecks
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock substitutes the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger attaches a logger; events carry the session ID.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

// NewSession starts a walk over room, persisting mutations through writer.
// Check state starts empty: reloading a room always restarts verification.
func NewSession(room model.Room, writer RoomWriter, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		writer: writer,
		room:   room.Clone(),
		checks: make(map[int]*itemChecks),
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("session", s.id).Str("room", room.ID).Logger()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Room returns a snapshot of the room as the session sees it.
func (s *Session) Room() model.Room { return s.room.Clone() }

// State returns the verification state of the inventory item at index i.
func (s *Session) State(i int) State {
	c := s.checks[i]
	switch {
	case c == nil || !c.barcode:
		return Unverified
	case c.object:
		return Verified
	default:
		return BarcodeOnly
	}
}

// ScanBarcode compares a scanned code against the item at index i.
// Comparison is case-sensitive after trimming surrounding whitespace on
// both sides. A match records the barcode check and reports true; the
// caller then enters the object-detection sub-flow. A mismatch leaves the
// item untouched. Nothing is persisted either way.
func (s *Session) ScanBarcode(i int, code string) bool {
	if i < 0 || i >= len(s.room.Inventory) {
		return false
	}

	item := s.room.Inventory[i]
	if strings.TrimSpace(item.QRCode) != strings.TrimSpace(code) {
		s.log.Info().Str("item", item.Name).Msg("barcode mismatch")
		return false
	}

	s.check(i).barcode = true
	s.log.Info().Str("item", item.Name).Msg("barcode matched")
	return true
}

// MarkMissing relocates the inventory item at index i to the missed list:
// it is removed from inventory, appended to missed items (replacing any
// stale entry with the same barcode), and the room is persisted
// immediately. Fully verified items cannot be marked missing.
//
// Local state only changes once the server update succeeded.
func (s *Session) MarkMissing(ctx context.Context, i int) error {
	if i < 0 || i >= len(s.room.Inventory) {
		return ErrNoSuchItem
	}
	if s.State(i) == Verified {
		return ErrAlreadyVerified
	}

	item := s.room.Inventory[i]
	updated := s.room.Clone()
	updated.Inventory = append(updated.Inventory[:i], updated.Inventory[i+1:]...)
	updated.MissedItems = model.AppendMissed(updated.MissedItems, item)
	updated.LastCheckedTime = model.Timestamp(s.now())

	if err := s.writer.UpdateRoom(ctx, updated); err != nil {
		return err
	}

	s.room = updated
	s.removeCheck(i)
	s.log.Info().Str("item", item.Name).Msg("item marked missing")
	return nil
}

// ReturnToInventory moves the missed item at index i back into inventory,
// appended at the end, and persists immediately. The returned item starts
// a fresh verification cycle. No barcode-uniqueness re-check is performed;
// the item was validated when it first entered the system.
func (s *Session) ReturnToInventory(ctx context.Context, i int) error {
	if i < 0 || i >= len(s.room.MissedItems) {
		return ErrNoSuchItem
	}

	item := s.room.MissedItems[i]
	updated := s.room.Clone()
	updated.MissedItems = append(updated.MissedItems[:i], updated.MissedItems[i+1:]...)
	updated.Inventory = append(updated.Inventory, item)
	updated.LastCheckedTime = model.Timestamp(s.now())

	if err := s.writer.UpdateRoom(ctx, updated); err != nil {
		return err
	}

	s.room = updated
	s.log.Info().Str("item", item.Name).Msg("item returned to inventory")
	return nil
}

// Unverified lists the inventory items that have not passed both checks.
// Callers show this list for confirmation before Complete.
func (s *Session) Unverified() []model.Item {
	var items []model.Item
	for i, item := range s.room.Inventory {
		if s.State(i) != Verified {
			items = append(items, item)
		}
	}
	return items
}

// Complete finishes the walk: fully verified items stay in inventory (in
// their original order), everything else moves to the missed list, and the
// room is persisted. With all items verified the persisted inventory is
// identical to the original. The session is spent afterwards.
func (s *Session) Complete(ctx context.Context) error {
	updated := s.room.Clone()
	updated.Inventory = updated.Inventory[:0]

	for i, item := range s.room.Inventory {
		if s.State(i) == Verified {
			updated.Inventory = append(updated.Inventory, item)
		} else {
			updated.MissedItems = model.AppendMissed(updated.MissedItems, item)
		}
	}
	updated.LastCheckedTime = model.Timestamp(s.now())

	if err := s.writer.UpdateRoom(ctx, updated); err != nil {
		return err
	}

	s.room = updated
	s.checks = make(map[int]*itemChecks)
	s.log.Info().
		Int("verified", len(updated.Inventory)).
		Int("missed", len(updated.MissedItems)).
		Msg("verification completed")
	return nil
}

// check returns the mutable check record for item i, creating it if needed.
func (s *Session) check(i int) *itemChecks {
	c := s.checks[i]
	if c == nil {
		c = &itemChecks{}
		s.checks[i] = c
	}
	return c
}

// removeCheck drops the record for a removed inventory index and shifts
// the records of the items that slid down one position.
func (s *Session) removeCheck(i int) {
	delete(s.checks, i)
	shifted := make(map[int]*itemChecks, len(s.checks))
	for idx, c := range s.checks {
		if idx > i {
			shifted[idx-1] = c
		} else {
			shifted[idx] = c
		}
	}
	s.checks = shifted
}
