// roomcheck is the verification walk client. It logs into the inventory
// service, lets the walker pick a room, and checks each inventory item in
// two steps: a barcode scan followed by camera object detection through the
// detection service. Items that fail either step land on the room's missed
// list.
//
// Frames are read from a capture directory, where the camera tool drops
// JPEG or PNG snapshots; newer files are preferred so detection sees what
// the camera sees now.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/Gulaghaa/SDP/internal/client"
	"github.com/Gulaghaa/SDP/internal/detect"
	"github.com/Gulaghaa/SDP/internal/draft"
	"github.com/Gulaghaa/SDP/internal/imaging"
	"github.com/Gulaghaa/SDP/internal/model"
	"github.com/Gulaghaa/SDP/internal/verify"
)

func main() {
	godotenv.Load()

	fs := flag.NewFlagSet("roomcheck", flag.ExitOnError)
	serverURL := fs.String("server", envOr("INVENTORY_SERVER", "http://localhost:8080"), "inventory service URL")
	detectorURL := fs.String("detector", envOr("INVENTORY_DETECTOR", "http://localhost:5000"), "detection service URL")
	stream := fs.Bool("stream", false, "use the detector's websocket stream instead of HTTP")
	framesDir := fs.String("frames", envOr("INVENTORY_FRAMES", "captures"), "directory the camera writes frames to")
	timeout := fs.Duration("timeout", verify.DefaultTimeout, "per-item detection timeout")
	debug := fs.Bool("debug", false, "log session events to stderr")
	fs.Parse(os.Args[1:])

	logger := zerolog.Nop()
	if *debug {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := &walkApp{
		in:        bufio.NewScanner(os.Stdin),
		api:       client.New(*serverURL, client.WithLogger(logger)),
		log:       logger,
		framesDir: *framesDir,
		timeout:   *timeout,
	}

	transport, closeTransport, err := dialDetector(ctx, *detectorURL, *stream)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: detector unreachable: %v\n", err)
		os.Exit(1)
	}
	if closeTransport != nil {
		defer closeTransport()
	}
	app.detector = transport

	if err := app.run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("\nInterrupted.")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// dialDetector picks the transport for the detection service. The stream
// variant keeps one websocket open for the whole walk.
func dialDetector(ctx context.Context, baseURL string, stream bool) (detect.Transport, func() error, error) {
	if !stream {
		return detect.NewHTTPTransport(baseURL), nil, nil
	}
	wsURL := strings.Replace(baseURL, "http", "ws", 1) + "/stream"
	st, err := detect.DialStream(ctx, wsURL)
	if err != nil {
		return nil, nil, err
	}
	return st, st.Close, nil
}

type walkApp struct {
	in        *bufio.Scanner
	api       *client.Client
	detector  detect.Transport
	log       zerolog.Logger
	framesDir string
	timeout   time.Duration
	admin     bool
}

func (a *walkApp) run(ctx context.Context) error {
	if err := a.login(ctx); err != nil {
		return err
	}

	room, err := a.pickRoom(ctx)
	if err != nil {
		return err
	}

	session := verify.NewSession(room, a.api, verify.WithLogger(a.log))
	if err := a.walk(ctx, session); err != nil {
		return err
	}
	return a.finish(ctx, session)
}

func (a *walkApp) login(ctx context.Context) error {
	for {
		username := a.prompt("Username: ")
		password := a.prompt("Password: ")
		role, err := a.api.Login(ctx, username, password)
		if err == nil {
			a.admin = role == model.RoleAdmin
			return nil
		}
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 401 {
			fmt.Println("Invalid credentials, try again.")
			continue
		}
		return err
	}
}

func (a *walkApp) pickRoom(ctx context.Context) (model.Room, error) {
	for {
		rooms, err := a.api.Rooms(ctx)
		if err != nil {
			return model.Room{}, err
		}

		fmt.Println("\nRooms:")
		for _, r := range rooms {
			fmt.Printf("  %-8s %-24s last checked %s  (%d items, %d missed)\n",
				r.ID, r.Name, r.LastCheckedTime, len(r.Inventory), len(r.MissedItems))
		}
		label := "\nRoom ID to check: "
		if a.admin {
			label = "\nRoom ID to check ('new', 'edit <id>', 'delete <id>'): "
		}

		input := a.prompt(label)
		cmd, arg, _ := strings.Cut(input, " ")
		switch {
		case a.admin && cmd == "new":
			if err := a.editRoom(ctx, draft.NewRoom()); err != nil {
				return model.Room{}, err
			}
			continue
		case a.admin && cmd == "edit":
			room, err := a.api.Room(ctx, strings.TrimSpace(arg))
			if client.IsNotFound(err) {
				fmt.Printf("No room %q.\n", arg)
				continue
			}
			if err != nil {
				return model.Room{}, err
			}
			if err := a.editRoom(ctx, draft.EditRoom(room)); err != nil {
				return model.Room{}, err
			}
			continue
		case a.admin && cmd == "delete":
			msg, err := a.api.DeleteRoom(ctx, strings.TrimSpace(arg))
			if client.IsNotFound(err) {
				fmt.Printf("No room %q.\n", arg)
				continue
			}
			if err != nil {
				return model.Room{}, err
			}
			fmt.Println(msg)
			continue
		}

		if len(rooms) == 0 {
			return model.Room{}, errors.New("no rooms registered")
		}
		room, err := a.api.Room(ctx, input)
		if client.IsNotFound(err) {
			fmt.Printf("No room %q.\n", input)
			continue
		}
		if err != nil {
			return model.Room{}, err
		}
		return room, nil
	}
}

// editRoom drives the interactive room form: fields first, then inventory
// rows, then validation and submission. Validation failures leave the
// draft intact so single fields can be corrected.
func (a *walkApp) editRoom(ctx context.Context, d *draft.Draft) error {
	if !d.IsEdit() {
		d.RoomID = a.prompt("Room ID: ")
	}
	if name := a.prompt(fmt.Sprintf("Room name [%s]: ", d.RoomName)); name != "" {
		d.RoomName = name
	}

	for {
		fmt.Println("\nInventory:")
		for i, item := range d.Items {
			fmt.Printf("  %d. %-24s barcode %s\n", i+1, item.Name, item.QRCode)
		}
		input := a.prompt("Item command ('add', 'remove <n>', 'save', 'cancel'): ")
		cmd, arg, _ := strings.Cut(input, " ")
		switch cmd {
		case "add":
			d.Items = append(d.Items, draft.ItemInput{
				Name:   a.prompt("  Item name: "),
				QRCode: a.prompt("  Barcode: "),
			})
		case "remove":
			n, err := strconv.Atoi(strings.TrimSpace(arg))
			if err != nil || n < 1 || n > len(d.Items) {
				fmt.Println("Not a valid item number.")
				continue
			}
			d.RemoveItem(n - 1)
		case "cancel":
			fmt.Println("Discarded.")
			return nil
		case "save":
			room, err := d.Build(ctx, a.api, time.Now())
			if err != nil {
				fmt.Printf("Cannot save: %v\n", err)
				continue
			}
			if d.IsEdit() {
				err = a.api.UpdateRoom(ctx, room)
			} else {
				_, err = a.api.CreateRoom(ctx, room)
			}
			if err != nil {
				fmt.Printf("Saving failed: %v\n", err)
				continue
			}
			fmt.Printf("Room %s saved.\n", room.ID)
			return nil
		default:
			fmt.Println("Unknown command.")
		}
	}
}

// walk runs the two-step check over every inventory item. The inventory
// shrinks underneath the loop when items are marked missing, so it always
// re-checks the item at the current index until it is verified or gone.
func (a *walkApp) walk(ctx context.Context, session *verify.Session) error {
	i := 0
	for {
		room := session.Room()
		if i >= len(room.Inventory) {
			return nil
		}
		item := room.Inventory[i]

		if session.State(i) == verify.Verified {
			i++
			continue
		}

		fmt.Printf("\n[%d/%d] %s (barcode %s)\n", i+1, len(room.Inventory), item.Name, item.QRCode)
		input := a.prompt("Scan barcode ('miss' to mark missing, 'skip' to leave for later): ")
		switch input {
		case "miss":
			if err := session.MarkMissing(ctx, i); err != nil {
				if ctx.Err() != nil {
					return err
				}
				// Network failures are transient: nothing was committed,
				// so the same item is offered again.
				fmt.Printf("Could not save: %v\n", err)
				continue
			}
			fmt.Println("Marked missing.")
			continue // next item slid into this index
		case "skip":
			i++
			continue
		}

		if !session.ScanBarcode(i, input) {
			fmt.Println("Barcode does not match, try again.")
			continue
		}

		fmt.Printf("Barcode OK. Point the camera at the %s...\n", item.Name)
		verified, err := session.RunDetection(ctx, i, verify.DetectionConfig{
			Transport: a.detector,
			Frames:    &dirFrames{dir: a.framesDir},
			Timeout:   a.timeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			fmt.Printf("Could not save: %v\n", err)
			continue
		}
		if verified {
			fmt.Println("Verified.")
			i++
		} else {
			fmt.Println("Not detected in time; item moved to the missed list.")
		}
	}
}

// finish shows the unverified leftovers, asks for confirmation, and
// completes the walk.
func (a *walkApp) finish(ctx context.Context, session *verify.Session) error {
	if unverified := session.Unverified(); len(unverified) > 0 {
		fmt.Println("\nStill unverified:")
		for _, item := range unverified {
			fmt.Printf("  - %s\n", item.Name)
		}
		if a.prompt("Mark these as missing and finish? [y/N]: ") != "y" {
			fmt.Println("Walk left unfinished; nothing was changed.")
			return nil
		}
	}

	if err := session.Complete(ctx); err != nil {
		return err
	}

	room := session.Room()
	fmt.Printf("\nDone. %d item(s) verified, %d on the missed list.\n",
		len(room.Inventory), len(room.MissedItems))

	if len(room.MissedItems) > 0 {
		a.reviewMissed(ctx, session)
	}
	return nil
}

// reviewMissed lets the walker move found items back into inventory.
func (a *walkApp) reviewMissed(ctx context.Context, session *verify.Session) {
	for {
		missed := session.Room().MissedItems
		if len(missed) == 0 {
			return
		}
		fmt.Println("\nMissed items:")
		for i, item := range missed {
			fmt.Printf("  %d. %s (barcode %s)\n", i+1, item.Name, item.QRCode)
		}
		input := a.prompt("Number to return to inventory (enter to quit): ")
		if input == "" {
			return
		}
		n, err := strconv.Atoi(input)
		if err != nil || n < 1 || n > len(missed) {
			fmt.Println("Not a valid number.")
			continue
		}
		if err := session.ReturnToInventory(ctx, n-1); err != nil {
			fmt.Printf("Could not return item: %v\n", err)
			continue
		}
		fmt.Println("Returned to inventory. It will need verification on the next walk.")
	}
}

func (a *walkApp) prompt(label string) string {
	fmt.Print(label)
	if !a.in.Scan() {
		return ""
	}
	return strings.TrimSpace(a.in.Text())
}

// dirFrames serves the newest snapshot from the capture directory,
// re-encoded to the detector's frame format.
type dirFrames struct {
	dir string
}

func (d *dirFrames) Frame(_ context.Context) (string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return "", fmt.Errorf("reading capture directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", errors.New("no frames in capture directory")
	}
	sort.Strings(names)

	f, err := os.Open(filepath.Join(d.dir, names[len(names)-1]))
	if err != nil {
		return "", err
	}
	defer f.Close()
	return imaging.EncodeFrame(f)
}
