package api

import (
	"database/sql"
	"net/http"

	"github.com/Gulaghaa/SDP/internal/model"
)

// NewRouter creates the API router with all endpoints registered.
//
// Login is the only public route. Reading rooms and persisting verification
// results (PUT) is open to every authenticated user; creating and deleting
// rooms and managing accounts is admin only.
func NewRouter(db *sql.DB, jwtSecret string) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: db, JWTSecret: jwtSecret}
	roomsHandler := &RoomsHandler{DB: db}
	usersHandler := &UsersHandler{DB: db}

	authMW := AuthMiddleware(jwtSecret, db)
	requireAdmin := RequireRole(model.RoleAdmin)

	// Public: login.
	mux.HandleFunc("POST /login", authHandler.Login)

	// Session management.
	mux.Handle("POST /logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Rooms: read + verification writes (all roles), create/delete (admin).
	mux.Handle("GET /rooms", authMW(http.HandlerFunc(roomsHandler.List)))
	mux.Handle("POST /rooms", authMW(requireAdmin(http.HandlerFunc(roomsHandler.Create))))
	mux.Handle("GET /rooms/{id}", authMW(http.HandlerFunc(roomsHandler.Get)))
	mux.Handle("PUT /rooms/{id}", authMW(http.HandlerFunc(roomsHandler.Replace)))
	mux.Handle("DELETE /rooms/{id}", authMW(requireAdmin(http.HandlerFunc(roomsHandler.Delete))))
	mux.Handle("GET /rooms/{id}/inventory", authMW(http.HandlerFunc(roomsHandler.GetInventory)))
	mux.Handle("POST /rooms/{id}/inventory", authMW(http.HandlerFunc(roomsHandler.AddInventory)))
	mux.Handle("GET /rooms/{id}/inventory/{itemId}", authMW(http.HandlerFunc(roomsHandler.GetInventoryItem)))
	mux.Handle("POST /rooms/{id}/missed", authMW(http.HandlerFunc(roomsHandler.AddMissed)))
	mux.Handle("DELETE /rooms/{id}/missed", authMW(http.HandlerFunc(roomsHandler.ClearMissed)))

	// Uniqueness checks consulted by the admin draft flows.
	mux.Handle("GET /inventory/check-barcode/{barcode}", authMW(http.HandlerFunc(roomsHandler.CheckBarcode)))
	mux.Handle("GET /inventory/check-room-id/{roomId}", authMW(http.HandlerFunc(roomsHandler.CheckRoomID)))

	// Account management (admin only).
	mux.Handle("GET /users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("DELETE /users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	return mux
}
