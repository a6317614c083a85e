package rest

import (
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"meetspot/internal/repository"
	"meetspot/internal/service"
	"meetspot/internal/transport/rest/handler"
	"meetspot/internal/transport/ws"
)

// Container holds all dependencies for the router.
type Container struct {
	AuthService     *service.AuthService
	RoomService     *service.RoomService
	CategoryService *service.CategoryService
	VoteService     *service.VoteService
	ActivityService *service.ActivityService
	RoomRepo        repository.RoomRepo
	CategoryRepo    repository.CategoryRepo
	WSHub           *ws.Hub
}

// NewRouter creates the API router with all endpoints.
func NewRouter(c *Container) http.Handler {
	r := mux.NewRouter()

	roomHandler := handler.NewRoomHandler(c.RoomRepo, c.CategoryRepo, c.ActivityService)
	wsHandler := ws.NewHandler(c.WSHub, c.AuthService, c.RoomService, c.CategoryService, c.VoteService)

	r.Use(corsMiddleware)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/rooms", roomHandler.Create).Methods("POST", "OPTIONS")
	v1.HandleFunc("/rooms/{ref}", roomHandler.Get).Methods("GET", "OPTIONS")
	v1.HandleFunc("/ws", wsHandler.ServeWS).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
