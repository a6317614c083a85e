package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"meetspot/internal/model"
	"meetspot/internal/repository"
	"meetspot/internal/service"
)

// RoomHandler handles the room store's administrative endpoints. Live
// presence and voting ride the websocket; this surface only creates and
// resolves the persistent rooms they attach to.
type RoomHandler struct {
	roomRepo     repository.RoomRepo
	categoryRepo repository.CategoryRepo
	activity     *service.ActivityService
}

func NewRoomHandler(roomRepo repository.RoomRepo, categoryRepo repository.CategoryRepo, activity *service.ActivityService) *RoomHandler {
	return &RoomHandler{
		roomRepo:     roomRepo,
		categoryRepo: categoryRepo,
		activity:     activity,
	}
}

type createRoomRequest struct {
	Title         string `json:"title"`
	Slug          string `json:"slug"`
	FirstCategory string `json:"firstCategory"`
}

type roomResponse struct {
	Room       *model.Room      `json:"room"`
	Categories []model.Category `json:"categories"`
}

// Create handles POST /v1/rooms. Every room starts with one category so
// the 1..10 category invariant holds from birth.
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Slug != "" {
		existing, err := h.roomRepo.Resolve(r.Context(), req.Slug)
		if err != nil {
			slog.Error("slug lookup failed", "slug", req.Slug, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to create room")
			return
		}
		if existing != nil {
			writeError(w, http.StatusConflict, "slug already in use")
			return
		}
	}

	now := time.Now()
	room := &model.Room{
		ID:           uuid.NewString(),
		Slug:         req.Slug,
		Title:        req.Title,
		CreatedAt:    now,
		LastActiveAt: now,
	}
	if err := h.roomRepo.Create(r.Context(), room); err != nil {
		slog.Error("room insert failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	firstTitle := req.FirstCategory
	if firstTitle == "" {
		firstTitle = "General"
	}
	category := &model.Category{
		ID:         uuid.NewString(),
		RoomID:     room.ID,
		Title:      firstTitle,
		OrderIndex: 0,
		CreatedAt:  now,
	}
	if err := h.categoryRepo.Insert(r.Context(), category); err != nil {
		slog.Error("initial category insert failed", "room_id", room.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create room")
		return
	}

	h.activity.MarkActive(room.ID)
	slog.Info("room created", "room_id", room.ID, "slug", room.Slug)

	writeJSON(w, http.StatusCreated, roomResponse{
		Room:       room,
		Categories: []model.Category{*category},
	})
}

// Get handles GET /v1/rooms/{ref}, resolving by id or slug.
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]

	room, err := h.roomRepo.Resolve(r.Context(), ref)
	if err != nil {
		slog.Error("room lookup failed", "room_ref", ref, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve room")
		return
	}
	if room == nil {
		writeError(w, http.StatusNotFound, "room not found")
		return
	}

	categories, err := h.categoryRepo.ListByRoom(r.Context(), room.ID)
	if err != nil {
		slog.Error("category lookup failed", "room_id", room.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve room")
		return
	}

	writeJSON(w, http.StatusOK, roomResponse{
		Room:       room,
		Categories: categories,
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
