package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"meetspot/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler upgrades websocket connections and dispatches inbound
// messages to the coordinators. Each message is handled to completion
// before the next one is read.
type Handler struct {
	hub         *Hub
	authSvc     *service.AuthService
	roomSvc     *service.RoomService
	categorySvc *service.CategoryService
	voteSvc     *service.VoteService
}

func NewHandler(
	hub *Hub,
	authSvc *service.AuthService,
	roomSvc *service.RoomService,
	categorySvc *service.CategoryService,
	voteSvc *service.VoteService,
) *Handler {
	return &Handler{
		hub:         hub,
		authSvc:     authSvc,
		roomSvc:     roomSvc,
		categorySvc: categorySvc,
		voteSvc:     voteSvc,
	}
}

// ServeWS handles GET /v1/ws?token=...
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	claims, err := h.authSvc.ParseToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := &Connection{
		ID:     uuid.NewString(),
		UserID: claims.UserID,
		Name:   claims.Name,
		Send:   make(chan []byte, 256),
	}
	h.hub.Register(conn)

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		// Disconnect runs the same teardown as an explicit leave.
		h.voteSvc.Disconnect(conn.ID)
		if err := h.roomSvc.Leave(context.Background(), conn.ID); err != nil {
			slog.Error("leave on disconnect failed", "conn_id", conn.ID, "error", err)
		}
		h.hub.Unregister(conn.ID)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("websocket read failed", "conn_id", conn.ID, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			h.sendError(conn, &service.Error{Code: service.CodeBadRequest, Message: "malformed message"})
			continue
		}
		h.dispatch(conn, &msg)
	}
}

func (h *Handler) dispatch(conn *Connection, msg *Message) {
	ctx := context.Background()

	var err error
	switch msg.Type {
	case MsgRoomJoin:
		var p JoinRoomPayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		// Identity comes from the validated token; the payload only
		// picks the display name for this room.
		name := p.User.Name
		if name == "" {
			name = conn.Name
		}
		err = h.roomSvc.Join(ctx, conn.ID, p.RoomRef, service.User{ID: conn.UserID, Name: name})

	case MsgRoomLeave:
		err = h.roomSvc.Leave(ctx, conn.ID)

	case MsgRoomRename:
		var p RenamePayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.roomSvc.Rename(ctx, conn.ID, p.Name)

	case MsgRoomTransferOwner:
		var p TransferOwnerPayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.roomSvc.TransferOwner(ctx, conn.ID, p.TargetUserID)

	case MsgCategoryCreate:
		var p CategoryCreatePayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		_, err = h.categorySvc.Create(ctx, p.RoomRef, p.Name, conn.UserID)

	case MsgCategoryDelete:
		var p CategoryDeletePayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.categorySvc.Delete(ctx, p.CategoryID, p.RoomRef, conn.UserID)

	case MsgVoteJoin:
		var p VoteJoinPayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.voteSvc.Join(ctx, conn.ID, p.RoomID, p.CategoryID)

	case MsgVoteLeave:
		err = h.voteSvc.Leave(ctx, conn.ID)

	case MsgCandidateAdd:
		var p CandidateAddPayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.voteSvc.AddCandidate(ctx, conn.ID, p.toModel())

	case MsgCandidateRemove:
		var p CandidateRemovePayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.voteSvc.RemoveCandidate(ctx, conn.ID, p.CandidateID)

	case MsgVoteStart:
		err = h.voteSvc.Start(ctx, conn.ID)

	case MsgVoteEnd:
		err = h.voteSvc.End(ctx, conn.ID)

	case MsgVoteReset:
		err = h.voteSvc.Reset(ctx, conn.ID)

	case MsgVoteCast:
		var p VoteCastPayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.voteSvc.Cast(ctx, conn.ID, p.CandidateID)

	case MsgVoteRevoke:
		var p VoteCastPayload
		if !h.decode(conn, msg.Payload, &p) {
			return
		}
		err = h.voteSvc.Revoke(ctx, conn.ID, p.CandidateID)

	default:
		h.sendError(conn, &service.Error{Code: service.CodeBadRequest, Message: "unknown message type"})
		return
	}

	if err == nil {
		return
	}
	if derr, ok := service.AsError(err); ok {
		h.sendError(conn, derr)
		return
	}
	slog.Error("unexpected coordinator failure", "type", msg.Type, "conn_id", conn.ID, "error", err)
	h.sendError(conn, &service.Error{Code: service.CodeInternal, Message: "internal error"})
}

func (h *Handler) decode(conn *Connection, raw json.RawMessage, v interface{}) bool {
	if err := json.Unmarshal(raw, v); err != nil {
		h.sendError(conn, &service.Error{Code: service.CodeBadRequest, Message: "malformed payload"})
		return false
	}
	return true
}

func (h *Handler) sendError(conn *Connection, derr *service.Error) {
	h.hub.EmitTo(conn.ID, EventError, ErrorPayload{
		Code:    string(derr.Code),
		Message: derr.Message,
	})
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
