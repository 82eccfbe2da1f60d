package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/skip2/go-qrcode"

	game "boardrush/game/domain"
	"boardrush/server/auth"
	"boardrush/server/domain"
)

const (
	maxNameLength = 24
	qrSize        = 256
)

// RoomsHandler はロビーの HTTP API です。
type RoomsHandler struct {
	roomManager domain.RoomManager
	issuer      *auth.Issuer
	// joinURL は QR コードに埋め込む参加用 URL の前半です。空ならコードだけを埋め込みます。
	joinURL string
}

func NewRoomsHandler(roomManager domain.RoomManager, issuer *auth.Issuer, joinURL string) *RoomsHandler {
	return &RoomsHandler{roomManager: roomManager, issuer: issuer, joinURL: joinURL}
}

type joinRequest struct {
	Name        string `json:"name"`
	StartupName string `json:"startupName"`
}

type joinResponse struct {
	RoomID   string `json:"roomId"`
	Code     string `json:"code"`
	PlayerID string `json:"playerId"`
	Color    string `json:"color"`
	Token    string `json:"token"`
}

type botRequest struct {
	Name string `json:"name"`
}

// HandleCreate は POST /rooms です。作成者がホストになります。
func (h *RoomsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	player, ok := decodePlayer(w, r)
	if !ok {
		return
	}
	room, err := h.roomManager.CreateRoom(r.Context(), player)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create room", "err", err)
		httpError(w, statusFor(err), err)
		return
	}
	h.respondJoined(w, r, room, player, http.StatusCreated)
}

// HandleJoin は POST /rooms/{code}/join です。
func (h *RoomsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	player, ok := decodePlayer(w, r)
	if !ok {
		return
	}
	room, joined, err := h.roomManager.JoinByCode(r.Context(), r.PathValue("code"), player)
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	h.respondJoined(w, r, room, joined, http.StatusOK)
}

// HandleAddBot は POST /rooms/{code}/bots です。ホストのトークンが必要です。
func (h *RoomsHandler) HandleAddBot(w http.ResponseWriter, r *http.Request) {
	room, id, ok := h.authorizedRoom(w, r)
	if !ok {
		return
	}
	var req botRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, err)
			return
		}
	}
	bot, err := room.AddBot(id.PlayerID, clampName(req.Name))
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	slog.InfoContext(r.Context(), "bot added", "roomID", room.ID, "playerID", bot.ID)
	h.respondView(w, room, http.StatusCreated)
}

// HandleStart は POST /rooms/{code}/start です。
func (h *RoomsHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	room, id, ok := h.authorizedRoom(w, r)
	if !ok {
		return
	}
	if err := room.Start(r.Context(), id.PlayerID); err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	h.respondView(w, room, http.StatusAccepted)
}

// HandleGet は GET /rooms/{code} です。
func (h *RoomsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomManager.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	h.respondView(w, room, http.StatusOK)
}

// HandleQR は GET /rooms/{code}/qr です。参加用の QR コードを PNG で返します。
func (h *RoomsHandler) HandleQR(w http.ResponseWriter, r *http.Request) {
	room, err := h.roomManager.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		httpError(w, statusFor(err), err)
		return
	}
	png, err := qrcode.Encode(h.joinURL+room.Code, qrcode.Medium, qrSize)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (h *RoomsHandler) respondJoined(w http.ResponseWriter, r *http.Request, room *domain.Room, p game.Player, status int) {
	token, err := h.issuer.Issue(auth.Identity{PlayerID: p.ID, RoomID: room.ID, Name: p.Name})
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to issue token", "roomID", room.ID, "err", err)
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, status, joinResponse{
		RoomID:   room.ID.String(),
		Code:     room.Code,
		PlayerID: p.ID.String(),
		Color:    p.Color.String(),
		Token:    token,
	})
}

func (h *RoomsHandler) respondView(w http.ResponseWriter, room *domain.Room, status int) {
	view, err := room.View()
	if err != nil {
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, status, view)
}

// authorizedRoom は Bearer トークンを検証し、トークンのルームとパスのルームが同じか確かめます。
func (h *RoomsHandler) authorizedRoom(w http.ResponseWriter, r *http.Request) (*domain.Room, auth.Identity, bool) {
	id, ok := bearerIdentity(w, r, h.issuer)
	if !ok {
		return nil, auth.Identity{}, false
	}
	room, err := h.roomManager.FindByCode(r.Context(), r.PathValue("code"))
	if err != nil {
		httpError(w, statusFor(err), err)
		return nil, auth.Identity{}, false
	}
	if room.ID != id.RoomID {
		httpError(w, http.StatusForbidden, domain.ErrNotMember)
		return nil, auth.Identity{}, false
	}
	return room, id, true
}

func bearerIdentity(w http.ResponseWriter, r *http.Request, issuer *auth.Issuer) (auth.Identity, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || token == "" {
		httpError(w, http.StatusUnauthorized, auth.ErrInvalidToken)
		return auth.Identity{}, false
	}
	id, err := issuer.Parse(token)
	if err != nil {
		httpError(w, http.StatusUnauthorized, err)
		return auth.Identity{}, false
	}
	return id, true
}

func decodePlayer(w http.ResponseWriter, r *http.Request) (game.Player, bool) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, err)
		return game.Player{}, false
	}
	name := clampName(req.Name)
	if name == "" {
		httpError(w, http.StatusBadRequest, errors.New("name is required"))
		return game.Player{}, false
	}
	startup := clampName(req.StartupName)
	if startup == "" {
		startup = name + " Inc"
	}
	return game.Player{ID: game.NewPlayerID(), Name: name, StartupName: startup}, true
}

func clampName(s string) string {
	s = strings.TrimSpace(s)
	for utf8.RuneCountInString(s) > maxNameLength {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidRoomCode):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotHost), errors.Is(err, domain.ErrNotMember):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrRoomFull), errors.Is(err, domain.ErrRoomNotInLobby), errors.Is(err, domain.ErrNotEnoughPlayers):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRoomManagerStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func httpError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
