package handler

import (
	"log/slog"
	"net/http"

	"github.com/coder/websocket"

	adapterwebsocket "boardrush/server/adapter/websocket"
	"boardrush/server/auth"
	"boardrush/server/domain"
)

// AcceptHandler は GET /ws?token= を websocket に昇格し、セッションエンドポイントを回します。
type AcceptHandler struct {
	pubsub      domain.PubSub
	roomManager domain.RoomManager
	issuer      *auth.Issuer
	cfg         domain.EndpointConfig
	// originPatterns が空なら Origin チェックをしません（開発用）。
	originPatterns []string
}

func NewAcceptHandler(pubsub domain.PubSub, roomManager domain.RoomManager, issuer *auth.Issuer, cfg domain.EndpointConfig, originPatterns []string) *AcceptHandler {
	return &AcceptHandler{
		pubsub:         pubsub,
		roomManager:    roomManager,
		issuer:         issuer,
		cfg:            cfg,
		originPatterns: originPatterns,
	}
}

func (h *AcceptHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// トークンは昇格前に検証します
	identity, err := h.issuer.Parse(r.URL.Query().Get("token"))
	if err != nil {
		slog.DebugContext(ctx, "rejected websocket token", "err", err)
		httpError(w, http.StatusUnauthorized, err)
		return
	}
	if _, err := h.roomManager.GetRoom(ctx, identity.RoomID); err != nil {
		httpError(w, statusFor(err), err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: len(h.originPatterns) == 0,
		OriginPatterns:     h.originPatterns,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to accept", "err", err)
		return
	}

	session := domain.NewSession(identity.PlayerID, identity.RoomID)
	transport := adapterwebsocket.NewTransportFrom(conn)
	connection := domain.NewConnection(session.ID(), transport)
	endpoint, err := domain.NewSessionEndpoint(session, connection, h.pubsub, h.roomManager, h.cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create session endpoint", "err", err)
		connection.Close()
		return
	}
	slog.DebugContext(ctx, "accepted new connection", "sessionID", session.ID(), "playerID", identity.PlayerID, "roomID", identity.RoomID)
	if err := endpoint.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to run session endpoint", "sessionID", session.ID(), "err", err)
	}
}
