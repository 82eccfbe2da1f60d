package handler

import (
	"errors"
	"log/slog"
	"net/http"

	game "boardrush/game/domain"
	"boardrush/profile"
	"boardrush/server/auth"
)

var errNotOwner = errors.New("progress belongs to another player")

// ProfileHandler は自分の成長記録を返します。
type ProfileHandler struct {
	store  profile.Store
	issuer *auth.Issuer
}

func NewProfileHandler(store profile.Store, issuer *auth.Issuer) *ProfileHandler {
	return &ProfileHandler{store: store, issuer: issuer}
}

type progressResponse struct {
	PlayerID    string   `json:"playerId"`
	XP          int      `json:"xp"`
	Level       int      `json:"level"`
	Tokens      int      `json:"tokens"`
	GamesPlayed int      `json:"gamesPlayed"`
	Wins        int      `json:"wins"`
	Unlocked    []string `json:"unlocked"`
}

// HandleProgress は GET /players/{id}/progress です。トークンの本人しか読めません。
func (h *ProfileHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	playerID, err := game.ParsePlayerID(r.PathValue("id"))
	if err != nil {
		httpError(w, http.StatusBadRequest, err)
		return
	}
	id, ok := bearerIdentity(w, r, h.issuer)
	if !ok {
		return
	}
	if id.PlayerID != playerID {
		httpError(w, http.StatusForbidden, errNotOwner)
		return
	}
	p, err := h.store.GetProgress(r.Context(), playerID)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to load progress", "playerID", playerID, "err", err)
		httpError(w, http.StatusInternalServerError, err)
		return
	}
	unlocked := p.Unlocked
	if unlocked == nil {
		unlocked = []string{}
	}
	writeJSON(w, http.StatusOK, progressResponse{
		PlayerID:    playerID.String(),
		XP:          p.XP,
		Level:       p.Level,
		Tokens:      p.Tokens,
		GamesPlayed: p.GamesPlayed,
		Wins:        p.Wins,
		Unlocked:    unlocked,
	})
}
