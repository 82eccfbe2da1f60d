package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	game "boardrush/game/domain"
	"boardrush/server/domain"
)

func TestIssuer_RoundTrip(t *testing.T) {
	issuer, err := NewIssuer([]byte("secret"), "boardrush", time.Hour)
	require.NoError(t, err)

	id := Identity{PlayerID: game.NewPlayerID(), RoomID: domain.NewRoomID(), Name: "Ada"}
	token, err := issuer.Issue(id)
	require.NoError(t, err)

	got, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestIssuer_Rejects(t *testing.T) {
	issuer, err := NewIssuer([]byte("secret"), "boardrush", time.Hour)
	require.NoError(t, err)
	id := Identity{PlayerID: game.NewPlayerID(), RoomID: domain.NewRoomID()}
	token, err := issuer.Issue(id)
	require.NoError(t, err)

	t.Run("other secret", func(t *testing.T) {
		other, _ := NewIssuer([]byte("another"), "boardrush", time.Hour)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("other issuer", func(t *testing.T) {
		other, _ := NewIssuer([]byte("secret"), "someone-else", time.Hour)
		_, err := other.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired", func(t *testing.T) {
		later, _ := NewIssuer([]byte("secret"), "boardrush", time.Hour)
		later.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
		_, err := later.Parse(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
		assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := issuer.Parse("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("none algorithm", func(t *testing.T) {
		unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "boardrush",
				Subject:   id.PlayerID.String(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
			RoomID: id.RoomID.String(),
		}).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = issuer.Parse(unsigned)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer(nil, "boardrush", 0)
	assert.ErrorIs(t, err, ErrEmptySecret)
}
