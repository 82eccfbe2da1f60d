// Package auth はプレイヤーのセッショントークン (HS256 JWT) を発行・検証します。
// トークンは1つのルームの1つの席に結び付き、再接続でも同じものを使います。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	game "boardrush/game/domain"
	"boardrush/server/domain"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("token secret is empty")
)

const DefaultTTL = 12 * time.Hour

type Claims struct {
	jwt.RegisteredClaims
	RoomID string `json:"room"`
	Name   string `json:"name,omitempty"`
}

// Identity は検証済みトークンの中身です。
type Identity struct {
	PlayerID game.PlayerID
	RoomID   domain.RoomID
	Name     string
}

type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, issuer string, ttl time.Duration) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: secret, issuer: issuer, ttl: ttl, now: time.Now}, nil
}

func (i *Issuer) Issue(id Identity) (string, error) {
	now := i.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   id.PlayerID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
		RoomID: id.RoomID.String(),
		Name:   id.Name,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Parse(token string) (Identity, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	playerID, err := game.ParsePlayerID(claims.Subject)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	roomID, err := domain.ParseRoomID(claims.RoomID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: room: %w", ErrInvalidToken, err)
	}
	return Identity{PlayerID: playerID, RoomID: roomID, Name: claims.Name}, nil
}
