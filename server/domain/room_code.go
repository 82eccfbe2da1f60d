package domain

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

const (
	RoomCodeLength = 6
	// 0/O, 1/I は読み間違えるので使いません。
	RoomCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

var ErrInvalidRoomCode = errors.New("invalid room code")

// GenerateRoomCode は crypto/rand でルームコードを作ります。
func GenerateRoomCode() (string, error) {
	code := make([]byte, RoomCodeLength)
	limit := big.NewInt(int64(len(RoomCodeChars)))
	for i := range code {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code), nil
}

// NormalizeRoomCode は入力されたコードを大文字にして検証します。
func NormalizeRoomCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != RoomCodeLength {
		return "", ErrInvalidRoomCode
	}
	for i := range len(code) {
		if strings.IndexByte(RoomCodeChars, code[i]) < 0 {
			return "", ErrInvalidRoomCode
		}
	}
	return code, nil
}
