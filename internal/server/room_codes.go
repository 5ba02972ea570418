package server

import (
	"errors"
	"math/rand"
	"strings"
)

const (
	roomCodeLength   = 6
	roomCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GenerateRoomCode draws random codes until one is not in usedCodes.
// The generator itself gives no uniqueness guarantee; the caller owns
// the used set and must record the returned code before releasing it.
func GenerateRoomCode(usedCodes map[string]bool) string {
	for {
		code := make([]byte, roomCodeLength)
		for i := range code {
			code[i] = roomCodeAlphabet[rand.Intn(len(roomCodeAlphabet))]
		}
		roomCode := string(code)

		if !usedCodes[roomCode] {
			return roomCode
		}
	}
}

// ValidateRoomCode checks a code already normalized by
// NormalizeRoomCode: exactly 6 characters from A-Z and 0-9.
func ValidateRoomCode(code string) error {
	if len(code) != roomCodeLength {
		return errors.New("INVALID_ROOM_CODE: Room code must be exactly 6 characters")
	}

	for _, ch := range code {
		if !strings.ContainsRune(roomCodeAlphabet, ch) {
			return errors.New("INVALID_ROOM_CODE: Room code must contain only letters A-Z and digits 0-9")
		}
	}

	return nil
}

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
