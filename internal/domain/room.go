package domain

import (
	"errors"
	"strings"
)

var (
	ErrRoomEmpty   = errors.New("room id empty")
	ErrRoomTooLong = errors.New("room id too long")
)

// RoomID is an opaque room key. A room exists only while some
// connection is bound to it.
type RoomID string

func NewRoomID(raw string) (RoomID, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 0 {
		return "", ErrRoomEmpty
	}
	if len(raw) > MaxRoomLen {
		return "", ErrRoomTooLong
	}
	return RoomID(raw), nil
}
