// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxNameLen = 36
	MaxRoomLen = 64
)

var (
	ErrNameTooLong = errors.New("nickname too long")
	ErrNameEmpty   = errors.New("nickname empty")
)

// Identity is the display name a connection claims on join.
// It is unique among live connections only by last-writer-wins.
type Identity string

func NewIdentity(name string) (Identity, error) {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return "", ErrNameEmpty
	}
	if len(name) > MaxNameLen {
		return "", ErrNameTooLong
	}
	return Identity(name), nil
}
