package orch

import (
	"fmt"

	"github.com/dkeye/convo/internal/domain"
)

type systemMessage struct {
	Type domain.MessageType `json:"type"`
	Text string             `json:"text"`
}

func system(format string, args ...any) systemMessage {
	return systemMessage{Type: domain.TypeSystem, Text: fmt.Sprintf(format, args...)}
}

type chatMessage struct {
	Type     domain.MessageType `json:"type"`
	Nickname domain.Identity    `json:"nickname"`
	Text     string             `json:"text"`
}

type dmNotice struct {
	Type   domain.MessageType `json:"type"`
	From   domain.Identity    `json:"from"`
	Reason string             `json:"reason,omitempty"`
}

type bareMessage struct {
	Type domain.MessageType `json:"type"`
}
