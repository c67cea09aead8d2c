package domain

import "encoding/json"

type MessageType string

const (
	TypeJoin     MessageType = "join"
	TypeMessage  MessageType = "message"
	TypeSystem   MessageType = "system"
	TypeUserList MessageType = "user-list"

	// Room call, broadcast to the room minus the sender.
	TypeOffer  MessageType = "offer"
	TypeAnswer MessageType = "answer"
	TypeICE    MessageType = "ice"
	TypeHangup MessageType = "hangup"

	// DM call, targeted by "to"; the server replaces it with "from".
	TypeDMCallRequest MessageType = "dm-call-request"
	TypeDMCallAccept  MessageType = "dm-call-accept"
	TypeDMCallReject  MessageType = "dm-call-reject"
	TypeDMOffer       MessageType = "dm-offer"
	TypeDMAnswer      MessageType = "dm-answer"
	TypeDMICE         MessageType = "dm-ice"
	TypeDMHangup      MessageType = "dm-hangup"

	// Group call, room and membership scoped.
	TypeGroupJoin   MessageType = "group-join-call"
	TypeGroupLeave  MessageType = "group-leave-call"
	TypeGroupOffer  MessageType = "group-offer"
	TypeGroupAnswer MessageType = "group-answer"
	TypeGroupICE    MessageType = "group-ice"
)

const (
	ReasonOffline  = "offline"
	ReasonBusy     = "busy"
	ReasonRejected = "rejected"
	ReasonTimeout  = "timeout"
)

// IsRoomRelay reports types relayed verbatim to the sender's room.
func (t MessageType) IsRoomRelay() bool {
	switch t {
	case TypeOffer, TypeAnswer, TypeICE, TypeHangup:
		return true
	}
	return false
}

// IsDM reports types routed to a single identity.
func (t MessageType) IsDM() bool {
	switch t {
	case TypeDMCallRequest, TypeDMCallAccept, TypeDMCallReject,
		TypeDMOffer, TypeDMAnswer, TypeDMICE, TypeDMHangup:
		return true
	}
	return false
}

// IsGroupNegotiation reports types relayed between group call members.
func (t MessageType) IsGroupNegotiation() bool {
	switch t {
	case TypeGroupOffer, TypeGroupAnswer, TypeGroupICE:
		return true
	}
	return false
}

// Message is the client-side view of any frame on the wire.
// Count is a pointer so "count":0 survives a round trip.
type Message struct {
	Type         MessageType     `json:"type"`
	To           Identity        `json:"to,omitempty"`
	From         Identity        `json:"from,omitempty"`
	Nickname     Identity        `json:"nickname,omitempty"`
	RoomID       RoomID          `json:"roomId,omitempty"`
	Text         string          `json:"text,omitempty"`
	SDP          string          `json:"sdp,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	Reason       string          `json:"reason,omitempty"`
	Users        []Identity      `json:"users,omitempty"`
	Full         bool            `json:"full,omitempty"`
	You          bool            `json:"you,omitempty"`
	Participants []Identity      `json:"participants,omitempty"`
	Count        *int            `json:"count,omitempty"`
	Max          int             `json:"max,omitempty"`
}

// GroupNotice is what the server sends about a room's group call.
// Count and Max are always present.
type GroupNotice struct {
	Type         MessageType `json:"type"`
	From         Identity    `json:"from,omitempty"`
	You          bool        `json:"you,omitempty"`
	Full         bool        `json:"full,omitempty"`
	Participants []Identity  `json:"participants,omitempty"`
	Count        int         `json:"count"`
	Max          int         `json:"max"`
}

// UserList is the global presence snapshot.
type UserList struct {
	Type  MessageType `json:"type"`
	Users []Identity  `json:"users"`
}
