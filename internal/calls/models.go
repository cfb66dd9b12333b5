package calls

import "virtual-mentor/internal/telephony"

// Request is the body of POST /api/call/initiate.
type Request struct {
	PhoneNumber string `json:"phoneNumber"`
	UserID      string `json:"userId"`
	UserName    string `json:"userName"`
}

// Result is returned once the phone leg has been dialed.
type Result struct {
	Success        bool                     `json:"success"`
	SessionID      string                   `json:"sessionId"`
	RoomName       string                   `json:"roomName"`
	PhoneNumber    string                   `json:"phoneNumber"`
	RoomURL        string                   `json:"roomUrl"`
	SIPParticipant telephony.SIPParticipant `json:"sipParticipant"`
	AgentToken     string                   `json:"agentToken"`
	Message        string                   `json:"message"`
}
