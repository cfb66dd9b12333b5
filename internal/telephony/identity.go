package telephony

import (
	"fmt"
	"strings"
	"time"
)

const (
	// PhoneIdentityPrefix marks the SIP leg that represents the callee.
	PhoneIdentityPrefix = "phone-"
	AgentName           = "Virtual Mentor Agent"
	GuestUserID         = "guest"
	DefaultCalleeName   = "User"
)

// RoomName builds the correlation key shared between a session and its webhooks.
func RoomName(userID string, now time.Time) string {
	if userID == "" {
		userID = GuestUserID
	}
	return fmt.Sprintf("call-%s-%d", userID, now.UnixMilli())
}

func PhoneIdentity(userID string) string {
	if userID == "" {
		userID = GuestUserID
	}
	return PhoneIdentityPrefix + userID
}

func AgentIdentity(roomName string) string { return "agent-" + roomName }

// IsPhoneLeg reports whether identity belongs to the dialed callee rather than the agent.
func IsPhoneLeg(identity string) bool { return strings.HasPrefix(identity, PhoneIdentityPrefix) }
