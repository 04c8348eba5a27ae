package realtime

import "github.com/google/uuid"

// MessagesTopic carries message insert, update, and delete events for a conversation.
func MessagesTopic(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String() + ":messages"
}

// PresenceTopic carries ephemeral typing payloads for a conversation.
func PresenceTopic(conversationID uuid.UUID) string {
	return "conversation:" + conversationID.String() + ":presence"
}
