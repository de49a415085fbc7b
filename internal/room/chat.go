package room

import "time"

// Chat sender categories.
const (
	SenderPlayer = "player"
	SenderSystem = "system"
	SenderUnit   = "unit"
)

type ChatMessage struct {
	Sender     string `json:"sender"`
	Content    string `json:"content"`
	SenderType string `json:"sender_type"`
	Timestamp  int64  `json:"timestamp"`
}

// AppendChat appends a message to the room's chat log and returns it
// with the timestamp filled in. The log is append-only.
func (r *Room) AppendChat(sender, content, senderType string) ChatMessage {
	msg := ChatMessage{
		Sender:     sender,
		Content:    content,
		SenderType: senderType,
		Timestamp:  time.Now().Unix(),
	}
	r.mu.Lock()
	r.Chat = append(r.Chat, msg)
	r.mu.Unlock()
	return msg
}

// ChatLog returns a copy of the chat history.
func (r *Room) ChatLog() []ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ChatMessage(nil), r.Chat...)
}
