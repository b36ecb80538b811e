package models

// ChatMessage is one turn of the conversation as sent by the client.
type ChatMessage struct {
	Role    string `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content" binding:"required,min=1,max=4000"`
}

// ChatInput is the request body for the streaming chat endpoint.
// The last message is treated as the question; earlier turns are
// accepted for client convenience but not replayed to the model.
type ChatInput struct {
	Messages []ChatMessage `json:"messages" binding:"required,min=1,dive"`
}

// Question returns the content of the most recent message.
func (in ChatInput) Question() string {
	if len(in.Messages) == 0 {
		return ""
	}
	return in.Messages[len(in.Messages)-1].Content
}

// Server-sent stream events. Each is serialized as one `data:` line;
// the stream ends with the literal `data: [DONE]` marker.
type ContentEvent struct {
	Content string `json:"content"`
}

type FollowupEvent struct {
	FollowupQuestions []string `json:"followup_questions"`
}

type StreamErrorEvent struct {
	Error string `json:"error"`
}
