package client

import "net/http"

const (
	ConversationEndpoint = "/v1/chatkit/conversation"
	SessionsEndpoint     = "/v1/chatkit/sessions"
	FilesEndpoint        = "/v1/chatkit/files"
)

const (
	RequestTypeCreateThread   = "threads.create"
	RequestTypeAddUserMessage = "threads.add_user_message"
)

type InputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Input struct {
	Content          []InputContent `json:"content"`
	QuoteText        string         `json:"quote_text"`
	Attachments      []any          `json:"attachments"`
	InferenceOptions map[string]any `json:"inference_options"`
}

type Params struct {
	Input    Input  `json:"input"`
	ThreadID string `json:"thread_id,omitempty"`
}

// Payload is the body of a conversation request.
type Payload struct {
	Type   string `json:"type"`
	Params Params `json:"params"`
}

// NewPayload builds the request for a user message. An empty threadID starts
// a new thread, otherwise the message is added to that thread.
func NewPayload(text string, threadID string) Payload {
	ret := Payload{
		Type: RequestTypeCreateThread,
		Params: Params{
			Input: Input{
				Content:          []InputContent{{Type: "input_text", Text: text}},
				Attachments:      []any{},
				InferenceOptions: map[string]any{},
			},
		},
	}
	if threadID != "" {
		ret.Type = RequestTypeAddUserMessage
		ret.Params.ThreadID = threadID
	}
	return ret
}

func conversationHeaders(h http.Header, clientSecret string) {
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Authorization", "Bearer "+clientSecret)
}
