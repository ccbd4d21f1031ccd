package conversation

import "strings"

// EventType is the top-level type tag of a streamed record.
type EventType string

// Only these tags are understood, any other tag is ignored by State.Parse.
const (
	EventTypeThreadCreated     EventType = "thread.created"
	EventTypeThreadUpdated     EventType = "thread.updated"
	EventTypeThreadItemAdded   EventType = "thread.item.added"
	EventTypeThreadItemDone    EventType = "thread.item.done"
	EventTypeThreadItemUpdated EventType = "thread.item.updated"
)

// ItemTypeUserMessage opens a new turn in the thread.
const ItemTypeUserMessage = "user_message"

const (
	ItemTypeAssistantMessage = "assistant_message"
	ItemTypeWorkflow         = "workflow"
)

// Event is one decoded record of the conversation stream. Nested objects that
// are missing from the payload decode to empty records.
type Event struct {
	Type   EventType     `json:"type"`
	Thread ThreadRecord  `json:"thread"`
	Item   ItemRecord    `json:"item"`
	ItemID Field[string] `json:"item_id"`
	Update UpdateRecord  `json:"update"`
}

type ThreadRecord struct {
	ID        Field[string]         `json:"id"`
	CreatedAt Field[string]         `json:"created_at"`
	Status    Field[map[string]any] `json:"status"`
	Title     Field[string]         `json:"title"`
	Metadata  Field[map[string]any] `json:"metadata"`
}

type ItemRecord struct {
	ID               Field[string]          `json:"id"`
	ThreadID         Field[string]          `json:"thread_id"`
	CreatedAt        Field[string]          `json:"created_at"`
	Type             Field[string]          `json:"type"`
	Content          Field[[]ContentRecord] `json:"content"`
	Workflow         Field[WorkflowRecord]  `json:"workflow"`
	Attachments      Field[[]any]           `json:"attachments"`
	QuotedText       Field[string]          `json:"quoted_text"`
	InferenceOptions Field[map[string]any]  `json:"inference_options"`
}

type ContentRecord struct {
	Type        Field[string] `json:"type"`
	Text        Field[string] `json:"text"`
	Annotations Field[[]any]  `json:"annotations"`
}

type WorkflowRecord struct {
	Type          Field[string]         `json:"type"`
	Tasks         Field[[]any]          `json:"tasks"`
	Summary       Field[map[string]any] `json:"summary"`
	Expanded      Field[bool]           `json:"expanded"`
	ResponseItems Field[[]any]          `json:"response_items"`
}

// UpdateRecord is the nested "update" object of a thread.item.updated record.
// Type holds the update kind, e.g. "assistant_message.content_part.text_delta"
// or "workflow.task.added".
type UpdateRecord struct {
	Type          Field[string]         `json:"type"`
	ContentIndex  Field[int]            `json:"content_index"`
	Content       Field[ContentRecord]  `json:"content"`
	Delta         Field[string]         `json:"delta"`
	Tasks         Field[[]any]          `json:"tasks"`
	Summary       Field[map[string]any] `json:"summary"`
	Expanded      Field[bool]           `json:"expanded"`
	ResponseItems Field[[]any]          `json:"response_items"`
}

// UpdateKind is the normalized kind of an item update.
type UpdateKind int

const (
	UpdateKindUnknown UpdateKind = iota
	UpdateKindContentPartAdded
	UpdateKindTextDelta
	UpdateKindContentPartDone
	UpdateKindWorkflow
)

func (k UpdateKind) String() string {
	switch k {
	case UpdateKindContentPartAdded:
		return "content_part.added"
	case UpdateKindTextDelta:
		return "content_part.text_delta"
	case UpdateKindContentPartDone:
		return "content_part.done"
	case UpdateKindWorkflow:
		return "workflow"
	case UpdateKindUnknown:
	}
	return "unknown"
}

// Kind classifies the update by its type tag. The prefix before
// "content_part" names the item kind and is not significant.
func (u UpdateRecord) Kind() UpdateKind {
	t := u.Type.Value
	switch {
	case t == "content_part.added" || strings.HasSuffix(t, ".content_part.added"):
		return UpdateKindContentPartAdded
	case t == "content_part.text_delta" || strings.HasSuffix(t, ".content_part.text_delta"):
		return UpdateKindTextDelta
	case t == "content_part.done" || strings.HasSuffix(t, ".content_part.done"):
		return UpdateKindContentPartDone
	case strings.HasPrefix(t, "workflow."):
		return UpdateKindWorkflow
	}
	return UpdateKindUnknown
}

func (u UpdateRecord) workflowRecord() WorkflowRecord {
	return WorkflowRecord{
		Tasks:         u.Tasks,
		Summary:       u.Summary,
		Expanded:      u.Expanded,
		ResponseItems: u.ResponseItems,
	}
}
