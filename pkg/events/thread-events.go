package events

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type EventType string

const (
	// EventTypeThreadUpdated is published after thread.created and thread.updated records.
	EventTypeThreadUpdated EventType = "thread-updated"

	// Item lifecycle. EventTypeItemAdded is only used when a record created a
	// new item, records folded into an existing item publish EventTypeItemUpdated.
	EventTypeItemAdded   EventType = "item-added"
	EventTypeItemUpdated EventType = "item-updated"
	EventTypeItemDone    EventType = "item-done"

	// Streaming updates of the active item
	EventTypeContentPartAdded EventType = "content-part-added"
	EventTypeTextDelta        EventType = "text-delta"
	EventTypeContentPartDone  EventType = "content-part-done"
	EventTypeWorkflowUpdated  EventType = "workflow-updated"

	EventTypeError EventType = "error"
)

type Event interface {
	Type() EventType
	Metadata() EventMetadata
	Payload() []byte
}

// EventMetadata identifies where a notification comes from.
type EventMetadata struct {
	ID             uuid.UUID `json:"message_id" yaml:"message_id"`
	ConversationID string    `json:"conversation_id,omitempty" yaml:"conversation_id,omitempty"`
	ThreadID       string    `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	ItemID         string    `json:"item_id,omitempty" yaml:"item_id,omitempty"`
	// SourceType is the type tag of the stream record that caused the change.
	SourceType string `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	// Version is the conversation state version after the change was applied.
	Version int64 `json:"version" yaml:"version"`

	Extra map[string]interface{} `json:"extra,omitempty" yaml:"extra,omitempty"`
}

func NewEventMetadata() EventMetadata {
	return EventMetadata{ID: uuid.New()}
}

func (em EventMetadata) MarshalZerologObject(e *zerolog.Event) {
	e.Str("message_id", em.ID.String())
	if em.ConversationID != "" {
		e.Str("conversation_id", em.ConversationID)
	}
	if em.ThreadID != "" {
		e.Str("thread_id", em.ThreadID)
	}
	if em.ItemID != "" {
		e.Str("item_id", em.ItemID)
	}
	if em.SourceType != "" {
		e.Str("source_type", em.SourceType)
	}
	e.Int64("version", em.Version)
	if len(em.Extra) > 0 {
		e.Dict("extra", zerolog.Dict().Fields(em.Extra))
	}
}

type EventImpl struct {
	Type_     EventType     `json:"type"`
	Metadata_ EventMetadata `json:"meta"`

	// store payload if the event was deserialized from JSON (see NewEventFromJson), not further used
	payload []byte
}

func (e *EventImpl) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", string(e.Type_))
	ev.Object("meta", e.Metadata_)
}

func (e *EventImpl) Type() EventType {
	return e.Type_
}

func (e *EventImpl) Metadata() EventMetadata {
	return e.Metadata_
}

func (e *EventImpl) Payload() []byte {
	return e.payload
}

// SetPayload stores the raw JSON payload on the event implementation.
func (e *EventImpl) SetPayload(b []byte) {
	e.payload = b
}

var _ Event = &EventImpl{}

type EventThreadUpdated struct {
	EventImpl
	Title     string         `json:"title,omitempty"`
	CreatedAt string         `json:"created_at,omitempty"`
	Status    map[string]any `json:"status,omitempty"`
}

func NewThreadUpdatedEvent(metadata EventMetadata, title string, createdAt string, status map[string]any) *EventThreadUpdated {
	return &EventThreadUpdated{
		EventImpl: EventImpl{
			Type_:     EventTypeThreadUpdated,
			Metadata_: metadata,
		},
		Title:     title,
		CreatedAt: createdAt,
		Status:    status,
	}
}

var _ Event = &EventThreadUpdated{}

// EventItem is used for item-added, item-updated and item-done.
type EventItem struct {
	EventImpl
	ItemKind     string `json:"item_type,omitempty"`
	ContentParts int    `json:"content_parts"`
	// Text is the concatenated text of all content parts of the item.
	Text string `json:"text"`
}

func NewItemEvent(type_ EventType, metadata EventMetadata, itemKind string, contentParts int, text string) *EventItem {
	return &EventItem{
		EventImpl: EventImpl{
			Type_:     type_,
			Metadata_: metadata,
		},
		ItemKind:     itemKind,
		ContentParts: contentParts,
		Text:         text,
	}
}

var _ Event = &EventItem{}

// EventContentPart is used for content-part-added and content-part-done.
type EventContentPart struct {
	EventImpl
	ContentIndex int    `json:"content_index"`
	Kind         string `json:"content_type,omitempty"`
	Text         string `json:"text"`
}

func NewContentPartEvent(type_ EventType, metadata EventMetadata, contentIndex int, kind string, text string) *EventContentPart {
	return &EventContentPart{
		EventImpl: EventImpl{
			Type_:     type_,
			Metadata_: metadata,
		},
		ContentIndex: contentIndex,
		Kind:         kind,
		Text:         text,
	}
}

var _ Event = &EventContentPart{}

// EventTextDelta carries one streamed text fragment and the accumulated text
// of the content part it was appended to.
type EventTextDelta struct {
	EventImpl
	ContentIndex int    `json:"content_index"`
	Delta        string `json:"delta"`
	Text         string `json:"text"`
}

func NewTextDeltaEvent(metadata EventMetadata, contentIndex int, delta string, text string) *EventTextDelta {
	return &EventTextDelta{
		EventImpl: EventImpl{
			Type_:     EventTypeTextDelta,
			Metadata_: metadata,
		},
		ContentIndex: contentIndex,
		Delta:        delta,
		Text:         text,
	}
}

var _ Event = &EventTextDelta{}

type EventWorkflowUpdated struct {
	EventImpl
	WorkflowKind string         `json:"workflow_type,omitempty"`
	Tasks        []any          `json:"tasks,omitempty"`
	Summary      map[string]any `json:"summary,omitempty"`
	Expanded     *bool          `json:"expanded,omitempty"`
}

func NewWorkflowUpdatedEvent(metadata EventMetadata, workflowKind string, tasks []any, summary map[string]any, expanded *bool) *EventWorkflowUpdated {
	return &EventWorkflowUpdated{
		EventImpl: EventImpl{
			Type_:     EventTypeWorkflowUpdated,
			Metadata_: metadata,
		},
		WorkflowKind: workflowKind,
		Tasks:        tasks,
		Summary:      summary,
		Expanded:     expanded,
	}
}

var _ Event = &EventWorkflowUpdated{}

type EventError struct {
	EventImpl
	ErrorString string `json:"error_string"`
}

func NewErrorEvent(metadata EventMetadata, err error) *EventError {
	return &EventError{
		EventImpl: EventImpl{
			Type_:     EventTypeError,
			Metadata_: metadata,
		},
		ErrorString: err.Error(),
	}
}

var _ Event = &EventError{}

// NewEventFromJson decodes a notification serialized by a sink. Types
// registered with RegisterEventCodec take precedence over the built-in ones.
func NewEventFromJson(b []byte) (Event, error) {
	var hdr struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(b, &hdr); err != nil {
		return nil, err
	}

	if dec := lookupDecoder(string(hdr.Type)); dec != nil {
		ev, err := dec(b)
		if err != nil {
			return nil, err
		}
		if setter, ok := ev.(interface{ SetPayload([]byte) }); ok {
			setter.SetPayload(b)
		}
		return ev, nil
	}

	var ret Event
	var err error
	switch hdr.Type {
	case EventTypeThreadUpdated:
		ret, err = decodeTyped[EventThreadUpdated](b)
	case EventTypeItemAdded, EventTypeItemUpdated, EventTypeItemDone:
		ret, err = decodeTyped[EventItem](b)
	case EventTypeContentPartAdded, EventTypeContentPartDone:
		ret, err = decodeTyped[EventContentPart](b)
	case EventTypeTextDelta:
		ret, err = decodeTyped[EventTextDelta](b)
	case EventTypeWorkflowUpdated:
		ret, err = decodeTyped[EventWorkflowUpdated](b)
	case EventTypeError:
		ret, err = decodeTyped[EventError](b)
	default:
		return nil, fmt.Errorf("unknown event type %q", hdr.Type)
	}
	if err != nil {
		return nil, err
	}
	if setter, ok := ret.(interface{ SetPayload([]byte) }); ok {
		setter.SetPayload(b)
	}
	return ret, nil
}

type eventPtr[T any] interface {
	*T
	Event
}

func decodeTyped[T any, PT eventPtr[T]](b []byte) (Event, error) {
	var ret T
	if err := json.Unmarshal(b, &ret); err != nil {
		return nil, err
	}
	return PT(&ret), nil
}
