package conversation

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/go-go-golems/chatkit/pkg/events"
	"github.com/go-go-golems/chatkit/pkg/sse"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State owns the Thread of one conversation and applies decoded stream
// records to it. After every record that changed the thread, a change
// notification is published to the state's sinks and to the sinks attached
// to the context passed to Parse.
//
// A State is fed by a single stream consumer at a time. Its Thread can be
// read concurrently.
type State struct {
	ID string

	thread  *Thread
	version atomic.Int64
	sinks   []events.EventSink
	logger  zerolog.Logger
}

type StateOption func(*State)

// WithSinks adds sinks receiving the state's change notifications.
func WithSinks(sinks ...events.EventSink) StateOption {
	return func(s *State) {
		s.sinks = append(s.sinks, sinks...)
	}
}

// WithThread makes the state continue an existing thread, see NewThreadFromSnapshot.
func WithThread(t *Thread) StateOption {
	return func(s *State) {
		s.thread = t
	}
}

// WithThreadOptions configures the thread created by NewState. It has no
// effect together with WithThread.
func WithThreadOptions(options ...ThreadOption) StateOption {
	return func(s *State) {
		if s.thread == nil {
			s.thread = NewThread(options...)
		}
	}
}

func WithStateLogger(logger zerolog.Logger) StateOption {
	return func(s *State) {
		s.logger = logger
	}
}

func NewState(options ...StateOption) *State {
	ret := &State{
		ID:     uuid.NewString(),
		logger: log.Logger,
	}
	for _, o := range options {
		o(ret)
	}
	if ret.thread == nil {
		ret.thread = NewThread(WithThreadLogger(ret.logger))
	}
	return ret
}

// Thread returns the live thread. Its accessors return copies.
func (s *State) Thread() *Thread {
	return s.thread
}

// Version counts the records that changed the thread.
func (s *State) Version() int64 {
	return s.version.Load()
}

// Parse applies one record. Records with an unknown type tag are ignored.
// Parse only fails when ctx is already done.
func (s *State) Parse(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	switch ev.Type {
	case EventTypeThreadCreated, EventTypeThreadUpdated:
		s.thread.ApplyThreadFields(ev.Thread)
		md := s.metadata(ev, "")
		s.publish(ctx, events.NewThreadUpdatedEvent(md, s.thread.Title(), s.thread.CreatedAt(), s.thread.Status()))

	case EventTypeThreadItemAdded, EventTypeThreadItemDone:
		item, created := s.thread.upsertItem(ev.Item)
		type_ := events.EventTypeItemUpdated
		switch {
		case ev.Type == EventTypeThreadItemDone:
			type_ = events.EventTypeItemDone
		case created:
			type_ = events.EventTypeItemAdded
		}
		md := s.metadata(ev, item.ID)
		s.publish(ctx, events.NewItemEvent(type_, md, item.Kind, len(item.Content), item.Text()))

	case EventTypeThreadItemUpdated:
		item, idx, ok := s.thread.applyItemUpdate(ev.ItemID, ev.Update)
		if !ok {
			return nil
		}
		md := s.metadata(ev, item.ID)
		md.Extra = map[string]interface{}{"update_type": ev.Update.Type.Value}
		s.publish(ctx, updateEvent(md, item, idx, ev.Update))

	default:
		s.logger.Debug().Str("event_type", string(ev.Type)).Msg("ignoring unknown event type")
	}

	return nil
}

// ParseJSON decodes a single record and applies it.
func (s *State) ParseJSON(ctx context.Context, b []byte) error {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return errors.Wrap(err, "could not decode conversation event")
	}
	return s.Parse(ctx, ev)
}

// Handler returns the stream handler that feeds decoded records into the state.
func (s *State) Handler() sse.HandlerFunc[Event] {
	return s.Parse
}

// metadata bumps the version and describes the change caused by ev.
func (s *State) metadata(ev Event, itemID string) events.EventMetadata {
	md := events.NewEventMetadata()
	md.ConversationID = s.ID
	md.ThreadID = s.thread.ID()
	md.ItemID = itemID
	md.SourceType = string(ev.Type)
	md.Version = s.version.Add(1)
	return md
}

func (s *State) publish(ctx context.Context, ev events.Event) {
	s.logger.Trace().
		Str("event_type", string(ev.Type())).
		Object("meta", ev.Metadata()).
		Msg("conversation changed")
	events.PublishEvent(ev, s.sinks...)
	events.PublishEventToContext(ctx, ev)
}

func updateEvent(md events.EventMetadata, item Item, idx int, rec UpdateRecord) events.Event {
	var part ContentPart
	if idx >= 0 && idx < len(item.Content) {
		part = item.Content[idx]
	}

	switch rec.Kind() {
	case UpdateKindContentPartAdded:
		return events.NewContentPartEvent(events.EventTypeContentPartAdded, md, idx, part.Kind, part.Text)
	case UpdateKindTextDelta:
		return events.NewTextDeltaEvent(md, idx, rec.Delta.Value, part.Text)
	case UpdateKindContentPartDone:
		return events.NewContentPartEvent(events.EventTypeContentPartDone, md, idx, part.Kind, part.Text)
	case UpdateKindWorkflow, UpdateKindUnknown:
	}

	w := item.Workflow
	if w == nil {
		w = &WorkflowState{}
	}
	return events.NewWorkflowUpdatedEvent(md, w.Kind, w.Tasks, w.Summary, w.Expanded)
}
