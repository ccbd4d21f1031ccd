package conversation

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-go-golems/chatkit/pkg/events"
	"github.com/go-go-golems/chatkit/pkg/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// completeSequence is a captured conversation turn: a user message, a
// reasoning workflow and a streamed assistant answer.
var completeSequence = []string{
	`{"type":"thread.created","thread":{"id":"cthr_123","created_at":"2025-11-11T11:32:33.784959","status":{"type":"active"}}}`,
	`{"type":"thread.item.done","item":{"id":"cti_user","thread_id":"cthr_123","created_at":"2025-11-11T11:32:33.866014","type":"user_message","content":[{"type":"input_text","text":"bonjour"}]}}`,
	`{"type":"thread.item.added","item":{"id":"cti_workflow","thread_id":"cthr_123","created_at":"2025-11-11T11:32:35.942396Z","type":"workflow","workflow":{"type":"reasoning","tasks":[]}}}`,
	`{"type":"thread.item.done","item":{"id":"cti_workflow","workflow":{"summary":{"duration":4}}}}`,
	`{"type":"thread.item.added","item":{"id":"cti_assistant","thread_id":"cthr_123","created_at":"2025-11-11T11:32:40.759544Z","type":"assistant_message","content":[]}}`,
	`{"type":"thread.item.updated","item_id":"cti_assistant","update":{"type":"assistant_message.content_part.added","content_index":0,"content":{"type":"output_text","text":""}}}`,
	`{"type":"thread.item.updated","item_id":"cti_assistant","update":{"type":"assistant_message.content_part.text_delta","content_index":0,"delta":"Hi"}}`,
	`{"type":"thread.item.updated","item_id":"cti_assistant","update":{"type":"assistant_message.content_part.text_delta","content_index":0,"delta":" there"}}`,
	`{"type":"thread.item.updated","item_id":"cti_assistant","update":{"type":"assistant_message.content_part.text_delta","content_index":0,"delta":"!"}}`,
	`{"type":"thread.updated","thread":{"title":"Warm Welcome"}}`,
	`{"type":"thread.item.updated","item_id":"cti_assistant","update":{"type":"assistant_message.content_part.done","content_index":0,"content":{"type":"output_text","text":"Hi there!"}}}`,
	`{"type":"thread.item.done","item":{"id":"cti_assistant","type":"assistant_message","content":[{"type":"output_text","text":"Hi there!"}]}}`,
}

func parseAll(t *testing.T, s *State, records []string) {
	t.Helper()
	for _, r := range records {
		require.NoError(t, s.ParseJSON(context.Background(), []byte(r)))
	}
}

func TestStateCompleteSequence(t *testing.T) {
	s := NewState()
	parseAll(t, s, completeSequence)

	th := s.Thread()
	assert.Equal(t, "cthr_123", th.ID())
	assert.Equal(t, "Warm Welcome", th.Title())
	assert.Equal(t, map[string]any{"type": "active"}, th.Status())
	require.Equal(t, 1, th.Len())

	item, ok := th.ActiveItem()
	require.True(t, ok)
	assert.Equal(t, "cti_user", item.ID)
	assert.Equal(t, []ContentPart{
		{Kind: "input_text", Text: "bonjour"},
		{Kind: "output_text", Text: "Hi there!"},
	}, item.Content)
	require.NotNil(t, item.Workflow)
	assert.Equal(t, "reasoning", item.Workflow.Kind)
	assert.Equal(t, map[string]any{"duration": float64(4)}, item.Workflow.Summary)
	assert.Equal(t, []string{"Hi", " there", "!"}, item.RawDeltas)
	assert.Equal(t, []string{"cti_user", "cti_workflow", "cti_assistant"}, item.SourceIDs)
	assert.Equal(t, int64(len(completeSequence)), s.Version())
}

func TestStateHelloScenario(t *testing.T) {
	s := NewState()
	parseAll(t, s, []string{
		`{"type":"thread.created","thread":{"id":"T1"}}`,
		`{"type":"thread.item.done","item":{"id":"I1","type":"user_message","content":[{"type":"input_text","text":"Hello"}]}}`,
		`{"type":"thread.item.added","item":{"id":"I2","type":"assistant_message","content":[]}}`,
		`{"type":"thread.item.updated","update":{"type":"content_part.added","content":{"type":"output_text","text":""}}}`,
		`{"type":"thread.item.updated","update":{"type":"content_part.text_delta","delta":"Hi"}}`,
		`{"type":"thread.item.updated","update":{"type":"content_part.done","content":{"type":"output_text","text":"Hi there"}}}`,
	})

	items := s.Thread().Items()
	require.Len(t, items, 1)
	texts := []string{}
	for _, c := range items[0].Content {
		texts = append(texts, c.Text)
	}
	assert.Contains(t, texts, "Hello")
	assert.Contains(t, texts, "Hi there")
}

func TestStateIgnoresUnknownEvents(t *testing.T) {
	s := NewState()
	require.NoError(t, s.ParseJSON(context.Background(), []byte(`{"type":"progress_update","text":"working"}`)))
	require.NoError(t, s.ParseJSON(context.Background(), []byte(`{"type":"thread.item.updated","update":{"type":"content_part.text_delta","delta":"x"}}`)))
	assert.Equal(t, 0, s.Thread().Len())
	assert.Equal(t, int64(0), s.Version())
}

func TestStateParseJSONInvalid(t *testing.T) {
	s := NewState()
	require.Error(t, s.ParseJSON(context.Background(), []byte(`{"type":`)))
}

func TestStateParseCancelled(t *testing.T) {
	s := NewState()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, s.ParseJSON(ctx, []byte(completeSequence[0])), context.Canceled)
	assert.Equal(t, "", s.Thread().ID())
}

func TestStateNotifications(t *testing.T) {
	own := events.NewCollectingSink()
	fromCtx := events.NewCollectingSink()
	s := NewState(WithSinks(own))
	ctx := events.WithEventSinks(context.Background(), fromCtx)

	for _, r := range completeSequence {
		require.NoError(t, s.ParseJSON(ctx, []byte(r)))
	}

	got := own.Events()
	require.Len(t, got, len(completeSequence))
	assert.Len(t, fromCtx.Events(), len(completeSequence))

	types := make([]events.EventType, 0, len(got))
	for _, ev := range got {
		types = append(types, ev.Type())
	}
	assert.Equal(t, []events.EventType{
		events.EventTypeThreadUpdated,
		events.EventTypeItemDone,
		events.EventTypeItemUpdated,
		events.EventTypeItemDone,
		events.EventTypeItemUpdated,
		events.EventTypeContentPartAdded,
		events.EventTypeTextDelta,
		events.EventTypeTextDelta,
		events.EventTypeTextDelta,
		events.EventTypeThreadUpdated,
		events.EventTypeContentPartDone,
		events.EventTypeItemDone,
	}, types)

	for i, ev := range got {
		md := ev.Metadata()
		assert.Equal(t, int64(i+1), md.Version)
		assert.Equal(t, s.ID, md.ConversationID)
		assert.Equal(t, "cthr_123", md.ThreadID)
	}

	delta, ok := got[8].(*events.EventTextDelta)
	require.True(t, ok)
	assert.Equal(t, "!", delta.Delta)
	assert.Equal(t, "Hi there!", delta.Text)
	assert.Equal(t, 1, delta.ContentIndex)
	assert.Equal(t, "cti_user", delta.Metadata().ItemID)
}

func TestStateFirstItemNotification(t *testing.T) {
	sink := events.NewCollectingSink()
	s := NewState(WithSinks(sink))
	require.NoError(t, s.ParseJSON(context.Background(), []byte(`{"type":"thread.item.added","item":{"id":"itm_1","type":"user_message","content":[{"type":"input_text","text":"Hello"}]}}`)))
	require.NoError(t, s.ParseJSON(context.Background(), []byte(`{"type":"thread.item.updated","update":{"type":"workflow.task.added","tasks":[{"type":"thought"}]}}`)))

	got := sink.Events()
	require.Len(t, got, 2)
	item, ok := got[0].(*events.EventItem)
	require.True(t, ok)
	assert.Equal(t, events.EventTypeItemAdded, item.Type())
	assert.Equal(t, "Hello", item.Text)
	assert.Equal(t, 1, item.ContentParts)

	wf, ok := got[1].(*events.EventWorkflowUpdated)
	require.True(t, ok)
	assert.Len(t, wf.Tasks, 1)
}

func TestStateRoundTrip(t *testing.T) {
	first := NewState()
	parseAll(t, first, completeSequence)

	second := NewState()
	parseAll(t, second, completeSequence)

	assert.Equal(t, first.Thread().Snapshot(), second.Thread().Snapshot())

	b, err := json.Marshal(first.Thread().Snapshot())
	require.NoError(t, err)
	var decoded ThreadSnapshot
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, second.Thread().Snapshot().Items[0].Text(), decoded.Items[0].Text())
	assert.Equal(t, second.Thread().Snapshot().Items[0].RawDeltas, decoded.Items[0].RawDeltas)
}

func TestStateHandlerWithFramer(t *testing.T) {
	var body strings.Builder
	for _, r := range completeSequence {
		body.WriteString("data: ")
		body.WriteString(r)
		body.WriteString("\n\n")
	}

	s := NewState()
	require.NoError(t, sse.Stream(context.Background(), strings.NewReader(body.String()), s.Handler(), sse.WithBufferSize(7)))

	item, ok := s.Thread().ActiveItem()
	require.True(t, ok)
	assert.Equal(t, "bonjourHi there!", item.Text())
}

func TestStateGroupByID(t *testing.T) {
	s := NewState(WithThreadOptions(WithItemGrouping(GroupByID)))
	parseAll(t, s, completeSequence)

	items := s.Thread().Items()
	require.Len(t, items, 3)
	assert.Equal(t, "bonjour", items[0].Text())
	assert.Equal(t, "workflow", items[1].Kind)
	assert.Equal(t, "Hi there!", items[2].Text())
	assert.Equal(t, []string{"Hi", " there", "!"}, items[2].RawDeltas)
}
