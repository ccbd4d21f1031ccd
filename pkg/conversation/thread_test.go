package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemRecord(t *testing.T, s string) ItemRecord {
	t.Helper()
	var rec ItemRecord
	require.NoError(t, json.Unmarshal([]byte(s), &rec))
	return rec
}

func updateRecord(t *testing.T, s string) UpdateRecord {
	t.Helper()
	var rec UpdateRecord
	require.NoError(t, json.Unmarshal([]byte(s), &rec))
	return rec
}

func threadRecord(t *testing.T, s string) ThreadRecord {
	t.Helper()
	var rec ThreadRecord
	require.NoError(t, json.Unmarshal([]byte(s), &rec))
	return rec
}

func TestApplyThreadFieldsLastWriteWins(t *testing.T) {
	seq := NewThread()
	seq.ApplyThreadFields(threadRecord(t, `{"id":"thr_1","title":"First"}`))
	seq.ApplyThreadFields(threadRecord(t, `{"status":{"type":"active"}}`))
	seq.ApplyThreadFields(threadRecord(t, `{"title":"Second","metadata":{"k":"v"}}`))

	union := NewThread()
	union.ApplyThreadFields(threadRecord(t, `{"id":"thr_1","status":{"type":"active"},"title":"Second","metadata":{"k":"v"}}`))

	assert.Equal(t, union.Snapshot(), seq.Snapshot())
	assert.Equal(t, "Second", seq.Title())
	assert.Equal(t, map[string]any{"type": "active"}, seq.Status())
}

func TestApplyThreadFieldsNullClears(t *testing.T) {
	th := NewThread()
	th.ApplyThreadFields(threadRecord(t, `{"id":"thr_1","title":"Title","status":{"type":"active"}}`))
	th.ApplyThreadFields(threadRecord(t, `{"title":null,"status":null}`))

	assert.Equal(t, "thr_1", th.ID())
	assert.Equal(t, "", th.Title())
	assert.Nil(t, th.Status())
}

func TestTextDeltasConcatenate(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message","content":[]}`))
	th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.added","content":{"type":"output_text","text":""}}`))

	deltas := []string{"The", " quick", " brown", " fox", ""}
	for _, d := range deltas {
		_, ok := th.ApplyItemUpdate(Some("itm_1"), UpdateRecord{Type: Some("assistant_message.content_part.text_delta"), Delta: Some(d)})
		require.True(t, ok)
	}

	item, ok := th.ActiveItem()
	require.True(t, ok)
	assert.Equal(t, strings.Join(deltas, ""), item.Content[0].Text)
	assert.Equal(t, deltas, item.RawDeltas)
}

func TestTextDeltaWithoutPartCreatesOne(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message"}`))

	item, ok := th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.text_delta","delta":"Hi"}`))
	require.True(t, ok)
	require.Len(t, item.Content, 1)
	assert.Equal(t, "Hi", item.Content[0].Text)
}

func TestTextDeltaWithoutDeltaIsIgnored(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message"}`))

	_, ok := th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.text_delta"}`))
	assert.False(t, ok)
	item, _ := th.ActiveItem()
	assert.Empty(t, item.RawDeltas)
	assert.Empty(t, item.Content)
}

func TestUserMessageAlwaysAppends(t *testing.T) {
	for _, grouping := range []ItemGrouping{GroupByTurn, GroupByID} {
		t.Run(grouping.String(), func(t *testing.T) {
			th := NewThread(WithItemGrouping(grouping))
			for i := 1; i <= 3; i++ {
				th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"user_message","content":[{"type":"input_text","text":"again"}]}`))
				assert.Equal(t, i, th.Len())
			}
		})
	}
}

func TestSameIDRecordsMerge(t *testing.T) {
	for _, grouping := range []ItemGrouping{GroupByTurn, GroupByID} {
		t.Run(grouping.String(), func(t *testing.T) {
			th := NewThread(WithItemGrouping(grouping))
			th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"workflow","created_at":"t0","workflow":{"type":"reasoning","tasks":[]}}`))
			th.UpsertItem(itemRecord(t, `{"id":"itm_1","created_at":"t1","workflow":{"summary":{"duration":4}}}`))

			items := th.Items()
			require.Len(t, items, 1)
			assert.Equal(t, "itm_1", items[0].ID)
			assert.Equal(t, "workflow", items[0].Kind)
			assert.Equal(t, "t1", items[0].CreatedAt)
			require.NotNil(t, items[0].Workflow)
			assert.Equal(t, "reasoning", items[0].Workflow.Kind)
			assert.Equal(t, map[string]any{"duration": float64(4)}, items[0].Workflow.Summary)
			assert.Equal(t, []string{"itm_1"}, items[0].SourceIDs)
		})
	}
}

func TestGroupByIDAppendsOnNewID(t *testing.T) {
	th := NewThread(WithItemGrouping(GroupByID))
	th.UpsertItem(itemRecord(t, `{"id":"itm_user","type":"user_message","content":[{"type":"input_text","text":"Hello"}]}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_assistant","type":"assistant_message","content":[{"type":"output_text","text":"draft"}]}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_assistant","content":[{"type":"output_text","text":"final"}]}`))

	items := th.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "Hello", items[0].Text())
	assert.Equal(t, []ContentPart{{Kind: "output_text", Text: "final"}}, items[1].Content)
}

func TestGroupByTurnKeepsEarlierSegments(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_user","type":"user_message","content":[{"type":"input_text","text":"Hello"}]}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_assistant","type":"assistant_message","content":[{"type":"output_text","text":"draft"}]}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_assistant","content":[{"type":"output_text","text":"final"}]}`))

	items := th.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "itm_user", items[0].ID)
	assert.Equal(t, "assistant_message", items[0].Kind)
	assert.Equal(t, []ContentPart{
		{Kind: "input_text", Text: "Hello"},
		{Kind: "output_text", Text: "final"},
	}, items[0].Content)
	assert.Equal(t, []string{"itm_user", "itm_assistant"}, items[0].SourceIDs)
}

func TestEmptyRecordCreatesItem(t *testing.T) {
	th := NewThread()
	item := th.UpsertItem(itemRecord(t, `{}`))
	assert.Equal(t, 1, th.Len())
	assert.Equal(t, "", item.ID)
	assert.Empty(t, item.Content)
}

func TestApplyItemUpdateOnEmptyThread(t *testing.T) {
	th := NewThread()
	_, ok := th.ApplyItemUpdate(Some("itm_1"), updateRecord(t, `{"type":"assistant_message.content_part.text_delta","delta":"Hi"}`))
	assert.False(t, ok)
	assert.Equal(t, 0, th.Len())
	_, ok = th.ActiveItem()
	assert.False(t, ok)
}

func TestApplyItemUpdateUnknownKind(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message"}`))
	_, ok := th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.annotation_added"}`))
	assert.False(t, ok)
}

func TestApplyItemUpdateMismatchedIDTargetsActiveItem(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message","content":[{"type":"output_text","text":""}]}`))

	item, ok := th.ApplyItemUpdate(Some("itm_other"), updateRecord(t, `{"type":"assistant_message.content_part.text_delta","delta":"Hi"}`))
	require.True(t, ok)
	assert.Equal(t, "Hi", item.Text())
}

func TestContentIndexTargetsPartWithinSegment(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_user","type":"user_message","content":[{"type":"input_text","text":"Hello"}]}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_assistant","type":"assistant_message","content":[]}`))
	for _, text := range []string{"", ""} {
		th.ApplyItemUpdate(Field[string]{}, updateRecord(t, fmt.Sprintf(`{"type":"assistant_message.content_part.added","content":{"type":"output_text","text":%q}}`, text)))
	}

	th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.text_delta","content_index":0,"delta":"first"}`))
	th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.text_delta","content_index":1,"delta":"second"}`))
	th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.text_delta","content_index":7,"delta":"!"}`))

	item, _ := th.ActiveItem()
	require.Len(t, item.Content, 3)
	assert.Equal(t, "Hello", item.Content[0].Text)
	assert.Equal(t, "first", item.Content[1].Text)
	assert.Equal(t, "second!", item.Content[2].Text)
}

func TestContentPartDoneOverwrites(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message","content":[]}`))
	th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.added","content":{"type":"output_text","text":""}}`))
	th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.text_delta","delta":"Hi thre"}`))
	item, ok := th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.done","content":{"type":"output_text","text":"Hi there","annotations":[]}}`))
	require.True(t, ok)

	require.Len(t, item.Content, 1)
	assert.Equal(t, "Hi there", item.Content[0].Text)
	assert.Equal(t, []any{}, item.Content[0].Annotations)
	assert.Equal(t, []string{"Hi thre"}, item.RawDeltas)
}

func TestWorkflowUpdatesMerge(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_wf","type":"workflow","workflow":{"type":"reasoning","summary":{"duration":2},"expanded":false}}`))
	item, ok := th.ApplyItemUpdate(Some("itm_wf"), updateRecord(t, `{"type":"workflow.task.added","tasks":[{"type":"thought"}]}`))
	require.True(t, ok)

	require.NotNil(t, item.Workflow)
	assert.Len(t, item.Workflow.Tasks, 1)
	assert.Equal(t, map[string]any{"duration": float64(2)}, item.Workflow.Summary)
	require.NotNil(t, item.Workflow.Expanded)
	assert.False(t, *item.Workflow.Expanded)
}

func TestWorkflowUpdateCreatesState(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message"}`))
	item, ok := th.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"workflow.task.added","expanded":true}`))
	require.True(t, ok)
	require.NotNil(t, item.Workflow)
	require.NotNil(t, item.Workflow.Expanded)
	assert.True(t, *item.Workflow.Expanded)
}

func TestReadersReturnCopies(t *testing.T) {
	th := NewThread()
	th.ApplyThreadFields(threadRecord(t, `{"status":{"type":"active"}}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message","content":[{"type":"output_text","text":"Hi"}]}`))

	items := th.Items()
	items[0].Content[0].Text = "changed"
	status := th.Status()
	status["type"] = "closed"

	item, _ := th.ActiveItem()
	assert.Equal(t, "Hi", item.Content[0].Text)
	assert.Equal(t, "active", th.Status()["type"])
}

func TestNewThreadFromSnapshot(t *testing.T) {
	th := NewThread()
	th.ApplyThreadFields(threadRecord(t, `{"id":"thr_1","title":"Saved"}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_user","type":"user_message","content":[{"type":"input_text","text":"Hello"}]}`))
	th.UpsertItem(itemRecord(t, `{"id":"itm_assistant","type":"assistant_message","content":[{"type":"output_text","text":"Hi"}]}`))

	restored := NewThreadFromSnapshot(th.Snapshot())
	assert.Equal(t, th.Snapshot(), restored.Snapshot())

	restored.UpsertItem(itemRecord(t, `{"id":"itm_user2","type":"user_message","content":[{"type":"input_text","text":"Again"}]}`))
	restored.ApplyItemUpdate(Field[string]{}, updateRecord(t, `{"type":"assistant_message.content_part.text_delta","delta":"!"}`))
	assert.Equal(t, 2, restored.Len())
	assert.Equal(t, 1, th.Len())
	item, _ := restored.ActiveItem()
	assert.Equal(t, "Again!", item.Text())
}

func TestConcurrentUpserts(t *testing.T) {
	th := NewThread()
	recs := make([]ItemRecord, 10)
	for i := range recs {
		recs[i] = itemRecord(t, fmt.Sprintf(`{"id":"itm_%d","type":"user_message","content":[{"type":"input_text","text":"%d"}]}`, i, i))
	}

	var wg sync.WaitGroup
	for _, rec := range recs {
		wg.Add(1)
		go func(rec ItemRecord) {
			defer wg.Done()
			th.UpsertItem(rec)
		}(rec)
	}
	wg.Wait()

	items := th.Items()
	require.Len(t, items, 10)
	seen := map[string]bool{}
	for _, it := range items {
		require.Len(t, it.Content, 1)
		seen[it.ID] = true
	}
	assert.Len(t, seen, 10)
}

func TestConcurrentDeltas(t *testing.T) {
	th := NewThread()
	th.UpsertItem(itemRecord(t, `{"id":"itm_1","type":"assistant_message","content":[{"type":"output_text","text":""}]}`))

	const workers, perWorker = 10, 100
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				th.ApplyItemUpdate(Field[string]{}, UpdateRecord{
					Type:  Some("assistant_message.content_part.text_delta"),
					Delta: Some("x"),
				})
				_ = th.Snapshot()
			}
		}()
	}
	wg.Wait()

	item, _ := th.ActiveItem()
	assert.Len(t, item.RawDeltas, workers*perWorker)
	assert.Equal(t, strings.Repeat("x", workers*perWorker), item.Content[0].Text)
}

func TestParseItemGrouping(t *testing.T) {
	g, err := ParseItemGrouping("id")
	require.NoError(t, err)
	assert.Equal(t, GroupByID, g)

	g, err = ParseItemGrouping("")
	require.NoError(t, err)
	assert.Equal(t, GroupByTurn, g)

	_, err = ParseItemGrouping("bogus")
	require.Error(t, err)
}
