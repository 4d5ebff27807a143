package navigation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/bus"
)

func newTestManager(t *testing.T, maxSize int) (*bus.Bus, *HistoryManager) {
	t.Helper()
	b := bus.New()
	m := NewHistoryManager(b, maxSize)
	t.Cleanup(m.Close)
	return b, m
}

func pageIDs(s State) []string {
	ids := make([]string, len(s.History))
	for i, it := range s.History {
		ids[i] = it.PageID
	}
	return ids
}

func TestForwardBranchTruncatedOnNewNavigation(t *testing.T) {
	_, m := newTestManager(t, DefaultMaxSize)

	m.AddToHistory(Item{PageID: "A"})
	m.AddToHistory(Item{PageID: "B"})
	m.AddToHistory(Item{PageID: "C"})

	back := m.GoBack()
	require.NotNil(t, back)
	assert.Equal(t, "B", back.PageID)
	assert.True(t, m.CanGoForward())

	m.AddToHistory(Item{PageID: "D"})
	s := m.State()
	assert.Equal(t, []string{"A", "B", "D"}, pageIDs(s))
	assert.Equal(t, 2, s.CurrentIndex)
	assert.False(t, s.CanGoForward)
}

func TestMaxSizeEvictsFromHead(t *testing.T) {
	_, m := newTestManager(t, 2)

	m.AddToHistory(Item{PageID: "A"})
	m.AddToHistory(Item{PageID: "B"})
	m.AddToHistory(Item{PageID: "C"})

	s := m.State()
	assert.Equal(t, []string{"B", "C"}, pageIDs(s))
	assert.Equal(t, 1, s.CurrentIndex)
}

func TestConsecutiveDuplicateIsNoop(t *testing.T) {
	b, m := newTestManager(t, DefaultMaxSize)

	rec := &bus.Recorder{}
	unsub := b.Subscribe(bus.TopicHistoryUpdated, rec.Handle)
	defer unsub()

	m.AddToHistory(Item{PageID: "A"})
	m.AddToHistory(Item{PageID: "A"})

	s := m.State()
	assert.Equal(t, []string{"A"}, pageIDs(s))
	assert.Equal(t, 1, rec.Len(), "dedup must not publish")
}

func TestBackForwardRoundTrip(t *testing.T) {
	_, m := newTestManager(t, DefaultMaxSize)

	m.AddToHistory(Item{PageID: "A"})
	m.AddToHistory(Item{PageID: "B"})
	original := m.CurrentItem()
	require.NotNil(t, original)

	back := m.GoBack()
	require.NotNil(t, back)
	assert.Equal(t, "A", back.PageID)

	fwd := m.GoForward()
	require.NotNil(t, fwd)
	assert.Equal(t, original.PageID, fwd.PageID)
}

func TestBoundaryReturnsNilWithoutPublish(t *testing.T) {
	b, m := newTestManager(t, DefaultMaxSize)
	m.AddToHistory(Item{PageID: "A"})

	rec := &bus.Recorder{}
	unsub := b.Subscribe(bus.TopicHistoryUpdated, rec.Handle)
	defer unsub()

	assert.Nil(t, m.GoBack())
	assert.Nil(t, m.GoForward())
	assert.Equal(t, 0, rec.Len())
}

func TestInvariantsHoldAcrossSequences(t *testing.T) {
	_, m := newTestManager(t, 3)

	check := func() {
		s := m.State()
		assert.GreaterOrEqual(t, s.CurrentIndex, -1)
		assert.Less(t, s.CurrentIndex, max(len(s.History), 1))
		assert.LessOrEqual(t, len(s.History), 3)
	}

	check()
	for _, id := range []string{"A", "B", "B", "C", "D"} {
		m.AddToHistory(Item{PageID: id})
		check()
	}
	m.GoBack()
	check()
	m.GoBack()
	check()
	m.AddToHistory(Item{PageID: "E"})
	check()
	m.ClearHistory()
	check()
	assert.Equal(t, -1, m.State().CurrentIndex)
}

func TestSetMaxHistorySizeTrims(t *testing.T) {
	_, m := newTestManager(t, DefaultMaxSize)
	for _, id := range []string{"A", "B", "C", "D"} {
		m.AddToHistory(Item{PageID: id})
	}

	m.SetMaxHistorySize(2)
	s := m.State()
	assert.Equal(t, []string{"C", "D"}, pageIDs(s))
	assert.Equal(t, 1, s.CurrentIndex)

	// Clamped to 1, never 0.
	m.SetMaxHistorySize(0)
	s = m.State()
	assert.Equal(t, []string{"D"}, pageIDs(s))
	assert.Equal(t, 0, s.CurrentIndex)
}

func TestBusDrivenRecording(t *testing.T) {
	b, m := newTestManager(t, DefaultMaxSize)

	b.Publish(bus.TopicPageNavigate, map[string]any{"pageId": "A", "url": "/p/A"})
	b.Publish(bus.TopicPageNavigate, map[string]any{"pageId": "B"})
	// Replays from back/forward must not re-record.
	b.Publish(bus.TopicPageNavigate, map[string]any{"pageId": "A", "fromHistory": true})

	s := m.State()
	assert.Equal(t, []string{"A", "B"}, pageIDs(s))
	assert.Equal(t, "/p/A", s.History[0].URL)
}

func TestSnapshotPublishedOnMutation(t *testing.T) {
	b, m := newTestManager(t, DefaultMaxSize)

	var states []State
	unsub := b.Subscribe(bus.TopicHistoryUpdated, func(payload any) {
		states = append(states, payload.(State))
	})
	defer unsub()

	m.AddToHistory(Item{PageID: "A"})
	m.AddToHistory(Item{PageID: "B"})
	m.GoBack()

	require.Len(t, states, 3)
	assert.Equal(t, 0, states[2].CurrentIndex)
	assert.True(t, states[2].CanGoForward)
	assert.False(t, states[2].CanGoBack)
}
