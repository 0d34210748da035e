package picker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock provider ---

type mockProvider struct {
	items []Item
	atEnd bool
	err   error
	delay time.Duration // Optional delay to simulate slow fetch

	last Request
}

func (p *mockProvider) Fetch(ctx context.Context, req Request) (Response, error) {
	p.last = req
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	if p.err != nil {
		return Response{}, p.err
	}
	return Response{
		RequestID: req.RequestID,
		Items:     p.items,
		AtEnd:     p.atEnd,
	}, nil
}

func items(names ...string) []Item {
	out := make([]Item, len(names))
	for i, name := range names {
		out[i] = Item{ID: "code:file:///src/" + name, Name: name, Detail: "~/src/" + name}
	}
	return out
}

func defaultTabs() []Tab {
	return []Tab{
		{ID: "code", Label: "Code"},
		{ID: "codium", Label: "VSCodium"},
	}
}

func newTestModel(p Provider) Model {
	m := NewModel(defaultTabs(), p)
	m.width = 80
	m.height = 24
	return m
}

// runCmd executes a tea.Cmd synchronously and returns the resulting message.
func runCmd(cmd tea.Cmd) tea.Msg {
	if cmd == nil {
		return nil
	}
	return cmd()
}

// drainBatch runs a batch cmd and feeds all resulting messages into the model,
// returning the final model state and any remaining cmd from the last message.
func drainBatch(t *testing.T, m Model, batchCmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	msg := runCmd(batchCmd)
	if msg == nil {
		return m, nil
	}
	// tea.Batch produces a tea.BatchMsg ([]tea.Cmd) when run.
	if batch, ok := msg.(tea.BatchMsg); ok {
		var lastCmd tea.Cmd
		for _, cmd := range batch {
			sub := runCmd(cmd)
			if sub == nil {
				continue
			}
			var result tea.Model
			result, lastCmd = m.Update(sub)
			m = result.(Model)
		}
		return m, lastCmd
	}
	// Single message.
	result, cmd := m.Update(msg)
	return result.(Model), cmd
}

// initAndLoad runs the full Init -> fetch cycle,
// returning the model in its post-fetch state (loaded, empty, or error).
func initAndLoad(t *testing.T, m Model) Model {
	t.Helper()

	m, fetchCmd := drainBatch(t, m, m.Init())
	require.Equal(t, stateLoading, m.state)

	fetchDoneMsgVal := runCmd(fetchCmd)
	require.NotNil(t, fetchDoneMsgVal)

	result, _ := m.Update(fetchDoneMsgVal)
	return result.(Model)
}

// initToLoading runs just the Init -> initMsg cycle, leaving the model in
// stateLoading with an outstanding fetch command.
func initToLoading(t *testing.T, m Model) (Model, tea.Cmd) {
	t.Helper()
	m, fetchCmd := drainBatch(t, m, m.Init())
	require.Equal(t, stateLoading, m.state)
	return m, fetchCmd
}

func typeRunes(m Model, s string) Model {
	for _, r := range s {
		result, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = result.(Model)
	}
	return m
}

// --- State transition tests ---

func TestInitialState(t *testing.T) {
	m := newTestModel(&mockProvider{})
	assert.Equal(t, stateIdle, m.state)
	assert.Equal(t, -1, m.selection)
}

func TestInit_TransitionsToLoaded(t *testing.T) {
	p := &mockProvider{items: items("alpha", "beta"), atEnd: true}
	m := initAndLoad(t, newTestModel(p))

	assert.Equal(t, stateLoaded, m.state)
	assert.Equal(t, items("alpha", "beta"), m.items)
	assert.True(t, m.atEnd)
	assert.Equal(t, "code", p.last.TabID)
	assert.Equal(t, 21, p.last.Limit)
}

func TestLoading_ToEmpty(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: []Item{}, atEnd: true}))

	assert.Equal(t, stateEmpty, m.state)
	assert.Equal(t, -1, m.selection)
}

func TestLoading_ToError(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{err: errors.New("unknown variant")}))

	assert.Equal(t, stateError, m.state)
	assert.EqualError(t, m.err, "unknown variant")
	assert.Equal(t, -1, m.selection)
}

func TestError_ToLoaded_OnTabChange(t *testing.T) {
	p := &mockProvider{err: errors.New("fail")}
	m := initAndLoad(t, newTestModel(p))
	require.Equal(t, stateError, m.state)

	p.err = nil
	p.items = items("alpha")
	p.atEnd = true

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)
	assert.Equal(t, stateLoading, m.state)

	result, _ = m.Update(runCmd(cmd))
	m = result.(Model)
	assert.Equal(t, stateLoaded, m.state)
	assert.Equal(t, "codium", p.last.TabID)
}

func TestEscCancels(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("alpha"), atEnd: true}))

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = result.(Model)
	assert.Equal(t, stateCancelled, m.state)
	_, ok := m.Result()
	assert.False(t, ok)
	assert.NotNil(t, runCmd(cmd))
}

func TestCtrlCCancels(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("alpha"), atEnd: true}))

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	m = result.(Model)
	assert.Equal(t, stateCancelled, m.state)
	_, ok := m.Result()
	assert.False(t, ok)
}

// --- Selection bounds tests ---

func TestSelectionClamped_AfterItemsShrink(t *testing.T) {
	p := &mockProvider{items: items("a", "b", "c", "d", "e"), atEnd: true}
	m := initAndLoad(t, newTestModel(p))
	m.selection = 4

	p.items = items("a", "b")
	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)
	result, _ = m.Update(runCmd(cmd))
	m = result.(Model)

	assert.Equal(t, stateLoaded, m.state)
	assert.Equal(t, 1, m.selection)
}

func TestSelectionClamped_EmptyItems(t *testing.T) {
	p := &mockProvider{items: items("a"), atEnd: true}
	m := initAndLoad(t, newTestModel(p))
	assert.Equal(t, 0, m.selection)

	p.items = []Item{}
	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)
	result, _ = m.Update(runCmd(cmd))
	m = result.(Model)

	assert.Equal(t, stateEmpty, m.state)
	assert.Equal(t, -1, m.selection)
}

// --- Stale response tests ---

func TestStaleResponse_Discarded(t *testing.T) {
	m, _ := initToLoading(t, newTestModel(&mockProvider{items: items("first"), atEnd: true}))

	result, _ := m.Update(fetchDoneMsg{requestID: m.requestID - 1, items: items("stale")})
	m = result.(Model)

	assert.Equal(t, stateLoading, m.state)
	assert.Empty(t, m.items)
}

func TestCurrentResponse_Accepted(t *testing.T) {
	m, fetchCmd := initToLoading(t, newTestModel(&mockProvider{items: items("current"), atEnd: true}))

	msg := runCmd(fetchCmd)
	assert.Equal(t, m.requestID, msg.(fetchDoneMsg).requestID)

	result, _ := m.Update(msg)
	m = result.(Model)
	assert.Equal(t, stateLoaded, m.state)
	assert.Equal(t, items("current"), m.items)
}

func TestTabChange_CancelsInflightFetch(t *testing.T) {
	p := &mockProvider{items: items("slow"), atEnd: true, delay: time.Minute}
	m, fetchCmd := initToLoading(t, newTestModel(p))

	done := make(chan tea.Msg, 1)
	go func() { done <- runCmd(fetchCmd) }()

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)

	select {
	case msg := <-done:
		assert.ErrorIs(t, msg.(fetchDoneMsg).err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("in-flight fetch was not cancelled")
	}
}

// --- Key handling tests ---

func TestUpDown_Navigation(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("a", "b", "c"), atEnd: true}))
	assert.Equal(t, 0, m.selection)

	for _, want := range []int{1, 2, 2} {
		result, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
		m = result.(Model)
		assert.Equal(t, want, m.selection)
	}
	for _, want := range []int{1, 0, 0} {
		result, _ := m.Update(tea.KeyMsg{Type: tea.KeyUp})
		m = result.(Model)
		assert.Equal(t, want, m.selection)
	}
}

func TestUpDown_NoOp_DuringLoading(t *testing.T) {
	m, _ := initToLoading(t, newTestModel(&mockProvider{items: items("a"), atEnd: true}))
	m.selection = 0

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = result.(Model)
	assert.Equal(t, 0, m.selection)
}

func TestEnter_SelectsItem(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("alpha", "beta"), atEnd: true}))

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m = result.(Model)

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = result.(Model)
	item, ok := m.Result()
	require.True(t, ok)
	assert.Equal(t, "beta", item.Name)
	assert.Equal(t, "code:file:///src/beta", item.ID)
	assert.NotNil(t, cmd)
}

func TestEnter_EmptyList_NoResult(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: []Item{}, atEnd: true}))

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = result.(Model)
	_, ok := m.Result()
	assert.False(t, ok)
}

func TestEnter_NoOp_DuringLoading(t *testing.T) {
	m, _ := initToLoading(t, newTestModel(&mockProvider{items: items("a"), atEnd: true}))

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = result.(Model)
	assert.Nil(t, cmd)
	_, ok := m.Result()
	assert.False(t, ok)
}

func TestTabCycling(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("a"), atEnd: true}))
	assert.Equal(t, 0, m.activeTab)

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)
	assert.Equal(t, 1, m.activeTab)

	result, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)
	assert.Equal(t, 0, m.activeTab)

	result, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m = result.(Model)
	assert.Equal(t, 1, m.activeTab)
}

func TestTabResetsOffset(t *testing.T) {
	m := newTestModel(&mockProvider{items: items("a"), atEnd: true})
	m.offset = 50

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)
	assert.Equal(t, 0, m.offset)
}

func TestSingleTab_TabIsNoOp(t *testing.T) {
	m := NewModel([]Tab{{ID: "code", Label: "Code"}}, &mockProvider{items: items("a"), atEnd: true})
	m = initAndLoad(t, m)

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = result.(Model)
	assert.Equal(t, 0, m.activeTab)
	assert.Nil(t, cmd)
}

func TestWithTab(t *testing.T) {
	m := newTestModel(&mockProvider{}).WithTab("codium")
	assert.Equal(t, 1, m.activeTab)

	m = newTestModel(&mockProvider{}).WithTab("missing")
	assert.Equal(t, 0, m.activeTab)
}

// --- Query / debounce tests ---

func TestTyping_AppendsToQuery(t *testing.T) {
	m := typeRunes(newTestModel(&mockProvider{items: items("a"), atEnd: true}), "ws")
	assert.Equal(t, "ws", m.query())
}

func TestBackspace_RemovesFromQuery(t *testing.T) {
	m := newTestModel(&mockProvider{items: items("a"), atEnd: true}).WithQuery("ws")

	result, _ := m.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	m = result.(Model)
	assert.Equal(t, "w", m.query())
}

func TestWithQuery_SentToProvider(t *testing.T) {
	p := &mockProvider{items: items("a"), atEnd: true}
	initAndLoad(t, newTestModel(p).WithQuery("proj"))
	assert.Equal(t, "proj", p.last.Query)
}

func TestDebounce_NewKeystrokeCancelsPrevious(t *testing.T) {
	m := typeRunes(newTestModel(&mockProvider{items: items("a"), atEnd: true}), "w")
	first := m.debounceID

	m = typeRunes(m, "s")
	second := m.debounceID
	assert.Greater(t, second, first)

	result, cmd := m.Update(debounceMsg{id: first})
	m = result.(Model)
	assert.Nil(t, cmd)
	assert.NotEqual(t, stateLoading, m.state)
}

func TestDebounce_CurrentTimerTriggersFetch(t *testing.T) {
	p := &mockProvider{items: items("found"), atEnd: true}
	m := typeRunes(newTestModel(p), "fo")

	result, cmd := m.Update(debounceMsg{id: m.debounceID})
	m = result.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, stateLoading, m.state)

	runCmd(cmd)
	assert.Equal(t, "fo", p.last.Query)
}

func TestError_QueryEditableAndRetryViaDebounce(t *testing.T) {
	p := &mockProvider{err: errors.New("boom")}
	m := initAndLoad(t, newTestModel(p))
	require.Equal(t, stateError, m.state)

	p.err = nil
	p.items = items("alpha")
	m = typeRunes(m, "a")

	result, cmd := m.Update(debounceMsg{id: m.debounceID})
	m = result.(Model)
	result, _ = m.Update(runCmd(cmd))
	m = result.(Model)
	assert.Equal(t, stateLoaded, m.state)
}

// --- WindowSizeMsg ---

func TestWindowResize_PreservesSelection(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("a", "b", "c"), atEnd: true}))
	m.selection = 2

	result, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	m = result.(Model)
	assert.Equal(t, 60, m.width)
	assert.Equal(t, 20, m.height)
	assert.Equal(t, 2, m.selection)
}

// --- View rendering ---

func TestView_ShowsTabBar(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("a"), atEnd: true}))
	view := m.View()
	assert.Contains(t, view, "Code")
	assert.Contains(t, view, "VSCodium")
}

func TestView_ShowsItems(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("alpha", "beta"), atEnd: true}))
	view := StripANSI(m.View())
	assert.Contains(t, view, "> alpha")
	assert.Contains(t, view, "~/src/alpha")
	assert.Contains(t, view, "  beta")
}

func TestView_States(t *testing.T) {
	tests := []struct {
		state pickerState
		err   error
		want  string
	}{
		{stateLoading, nil, "Loading..."},
		{stateEmpty, nil, "No matches"},
		{stateError, errors.New("test error"), "test error"},
		{stateCancelled, nil, "Cancelled"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			m := newTestModel(&mockProvider{})
			m.state = tt.state
			m.err = tt.err
			assert.Contains(t, m.View(), tt.want)
		})
	}
}

func TestView_ShowsQuery(t *testing.T) {
	m := newTestModel(&mockProvider{}).WithQuery("test")
	assert.Contains(t, StripANSI(m.View()), "test")
}

func TestView_StatusShowsRange(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("a", "b", "c"), atEnd: false}))
	assert.Contains(t, StripANSI(m.viewStatus()), "1-3+")

	m.offset = 3
	m.atEnd = true
	status := StripANSI(m.viewStatus())
	assert.Contains(t, status, "4-6")
	assert.NotContains(t, status, "+ ")
}

func TestViewList_LimitedToListHeight(t *testing.T) {
	names := make([]string, 30)
	for i := range names {
		names[i] = fmt.Sprintf("ws%02d", i)
	}
	m := newTestModel(&mockProvider{items: items(names...)})
	m.height = 8
	m = initAndLoad(t, m)

	view := StripANSI(m.viewList())
	assert.Contains(t, view, "ws04")
	assert.NotContains(t, view, "ws05")
}

// --- Paging ---

func TestPgDown_FetchesNextPage(t *testing.T) {
	p := &mockProvider{items: items("a", "b", "c"), atEnd: false}
	m := initAndLoad(t, newTestModel(p))
	m.selection = 2

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	m = result.(Model)
	require.NotNil(t, cmd)
	assert.Equal(t, stateLoading, m.state)
	assert.Equal(t, 3, m.offset)
	assert.Equal(t, 0, m.selection)

	runCmd(cmd)
	assert.Equal(t, 3, p.last.Offset)
}

func TestPgDown_NoOpAtEnd(t *testing.T) {
	m := initAndLoad(t, newTestModel(&mockProvider{items: items("a"), atEnd: true}))

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyPgDown})
	assert.Nil(t, cmd)
	assert.Equal(t, 0, result.(Model).offset)
}

func TestPgUp_FetchesPreviousPage(t *testing.T) {
	p := &mockProvider{items: items("a", "b"), atEnd: true}
	m := initAndLoad(t, newTestModel(p))

	result, cmd := m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	assert.Nil(t, cmd, "first page has no previous page")

	m = result.(Model)
	m.offset = 30
	result, cmd = m.Update(tea.KeyMsg{Type: tea.KeyPgUp})
	m = result.(Model)
	require.NotNil(t, cmd)
	// 24 rows minus the tab bar, status and query lines.
	assert.Equal(t, 9, m.offset)

	runCmd(cmd)
	assert.Equal(t, 9, p.last.Offset)
}

func TestRenderItem_Truncates(t *testing.T) {
	m := newTestModel(&mockProvider{})
	m.width = 20

	row := StripANSI(m.renderItem(Item{Name: strings.Repeat("n", 40), Detail: "~/x"}, false))
	assert.LessOrEqual(t, len([]rune(row)), 18)
	assert.Contains(t, row, "…")
	assert.NotContains(t, row, "~/x")
}

func TestRenderItem_StripsEscapes(t *testing.T) {
	m := newTestModel(&mockProvider{})
	row := StripANSI(m.renderItem(Item{Name: "evil\x1b]0;title\x07name", Detail: "~/d"}, false))
	assert.Contains(t, row, "evilname")
}

func TestHighlightName(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"wsprovider", ""},
		{"wsprovider", "xyz"},
		{"wsprovider", "wsp"},
		{"wsprovider", "WS prov"},
		{"日本語", "本"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.query, func(t *testing.T) {
			got := highlightName(tt.name, tt.query, normalStyle)
			assert.Equal(t, tt.name, StripANSI(got))
		})
	}
}
