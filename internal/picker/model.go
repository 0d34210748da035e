// Package picker is a terminal picker over recent workspaces, one tab per
// editor variant.
package picker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/sahilm/fuzzy"

	"github.com/runger/wsprovider/internal/match"
)

// debounceInterval is the delay after the last keystroke before triggering a fetch.
const debounceInterval = 100 * time.Millisecond

// pickerState represents the current state of the picker's state machine.
type pickerState int

const (
	stateIdle      pickerState = iota // Initial state before first fetch
	stateLoading                      // Fetch in progress
	stateLoaded                       // Items loaded successfully (len > 0)
	stateEmpty                        // Fetch succeeded but returned 0 items
	stateError                        // Fetch failed
	stateCancelled                    // User cancelled (Esc / Ctrl+C)
)

// Tab is one picker tab.
type Tab struct {
	ID    string // Passed to the provider as Request.TabID
	Label string
}

// fetchDoneMsg is sent when an async Provider.Fetch completes.
type fetchDoneMsg struct {
	requestID uint64
	items     []Item
	atEnd     bool
	err       error
}

// debounceMsg fires after the debounce timer expires.
type debounceMsg struct {
	id uint64 // Must match current debounceID to be accepted
}

// initMsg is sent by Init() to trigger the first fetch via Update(),
// ensuring state mutations are visible to the Bubble Tea runtime.
type initMsg struct{}

// Model is the Bubble Tea model for the workspace picker.
type Model struct {
	state     pickerState
	tabs      []Tab
	activeTab int
	items     []Item
	selection int  // Index into items; -1 when empty
	offset    int  // Pagination offset
	atEnd     bool // No more pages from provider
	err       error

	// textInput holds the search query.
	textInput textinput.Model

	requestID uint64 // Monotonic counter for stale detection
	provider  Provider

	width  int // Terminal width
	height int // Terminal height

	// result holds the selected item after the user presses Enter.
	result *Item

	// cancelFetch cancels the in-flight Provider.Fetch context.
	cancelFetch context.CancelFunc

	// debounceID tracks the latest debounce timer; only a matching
	// debounceMsg will trigger a fetch.
	debounceID uint64
}

// NewModel creates a new picker Model.
func NewModel(tabs []Tab, provider Provider) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.PromptStyle = queryStyle
	ti.Placeholder = "search workspaces"
	ti.Focus()

	return Model{
		state:     stateIdle,
		tabs:      tabs,
		activeTab: 0,
		selection: -1,
		provider:  provider,
		textInput: ti,
	}
}

// WithQuery returns a copy of the model with a pre-filled query.
func (m Model) WithQuery(q string) Model {
	m.textInput.SetValue(q)
	return m
}

// query returns the current search query.
func (m Model) query() string {
	return m.textInput.Value()
}

// WithTab returns a copy of the model with the tab of the given id active.
// Unknown ids leave the first tab active.
func (m Model) WithTab(id string) Model {
	for i, tab := range m.tabs {
		if tab.ID == id {
			m.activeTab = i
			break
		}
	}
	return m
}

// Result returns the selected item. ok is false if the picker was cancelled
// or nothing was selected.
func (m Model) Result() (item Item, ok bool) {
	if m.result == nil {
		return Item{}, false
	}
	return *m.result, true
}

// Init implements tea.Model. It sends an initMsg so that the first fetch
// is triggered through Update, where state mutations are properly captured.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, func() tea.Msg { return initMsg{} })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case fetchDoneMsg:
		return m.handleFetchDone(msg)

	case debounceMsg:
		return m.handleDebounce(msg)

	case initMsg:
		return m, m.startFetch()
	}

	// Cursor blink and other input messages.
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyCtrlC:
		m.state = stateCancelled
		m.result = nil
		m.cancelInflight()
		return m, tea.Quit

	case tea.KeyEnter:
		if m.state == stateLoading {
			return m, nil
		}
		if m.selection >= 0 && m.selection < len(m.items) {
			item := m.items[m.selection]
			m.result = &item
		}
		m.cancelInflight()
		return m, tea.Quit

	case tea.KeyUp:
		if m.state == stateLoading {
			return m, nil
		}
		if m.selection > 0 {
			m.selection--
		}
		return m, nil

	case tea.KeyDown:
		if m.state == stateLoading {
			return m, nil
		}
		if m.selection < len(m.items)-1 {
			m.selection++
		}
		return m, nil

	case tea.KeyPgDown:
		if m.state != stateLoaded || m.atEnd {
			return m, nil
		}
		m.offset += len(m.items)
		m.selection = 0
		return m, m.startFetch()

	case tea.KeyPgUp:
		if m.state == stateLoading || m.offset == 0 {
			return m, nil
		}
		m.offset = max(0, m.offset-m.listHeight())
		m.selection = 0
		return m, m.startFetch()

	case tea.KeyTab, tea.KeyShiftTab:
		if len(m.tabs) > 1 {
			step := 1
			if msg.Type == tea.KeyShiftTab {
				step = len(m.tabs) - 1
			}
			m.activeTab = (m.activeTab + step) % len(m.tabs)
			m.offset = 0
			return m, m.startFetch()
		}
		return m, nil
	}

	// Everything else edits the query.
	prev := m.textInput.Value()
	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	if m.textInput.Value() != prev {
		m.offset = 0
		return m, tea.Batch(cmd, m.startDebounce())
	}
	return m, cmd
}

// handleFetchDone processes the result of an async fetch.
func (m Model) handleFetchDone(msg fetchDoneMsg) (tea.Model, tea.Cmd) {
	// Discard stale responses.
	if msg.requestID != m.requestID {
		return m, nil
	}

	if msg.err != nil {
		m.state = stateError
		m.err = msg.err
		m.items = nil
		m.selection = -1
		return m, nil
	}

	m.items = msg.items
	m.atEnd = msg.atEnd

	if len(m.items) == 0 {
		m.state = stateEmpty
		m.selection = -1
	} else {
		m.state = stateLoaded
		m.clampSelection()
	}

	return m, nil
}

// handleDebounce fires the fetch if the debounce timer is still current.
func (m Model) handleDebounce(msg debounceMsg) (tea.Model, tea.Cmd) {
	if msg.id != m.debounceID {
		return m, nil // Stale debounce timer; ignore.
	}
	return m, m.startFetch()
}

// startDebounce increments the debounce counter and returns a tea.Tick
// command that fires after debounceInterval.
func (m *Model) startDebounce() tea.Cmd {
	m.debounceID++
	id := m.debounceID
	return tea.Tick(debounceInterval, func(time.Time) tea.Msg {
		return debounceMsg{id: id}
	})
}

// startFetch cancels any in-flight fetch, increments requestID, and
// returns a tea.Cmd that calls the provider.
func (m *Model) startFetch() tea.Cmd {
	m.cancelInflight()
	m.requestID++
	m.state = stateLoading

	reqID := m.requestID
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFetch = cancel

	req := Request{
		RequestID: reqID,
		Query:     m.query(),
		TabID:     m.currentTab().ID,
		Limit:     m.listHeight(),
		Offset:    m.offset,
	}

	p := m.provider
	return func() tea.Msg {
		resp, err := p.Fetch(ctx, req)
		if err != nil {
			return fetchDoneMsg{requestID: reqID, err: err}
		}
		return fetchDoneMsg{
			requestID: reqID,
			items:     resp.Items,
			atEnd:     resp.AtEnd,
		}
	}
}

// cancelInflight cancels any in-progress fetch context.
func (m *Model) cancelInflight() {
	if m.cancelFetch != nil {
		m.cancelFetch()
		m.cancelFetch = nil
	}
}

// clampSelection ensures the selection index is within bounds.
func (m *Model) clampSelection() {
	if len(m.items) == 0 {
		m.selection = -1
		return
	}
	if m.selection < 0 {
		m.selection = 0
	}
	if m.selection >= len(m.items) {
		m.selection = len(m.items) - 1
	}
}

// currentTab returns the active Tab.
func (m Model) currentTab() Tab {
	if m.activeTab >= 0 && m.activeTab < len(m.tabs) {
		return m.tabs[m.activeTab]
	}
	return Tab{ID: "default", Label: "Default"}
}

// listHeight returns the number of visible list rows (terminal height minus
// header and footer).
func (m Model) listHeight() int {
	// 1 row for tab bar, 1 row for query line, 1 row for status
	const chrome = 3
	h := m.height - chrome
	if h < 1 {
		h = 20 // Sensible default before first WindowSizeMsg
	}
	return h
}

// --- View rendering ---

var (
	activeTabStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Background(lipgloss.Color("62"))
	inactiveTabStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selectedStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15"))
	normalStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	matchStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	queryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	errorStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	dimStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.viewTabBar())
	b.WriteRune('\n')

	b.WriteString(m.viewContent())
	b.WriteRune('\n')

	b.WriteString(m.viewStatus())
	b.WriteRune('\n')

	b.WriteString(m.viewQuery())

	return b.String()
}

// viewTabBar renders the tab bar.
func (m Model) viewTabBar() string {
	var parts []string
	for i, tab := range m.tabs {
		label := " " + tab.Label + " "
		if i == m.activeTab {
			parts = append(parts, activeTabStyle.Render(label))
		} else {
			parts = append(parts, inactiveTabStyle.Render(label))
		}
	}
	return strings.Join(parts, " ")
}

// viewContent renders the item list or a status message.
func (m Model) viewContent() string {
	switch m.state {
	case stateIdle, stateLoading:
		return dimStyle.Render("Loading...")

	case stateEmpty:
		return dimStyle.Render("No matches")

	case stateError:
		msg := "Error"
		if m.err != nil {
			msg = fmt.Sprintf("Error: %s", m.err)
		}
		return errorStyle.Render(msg)

	case stateCancelled:
		return dimStyle.Render("Cancelled")

	case stateLoaded:
		return m.viewList()

	default:
		return ""
	}
}

// viewList renders at most one page of items with the selection marker.
func (m Model) viewList() string {
	var b strings.Builder
	maxItems := m.listHeight()
	for i, item := range m.items {
		if i >= maxItems {
			break
		}
		b.WriteString(m.renderItem(item, i == m.selection))
		if i < len(m.items)-1 && i < maxItems-1 {
			b.WriteRune('\n')
		}
	}
	return b.String()
}

// viewStatus renders the range of workspaces shown and the key hints. A
// trailing "+" means more pages follow.
func (m Model) viewStatus() string {
	var pos string
	if m.state == stateLoaded {
		pos = fmt.Sprintf("%d-%d", m.offset+1, m.offset+len(m.items))
		if !m.atEnd {
			pos += "+"
		}
		pos += "  "
	}
	return dimStyle.Render(pos + "↑↓ move  PgUp/PgDn page  Tab variant  Enter open  Esc cancel")
}

// renderItem renders one row: marker, name with matched characters
// highlighted, then the dimmed location. Long rows are truncated in the
// middle, location first.
func (m Model) renderItem(item Item, selected bool) string {
	marker, base := "  ", normalStyle
	if selected {
		marker, base = "> ", selectedStyle
	}

	name := Sanitize(item.Name)
	detail := Sanitize(item.Detail)

	truncated := false
	if m.width > 4 {
		avail := m.width - 4
		nameWidth := runewidth.StringWidth(name)
		switch {
		case nameWidth >= avail:
			name = MiddleTruncate(name, avail)
			detail = ""
			truncated = true
		case detail != "":
			detail = MiddleTruncate(detail, avail-nameWidth-2)
		}
	}

	var b strings.Builder
	b.WriteString(base.Render(marker))
	if truncated {
		b.WriteString(base.Render(name))
	} else {
		b.WriteString(highlightName(name, m.query(), base))
	}
	if detail != "" {
		b.WriteString("  ")
		b.WriteString(dimStyle.Render(detail))
	}
	return b.String()
}

// highlightName renders name with the characters matched by query in
// matchStyle. Whitespace in the query is ignored.
func highlightName(name, query string, base lipgloss.Style) string {
	pattern := strings.Join(match.Terms([]string{query}), "")
	if pattern == "" || name == "" {
		return base.Render(name)
	}

	matches := fuzzy.Find(pattern, []string{name})
	if len(matches) == 0 {
		return base.Render(name)
	}
	hit := make(map[int]bool, len(matches[0].MatchedIndexes))
	for _, idx := range matches[0].MatchedIndexes {
		hit[idx] = true
	}

	var b strings.Builder
	for i, r := range name {
		if hit[i] {
			b.WriteString(matchStyle.Render(string(r)))
		} else {
			b.WriteString(base.Render(string(r)))
		}
	}
	return b.String()
}

// viewQuery renders the query input line.
func (m Model) viewQuery() string {
	return m.textInput.View()
}
