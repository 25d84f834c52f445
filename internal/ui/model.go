package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"campusiq-chat/internal/chat"
	"campusiq-chat/internal/clipboard"
	"campusiq-chat/internal/config"
	"campusiq-chat/internal/export"
	"campusiq-chat/internal/ragapi"
	"campusiq-chat/internal/session"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const statsPaneWidth = 34

var suggestions = []string{
	"What are the admission requirements?",
	"Tell me about the departments",
	"What facilities are available?",
}

type Model struct {
	cfg      config.AppConfig
	store    *session.Store
	orch     *chat.Orchestrator
	stats    *chat.StatsController
	client   *ragapi.Client
	exporter *export.Exporter

	input    textarea.Model
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
	keys     keyMap

	width  int
	height int

	focusOnInput bool
	cursor       int
	rendering    bool
	renderNonce  int

	backendReady bool
	healthKnown  bool

	status string
	err    error
}

type queryDoneMsg struct{ out chat.Outcome }
type statsDoneMsg struct{ out chat.StatsOutcome }
type healthDoneMsg struct {
	health ragapi.Health
	err    error
}
type renderDoneMsg struct {
	nonce      int
	rendered   string
	gotoBottom bool
}
type exportDoneMsg struct {
	path string
	err  error
}
type copyDoneMsg struct{ err error }

func NewModel(
	cfg config.AppConfig,
	store *session.Store,
	orch *chat.Orchestrator,
	stats *chat.StatsController,
	client *ragapi.Client,
	exporter *export.Exporter,
) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about NIT Kurukshetra..."
	ta.Prompt = "┃ "
	ta.CharLimit = 2000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	vp := viewport.New(60, 20)

	h := help.New()
	h.ShowAll = false

	sp := spinner.New()
	sp.Spinner = spinner.Points

	return Model{
		cfg:      cfg,
		store:    store,
		orch:     orch,
		stats:    stats,
		client:   client,
		exporter: exporter,

		input:    ta,
		viewport: vp,
		help:     h,
		spinner:  sp,
		keys:     defaultKeys(),

		focusOnInput: true,
		cursor:       -1,
	}
}

func (m Model) Init() tea.Cmd {
	// The first WindowSizeMsg triggers the initial transcript render.
	return tea.Batch(
		textarea.Blink,
		m.spinner.Tick,
		m.statsCmd(),
		m.healthCmd(),
	)
}

func (m *Model) statsCmd() tea.Cmd {
	fetch := m.stats.Refresh()
	return func() tea.Msg {
		return statsDoneMsg{out: fetch(context.Background())}
	}
}

func (m Model) healthCmd() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		h, err := client.Health(ctx)
		return healthDoneMsg{health: h, err: err}
	}
}

// submit hands the question to the orchestrator. The input box is cleared
// only once the submission is actually accepted.
func (m *Model) submit(question string) tea.Cmd {
	resolve, ok := m.orch.Submit(question)
	if !ok {
		if m.orch.Pending() && strings.TrimSpace(question) != "" {
			m.status = "Still answering your last question"
		}
		return nil
	}

	m.input.Reset()
	m.cursor = -1
	m.status = ""
	return tea.Batch(
		m.spinner.Tick,
		func() tea.Msg { return queryDoneMsg{out: resolve(context.Background())} },
		m.renderCmd(true),
	)
}

func (m *Model) exportCmd() tea.Cmd {
	msgs := m.store.Snapshot()
	if len(msgs) == 0 {
		m.status = "Nothing to export yet"
		return nil
	}
	exporter := m.exporter
	return func() tea.Msg {
		path, err := exporter.Export(msgs, time.Now())
		return exportDoneMsg{path: path, err: err}
	}
}

func (m *Model) copyCmd() tea.Cmd {
	answer, ok := m.lastAnswer()
	if !ok {
		m.status = "No answer to copy yet"
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return copyDoneMsg{err: clipboard.Copy(ctx, answer)}
	}
}

func (m Model) lastAnswer() (string, bool) {
	msgs := m.store.Snapshot()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == session.RoleBot && !msgs[i].Err {
			return msgs[i].Content, true
		}
	}
	return "", false
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		cmds = append(cmds, m.renderCmd(false))

	case queryDoneMsg:
		if _, ok := m.orch.Complete(msg.out); ok {
			m.cursor = -1
			cmds = append(cmds, m.renderCmd(true))
		}

	case statsDoneMsg:
		m.stats.Complete(msg.out)

	case healthDoneMsg:
		m.healthKnown = msg.err == nil
		m.backendReady = msg.err == nil && msg.health.RAGSystemReady

	case renderDoneMsg:
		if msg.nonce != m.renderNonce {
			break
		}
		m.rendering = false
		m.viewport.SetContent(msg.rendered)
		if msg.gotoBottom {
			m.viewport.GotoBottom()
		}

	case exportDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = "Export failed: " + msg.err.Error()
		} else {
			m.status = "Exported: " + msg.path
		}

	case copyDoneMsg:
		if msg.err != nil {
			if errors.Is(msg.err, clipboard.ErrToolNotFound) {
				m.status = "Could not copy: clipboard tool not found"
			} else {
				m.err = msg.err
				m.status = "Could not copy: " + msg.err.Error()
			}
		} else {
			m.status = "Copied answer to clipboard"
		}

	case tea.KeyMsg:
		model, cmd, handled := m.handleKey(msg)
		if handled {
			return model, cmd
		}
		m = model
		cmds = append(cmds, cmd)
	}

	if m.orch.Pending() || m.stats.State() == chat.StatsLoading {
		var spin tea.Cmd
		m.spinner, spin = m.spinner.Update(msg)
		cmds = append(cmds, spin)
	}

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	if key.Matches(msg, m.keys.Quit) {
		m.orch.Close()
		return m, tea.Quit, true
	}

	if m.focusOnInput {
		switch {
		case key.Matches(msg, m.keys.Send):
			return m, m.submit(m.input.Value()), true
		case key.Matches(msg, m.keys.Blur):
			m.focusOnInput = false
			m.input.Blur()
			return m, nil, true
		}
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd, true
	}

	switch {
	case key.Matches(msg, m.keys.QuitTranscript):
		m.orch.Close()
		return m, tea.Quit, true
	case key.Matches(msg, m.keys.Focus):
		m.focusOnInput = true
		cmd := m.input.Focus()
		return m, cmd, true
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-1)
		return m, m.renderCmd(false), true
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(1)
		return m, m.renderCmd(false), true
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil, true
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil, true
	case key.Matches(msg, m.keys.ToggleSources):
		return m, m.toggleSources(), true
	case key.Matches(msg, m.keys.RefreshStats):
		return m, tea.Batch(m.statsCmd(), m.spinner.Tick), true
	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd(), true
	case key.Matches(msg, m.keys.Copy):
		return m, m.copyCmd(), true
	}

	if m.store.Len() == 0 {
		if i := suggestionIndex(msg.String()); i >= 0 {
			return m, m.submit(suggestions[i]), true
		}
	}
	return m, nil, false
}

func suggestionIndex(k string) int {
	switch k {
	case "1":
		return 0
	case "2":
		return 1
	case "3":
		return 2
	default:
		return -1
	}
}

func (m *Model) moveCursor(delta int) {
	n := m.store.Len()
	if n == 0 {
		return
	}
	switch {
	case m.cursor < 0 && delta < 0:
		m.cursor = n - 1
	case m.cursor < 0:
		return
	default:
		m.cursor += delta
		if m.cursor < 0 {
			m.cursor = 0
		}
		if m.cursor >= n {
			m.cursor = -1
		}
	}
}

func (m *Model) toggleSources() tea.Cmd {
	id, ok := m.toggleTarget()
	if !ok {
		m.status = "No sources to show"
		return nil
	}
	switch err := m.store.ToggleSources(id); {
	case errors.Is(err, session.ErrNoSources):
		m.status = "No sources on this message"
		return nil
	case err != nil:
		m.err = err
		return nil
	}
	return m.renderCmd(false)
}

// toggleTarget picks the message whose sources the toggle applies to: the
// cursor-selected message, or the latest message carrying sources when the
// cursor is following the newest entry.
func (m Model) toggleTarget() (string, bool) {
	msgs := m.store.Snapshot()
	if m.cursor >= 0 && m.cursor < len(msgs) {
		return msgs[m.cursor].ID, true
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].HasSources() {
			return msgs[i].ID, true
		}
	}
	return "", false
}

func (m *Model) renderCmd(gotoBottom bool) tea.Cmd {
	m.rendering = true
	m.renderNonce++
	nonce := m.renderNonce

	msgs := m.store.Snapshot()
	cursor := m.cursor
	pending := m.orch.Pending()
	wrap := m.viewport.Width - 2
	if wrap < 20 {
		wrap = 20
	}

	return func() tea.Msg {
		md := buildTranscriptMarkdown(msgs, cursor, pending)
		rendered := md
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(config.DefaultGlamourStyle),
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			if out, renderErr := r.Render(md); renderErr == nil {
				rendered = out
			}
		}
		return renderDoneMsg{nonce: nonce, rendered: rendered, gotoBottom: gotoBottom}
	}
}

func buildTranscriptMarkdown(msgs []session.Message, cursor int, pending bool) string {
	if len(msgs) == 0 {
		return welcomeMarkdown()
	}

	var b strings.Builder
	for i, msg := range msgs {
		marker := ""
		if i == cursor {
			marker = "› "
		}
		stamp := msg.CreatedAt.Format("15:04")

		switch msg.Role {
		case session.RoleUser:
			b.WriteString("## " + marker + "You (" + stamp + ")\n\n")
			b.WriteString(msg.Content + "\n\n")
		case session.RoleBot:
			header := "## " + marker + "CampusIQ (" + stamp + ")"
			if msg.Err {
				header += " — failed"
			}
			b.WriteString(header + "\n\n")
			b.WriteString(msg.Content + "\n\n")
			if msg.HasSources() {
				b.WriteString(sourcesMarkdown(msg))
			}
		}
	}
	if pending {
		b.WriteString("_CampusIQ is thinking..._\n")
	}
	return b.String()
}

func sourcesMarkdown(msg session.Message) string {
	var b strings.Builder
	if !msg.SourcesExpanded {
		noun := "sources"
		if len(msg.Sources) == 1 {
			noun = "source"
		}
		fmt.Fprintf(&b, "_▶ %d %s (press s to expand)_\n\n", len(msg.Sources), noun)
		return b.String()
	}

	fmt.Fprintf(&b, "_▼ %d sources_\n\n", len(msg.Sources))
	for i, s := range msg.Sources {
		fmt.Fprintf(&b, "%d. **%s** — %s: %.3f\n", i+1, s.Title, s.ScoreType.Label(), s.Score)
		if s.URL != "" {
			b.WriteString("   <" + s.URL + ">\n")
		}
		preview := strings.Join(strings.Fields(s.ContentPreview), " ")
		if preview != "" {
			b.WriteString("   " + preview + "\n")
		}
	}
	b.WriteString("\n")
	return b.String()
}

func welcomeMarkdown() string {
	var b strings.Builder
	b.WriteString("# CampusIQ Assistant\n\n")
	b.WriteString("Ask me anything about NIT Kurukshetra.\n\n")
	b.WriteString("Type a question below, or press esc then a number to try one:\n\n")
	for i, s := range suggestions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s)
	}
	return b.String()
}

func (m *Model) resize() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	chatWidth := m.chatPaneWidth()

	inputHeight := m.input.Height() + 2
	bodyHeight := m.height - 2 - inputHeight
	if bodyHeight < 6 {
		bodyHeight = 6
	}

	m.viewport.Width = chatWidth - 2
	m.viewport.Height = bodyHeight - 2
	m.input.SetWidth(chatWidth - 2)
}

func (m Model) chatPaneWidth() int {
	w := m.width - statsPaneWidth - 1
	if w < 40 {
		w = m.width - 1
	}
	return w
}

func (m Model) showStatsPane() bool {
	return m.width-statsPaneWidth-1 >= 40
}

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Starting..."
	}

	chatWidth := m.chatPaneWidth()
	transcript := panelStyle(!m.focusOnInput).Width(chatWidth).Render(m.viewport.View())
	input := panelStyle(m.focusOnInput).Width(chatWidth).Render(m.input.View())
	left := lipgloss.JoinVertical(lipgloss.Left, transcript, input)

	body := left
	if m.showStatsPane() {
		right := panelStyle(false).Width(statsPaneWidth).Render(m.statsPane())
		body = lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.statusLine(),
		body,
		m.help.View(m.keys),
	)
}

func (m Model) statsPane() string {
	width := statsPaneWidth - 4
	var b strings.Builder
	b.WriteString(statsTitleStyle.Render("System Statistics") + "\n\n")

	switch m.stats.State() {
	case chat.StatsLoading:
		b.WriteString(m.spinner.View() + " loading...")
		return b.String()
	case chat.StatsFailed:
		b.WriteString("Unable to load statistics.\n\nPress r to retry.")
		return b.String()
	}

	stats, _ := m.stats.Snapshot()
	row := func(label, value string) {
		b.WriteString(statsLabelStyle.Render(label) + "\n")
		b.WriteString("  " + ansi.Truncate(value, width, "…") + "\n")
	}
	row("Total Chunks", formatCount(stats.TotalChunks))
	row("Documents", formatCount(stats.UniqueDocuments))
	row("Total Words", formatCount(stats.TotalWords))
	row("Avg Chunk Length", fmt.Sprintf("%.0f words", stats.AverageChunkLength))
	b.WriteString("\n")
	row("Embedding Model", stats.ModelName)
	row("Dimension", fmt.Sprintf("%d", stats.EmbeddingDimension))
	b.WriteString("\n")
	row("Groq LLM", badge(stats.GroqAvailable))
	if stats.GroqModel != nil {
		row("Groq Model", *stats.GroqModel)
	}
	row("Reranker", badge(stats.RerankerEnabled))
	return b.String()
}

func badge(enabled bool) string {
	if enabled {
		return "✓ Enabled"
	}
	return "✗ Disabled"
}

func formatCount(n int) string {
	s := fmt.Sprintf("%d", n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

func (m Model) statusLine() string {
	status := "campusiq"
	status += fmt.Sprintf("  msgs=%d", m.store.Len())
	if m.healthKnown {
		if m.backendReady {
			status += "  backend=ready"
		} else {
			status += "  backend=degraded"
		}
	}
	if m.orch.Pending() {
		status += "  " + m.spinner.View() + " thinking"
	}
	if m.rendering {
		status += "  [rendering]"
	}
	if strings.TrimSpace(m.status) != "" {
		status += "  " + strings.TrimSpace(m.status)
	}
	if m.err != nil {
		status += "  err=" + m.err.Error()
	}
	return statusStyle.Render(ansi.Truncate(status, m.width, "…"))
}

var (
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Background(lipgloss.Color("24")).
			Padding(0, 1)
	statsTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))
	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

func panelStyle(active bool) lipgloss.Style {
	border := lipgloss.NormalBorder()
	if active {
		return lipgloss.NewStyle().
			Border(border, true).
			BorderForeground(lipgloss.Color("39")).
			Padding(0, 1)
	}
	return lipgloss.NewStyle().
		Border(border, true).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
}

type keyMap struct {
	Send           key.Binding
	Blur           key.Binding
	Focus          key.Binding
	Up             key.Binding
	Down           key.Binding
	PageUp         key.Binding
	PageDown       key.Binding
	ToggleSources  key.Binding
	RefreshStats   key.Binding
	Export         key.Binding
	Copy           key.Binding
	Quit           key.Binding
	QuitTranscript key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc", "tab"),
			key.WithHelp("esc", "leave input"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab", "i"),
			key.WithHelp("i", "write"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev message"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next message"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "f"),
			key.WithHelp("pgdn", "scroll down"),
		),
		ToggleSources: key.NewBinding(
			key.WithKeys("s", "enter"),
			key.WithHelp("s", "toggle sources"),
		),
		RefreshStats: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh stats"),
		),
		Export: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "export transcript"),
		),
		Copy: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "copy answer"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		QuitTranscript: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Blur, k.Focus, k.ToggleSources, k.RefreshStats, k.Export, k.Copy, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Blur, k.Focus, k.Up, k.Down},
		{k.PageUp, k.PageDown, k.ToggleSources, k.RefreshStats},
		{k.Export, k.Copy, k.Quit, k.QuitTranscript},
	}
}
