// Package tui is the interactive terminal board.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trezcool/admissions/core"
	"github.com/trezcool/admissions/core/pipeline"
)

const (
	columnWidth = 28
	maxToasts   = 3
)

type (
	Options struct {
		Board   *pipeline.Board
		Toasts  *ToastQueue
		CanEdit bool
		Now     func() time.Time
		Logger  core.Logger
	}

	// Model is the board screen. Moves are applied locally in Update and committed by a tea.Cmd.
	Model struct {
		opts    Options
		ctx     context.Context
		keys    keyMap
		styles  styles
		help    help.Model
		spinner spinner.Model

		view    pipeline.View
		col     int
		row     int
		loading bool
		denied  bool
		toasts  []core.Toast
		status  string
		err     error // fatal, ends the program
		width   int
	}

	syncedMsg struct{ err error }
	movedMsg  struct{ err error }
)

func NewModel(ctx context.Context, opts Options) Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Toasts == nil {
		opts.Toasts = NewToastQueue()
	}
	m := Model{
		opts:    opts,
		ctx:     ctx,
		keys:    defaultKeys(),
		styles:  defaultStyles(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		loading: true,
	}
	opts.Board.Warm(ctx)
	m.refresh()
	return m
}

// Run shows the board until the user quits. A session failure is returned once the screen is restored.
func Run(ctx context.Context, opts Options) error {
	p := tea.NewProgram(NewModel(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := final.(Model); ok {
		return m.Err()
	}
	return nil
}

// Err is the error that ended the program, if any.
func (m Model) Err() error { return m.err }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.resync())
}

func (m Model) resync() tea.Cmd {
	board, ctx := m.opts.Board, m.ctx
	return func() tea.Msg {
		_, err := board.Resync(ctx)
		return syncedMsg{err: err}
	}
}

func (m Model) commit(tr *pipeline.Transition) tea.Cmd {
	board, ctx := m.opts.Board, m.ctx
	return func() tea.Msg {
		return movedMsg{err: board.Commit(ctx, tr)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case syncedMsg:
		m.loading = false
		return m.settle(msg.err)

	case movedMsg:
		return m.settle(msg.err)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// settle applies the outcome of a resync or commit.
func (m Model) settle(err error) (tea.Model, tea.Cmd) {
	m.refresh()
	switch {
	case err == nil:
		m.status = ""
	case core.IsSessionExpired(err):
		m.err = err
		return m, tea.Quit
	case core.IsForbidden(err):
		m.denied = true
	default:
		m.status = err.Error()
		if m.opts.Logger != nil {
			m.opts.Logger.Warn("board", err)
		}
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Left):
		m.focus(m.col-1, m.row)
	case key.Matches(msg, m.keys.Right):
		m.focus(m.col+1, m.row)
	case key.Matches(msg, m.keys.Up):
		m.focus(m.col, m.row-1)
	case key.Matches(msg, m.keys.Down):
		m.focus(m.col, m.row+1)
	case key.Matches(msg, m.keys.More):
		if len(m.view.Columns) > 0 {
			_ = m.opts.Board.LoadMore(m.view.Columns[m.col].Status)
			m.refresh()
		}
	case key.Matches(msg, m.keys.Refresh):
		m.loading = true
		return m, tea.Batch(m.spinner.Tick, m.resync())
	case key.Matches(msg, m.keys.MoveLeft):
		return m.move(-1)
	case key.Matches(msg, m.keys.MoveRight):
		return m.move(+1)
	}
	return m, nil
}

// move drops the selected card at the top of the adjacent column.
func (m Model) move(step int) (tea.Model, tea.Cmd) {
	card, ok := m.selected()
	to := m.col + step
	if !ok || to < 0 || to >= len(m.view.Columns) {
		return m, nil
	}
	if !m.opts.CanEdit {
		m.opts.Toasts.Notify(core.Toast{Level: core.LevelError, Title: "You cannot move leads"})
		m.refresh()
		return m, nil
	}

	tr, err := m.opts.Board.Apply(pipeline.Drop{
		LeadID:      card.ID,
		Source:      pipeline.Location{Status: m.view.Columns[m.col].Status, Index: m.row},
		Destination: &pipeline.Location{Status: m.view.Columns[to].Status, Index: 0},
	})
	if err != nil {
		m.status = err.Error()
		return m, nil
	}
	m.refresh()
	m.focus(to, 0)
	return m, m.commit(tr)
}

func (m Model) selected() (pipeline.Card, bool) {
	if m.col >= len(m.view.Columns) {
		return pipeline.Card{}, false
	}
	cards := m.view.Columns[m.col].Cards
	if m.row < 0 || m.row >= len(cards) {
		return pipeline.Card{}, false
	}
	return cards[m.row], true
}

func (m *Model) focus(col, row int) {
	if n := len(m.view.Columns); col >= n {
		col = n - 1
	}
	if col < 0 {
		col = 0
	}
	m.col = col
	var cards int
	if col < len(m.view.Columns) {
		cards = len(m.view.Columns[col].Cards)
	}
	if row >= cards {
		row = cards - 1
	}
	if row < 0 {
		row = 0
	}
	m.row = row
}

// refresh re-renders the board state and picks up new toasts.
func (m *Model) refresh() {
	m.view = m.opts.Board.View(m.opts.Now())
	m.toasts = append(m.toasts, m.opts.Toasts.Drain()...)
	if len(m.toasts) > maxToasts {
		m.toasts = m.toasts[len(m.toasts)-maxToasts:]
	}
	m.focus(m.col, m.row)
}

func (m Model) View() string {
	var b strings.Builder

	title := fmt.Sprintf("Admissions pipeline · %d leads", m.view.Total)
	if m.loading {
		title = m.spinner.View() + " " + title
	}
	if m.view.Pending {
		title += " · saving…"
	}
	b.WriteString(m.styles.Title.Render(title))
	b.WriteString("\n")

	if m.denied {
		b.WriteString(m.styles.Denied.Render("You do not have access to the pipeline."))
		b.WriteString("\n\n")
		b.WriteString(m.help.View(m.keys))
		return b.String()
	}

	cols := make([]string, 0, len(m.view.Columns))
	for i, col := range m.view.Columns {
		cols = append(cols, m.renderColumn(i, col))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	b.WriteString("\n")

	for _, t := range m.toasts {
		st, ok := m.styles.Toast[t.Level]
		if !ok {
			st = m.styles.Muted
		}
		line := t.Title
		if t.Description != "" {
			line += ": " + t.Description
		}
		b.WriteString(st.Render(line))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(m.styles.Muted.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) renderColumn(i int, col pipeline.ColumnView) string {
	var b strings.Builder
	header := fmt.Sprintf("%s (%d)", col.Label, col.Count)
	if col.Stalled > 0 {
		header += " " + m.styles.Stalled.Render(fmt.Sprintf("!%d", col.Stalled))
	}
	b.WriteString(m.styles.ColumnTitle.Render(header))

	for j, c := range col.Cards {
		line := truncate(c.ParentName, columnWidth-10)
		hours := fmt.Sprintf("%.0fh", c.HoursInStage)
		if c.Stalled {
			hours = m.styles.Stalled.Render(hours)
		}
		line += " " + hours
		if c.StudentSummary != "" {
			line += "\n" + m.styles.Muted.Render(truncate(c.StudentSummary, columnWidth-4))
		}
		st := m.styles.Card
		if i == m.col && j == m.row {
			st = m.styles.Selected
		}
		b.WriteString("\n")
		b.WriteString(st.Render(line))
	}
	if col.HasMore() {
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("+%d more (m)", col.Hidden)))
	}

	if i == m.col {
		return m.styles.ActiveColumn.Render(b.String())
	}
	return m.styles.Column.Render(b.String())
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
