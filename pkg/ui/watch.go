package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
)

// pricesMsg carries one polling round of price rows.
type pricesMsg struct {
	rows []PriceRow
	opp  *OpportunityRow
	mode string
	at   time.Time
}

// tickMsg schedules the next poll.
type tickMsg struct{}

// Model is the price watcher TUI model.
type Model struct {
	client   *Client
	symbols  []string
	interval time.Duration

	oppSymbol string
	oppToken0 string
	oppToken1 string

	rows      []PriceRow
	opp       *OpportunityRow
	mode      string
	updatedAt time.Time
	paused    bool

	keys KeyMap
	help help.Model
}

// ModelOption configures the watcher model.
type ModelOption func(*Model)

// WithOpportunity adds a DEX-vs-CEX spread panel comparing the pool price
// of token0/token1 against the symbol's aggregated CEX price.
func WithOpportunity(symbol, token0, token1 string) ModelOption {
	return func(m *Model) {
		m.oppSymbol = symbol
		m.oppToken0 = token0
		m.oppToken1 = token1
	}
}

// New creates the watcher model.
func New(client *Client, symbols []string, interval time.Duration, opts ...ModelOption) Model {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	m := Model{
		client:   client,
		symbols:  symbols,
		interval: interval,
		keys:     DefaultKeyMap(),
		help:     help.New(),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts the first poll immediately.
func (m Model) Init() tea.Cmd {
	return m.poll()
}

func (m Model) poll() tea.Cmd {
	return func() tea.Msg {
		rows := make([]PriceRow, 0, len(m.symbols))
		for _, symbol := range m.symbols {
			rows = append(rows, m.client.FetchPrice(symbol))
		}
		var opp *OpportunityRow
		if m.oppSymbol != "" {
			row := m.client.FetchOpportunity(m.oppSymbol, m.oppToken0, m.oppToken1)
			opp = &row
		}
		mode, err := m.client.FetchMode()
		if err != nil {
			mode = "unreachable"
		}
		return pricesMsg{rows: rows, opp: opp, mode: mode, at: time.Now()}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
			if !m.paused {
				return m, m.poll()
			}
			return m, nil
		case "r":
			return m, m.poll()
		}

	case pricesMsg:
		m.rows = msg.rows
		m.opp = msg.opp
		m.mode = msg.mode
		m.updatedAt = msg.at
		return m, m.tick()

	case tickMsg:
		if m.paused {
			return m, m.tick()
		}
		return m, m.poll()
	}
	return m, nil
}

// View renders the watcher.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Somnia Liquidity Hub — Price Watch"))
	b.WriteString("\n\n")

	mode := m.mode
	if mode == "" {
		mode = "connecting..."
	}
	b.WriteString(MutedStyle.Render("dex mode: "))
	b.WriteString(ModeStyle.Render(mode))
	if m.paused {
		b.WriteString(MutedStyle.Render("  (paused)"))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderTable())
	b.WriteString("\n")

	if m.opp != nil {
		b.WriteString(m.renderOpportunity())
		b.WriteString("\n")
	}

	if !m.updatedAt.IsZero() {
		b.WriteString(MutedStyle.Render(
			fmt.Sprintf("updated %s", m.updatedAt.Format("15:04:05"))))
		b.WriteString("\n")
	}
	b.WriteString(HelpStyle.Render(m.help.View(m.keys)))
	return b.String()
}

func (m Model) renderTable() string {
	var b strings.Builder

	b.WriteString(TableHeaderStyle.Render(
		fmt.Sprintf("%-10s %16s %9s %8s", "SYMBOL", "PRICE", "SOURCES", "STATE")))
	b.WriteString("\n")

	if len(m.rows) == 0 {
		b.WriteString(MutedStyle.Render("waiting for first poll..."))
		b.WriteString("\n")
		return BoxStyle.Render(b.String())
	}

	for _, row := range m.rows {
		if row.Err != nil {
			b.WriteString(fmt.Sprintf("%-10s %s\n", row.Symbol,
				ErrorStyle.Render(truncate(row.Err.Error(), 34))))
			continue
		}
		state := "live"
		if row.Stale {
			state = StaleStyle.Render("stale")
		}
		b.WriteString(fmt.Sprintf("%-10s %16s %9d %8s\n",
			row.Symbol, row.Price.StringFixed(6), row.Sources, state))
	}
	return BoxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderOpportunity() string {
	var b strings.Builder

	b.WriteString(TableHeaderStyle.Render(
		fmt.Sprintf("%-12s %14s %14s %9s %s", "PAIR", "DEX", "CEX", "SPREAD", "SIGNAL")))
	b.WriteString("\n")

	opp := m.opp
	if opp.Err != nil {
		b.WriteString(fmt.Sprintf("%-12s %s", opp.Pair,
			ErrorStyle.Render(truncate(opp.Err.Error(), 42))))
		return BoxStyle.Render(b.String())
	}

	signal := MutedStyle.Render("flat")
	if opp.Profitable {
		signal = ModeStyle.Render(opp.Direction)
	}
	b.WriteString(fmt.Sprintf("%-12s %14s %14s %8s%% %s",
		opp.Pair,
		opp.DEXPrice.StringFixed(6),
		opp.CEXPrice.StringFixed(6),
		opp.SpreadPercent.StringFixed(3),
		signal))
	return BoxStyle.Render(b.String())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
