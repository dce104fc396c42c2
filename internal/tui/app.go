// Package tui is a live terminal view of a running coopsched server.
//
// It polls GET /api/v1/stats and redraws on every refresh. Keys:
// q / ctrl+c quit, r refreshes immediately.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"coopsched/internal/sched"
)

const defaultRefresh = time.Second

// StatsFunc fetches one stats snapshot.
type StatsFunc func() (sched.Stats, error)

type statsMsg struct {
	stats sched.Stats
	at    time.Time
	err   error
}

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithRefresh overrides how often stats are polled.
func WithRefresh(d time.Duration) AppOption {
	return func(a *App) {
		if d > 0 {
			a.refresh = d
		}
	}
}

// App is the bubbletea model.
type App struct {
	source  StatsFunc
	target  string
	refresh time.Duration

	stats   sched.Stats
	prev    sched.Stats
	updated time.Time
	err     error
	polls   int

	width  int
	height int
}

// NewApp creates an App that reads stats from source. target is only shown in the header.
func NewApp(source StatsFunc, target string, opts ...AppOption) *App {
	a := &App{source: source, target: target, refresh: defaultRefresh}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Init starts the first poll.
func (a *App) Init() tea.Cmd {
	return a.fetch()
}

// Update handles key presses, resizes and poll results.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return a, tea.Quit
		case "r":
			return a, a.fetch()
		}
		return a, nil

	case statsMsg:
		a.polls++
		a.err = msg.err
		if msg.err == nil {
			a.prev = a.stats
			a.stats = msg.stats
			a.updated = msg.at
		}
		return a, a.schedule()
	}
	return a, nil
}

func (a *App) fetch() tea.Cmd {
	return func() tea.Msg {
		return a.poll()
	}
}

func (a *App) schedule() tea.Cmd {
	return tea.Tick(a.refresh, func(time.Time) tea.Msg {
		return a.poll()
	})
}

func (a *App) poll() statsMsg {
	st, err := a.source()
	return statsMsg{stats: st, at: time.Now(), err: err}
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#5B8DEF"))
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(14)
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
	errStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	busyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F5A623")).Bold(true)
	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")).MarginTop(1)
)

// queueColors keyed by priority.
var queueColors = [...]lipgloss.Color{
	sched.High:   "#FF6B6B",
	sched.Normal: "#5B8DEF",
	sched.Low:    "#7ED321",
	sched.Idle:   "#888888",
}

// View renders the dashboard.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 60
	}
	barWidth := max(10, min(40, width-30))

	header := titleStyle.Render("coopsched · " + a.target)

	st := a.stats
	depths := [...]int{sched.High: st.High, sched.Normal: st.Normal, sched.Low: st.Low, sched.Idle: st.Idle}
	peak := 1
	for _, n := range depths {
		peak = max(peak, n)
	}
	var queues []string
	for p, n := range depths {
		prio := sched.Priority(p)
		bar := lipgloss.NewStyle().Foreground(queueColors[prio]).
			Render(strings.Repeat("█", n*barWidth/peak))
		queues = append(queues, fmt.Sprintf("%s %s %s",
			labelStyle.Render(prio.String()), bar, humanize.Comma(int64(n))))
	}

	state := "idle"
	if st.Dispatching {
		state = busyStyle.Render("dispatching")
	}
	counters := []string{
		row("state", state),
		row("cycles", humanize.Comma(st.Cycles)),
		row("executed", humanize.Comma(int64(st.Executed))+a.rate(a.prev.Executed, st.Executed)),
		row("failed", humanize.Comma(int64(st.Failed))),
		row("promoted", humanize.Comma(int64(st.Promoted))),
		row("ticks", fmt.Sprintf("%s (%s dropped)", humanize.Comma(st.Ticks), humanize.Comma(st.DroppedTicks))),
	}

	body := boxStyle.Width(max(20, width-2)).Render(
		strings.Join(queues, "\n") + "\n\n" + strings.Join(counters, "\n"))

	var status string
	switch {
	case a.err != nil:
		status = errStyle.Render("error: " + a.err.Error())
	case a.updated.IsZero():
		status = "waiting for first snapshot..."
	default:
		status = "updated " + humanize.Time(a.updated)
	}

	return strings.Join([]string{
		header,
		body,
		status,
		hintStyle.Render("q quit · r refresh"),
	}, "\n")
}

// rate renders the per-poll delta, if there is a previous snapshot to compare with.
func (a *App) rate(prev, cur uint64) string {
	if a.polls < 2 || cur < prev {
		return ""
	}
	return fmt.Sprintf(" (+%s)", humanize.Comma(int64(cur-prev)))
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value
}
