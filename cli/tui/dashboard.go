package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DashboardData is the view-model snapshot rendered once per refresh.
// Built by cmd/devicesim from the live scheduler, VAD machine, upload
// engine and retention controller; the TUI itself never touches those
// packages directly.
type DashboardData struct {
	DeviceID string

	Recording    bool
	WiFiOK       bool
	WiFiRSSI     int
	NTPSynced    bool
	BacklogCount int64

	SDUsedMB             uint64
	SDFreeMB             uint64
	SDFreePercent        uint8
	MinFreePercent       uint8
	EmergencyFreePercent uint8

	PhotosCaptured int64
	AudioClipsKept int64
	UploadSuccess  int64
	UploadFailure  int64

	// AttemptHistogram maps an upload attempt count (0, 1, 2, ...) to
	// the number of PENDING manifests currently sitting at that count.
	AttemptHistogram map[int]int64
}

// PollFunc produces a fresh DashboardData snapshot on demand.
type PollFunc func() (DashboardData, error)

type tickMsg time.Time

type dataMsg struct {
	data DashboardData
	err  error
}

// DashboardModel is the Bubble Tea model for the live status dashboard.
type DashboardModel struct {
	poll     PollFunc
	interval time.Duration

	data     DashboardData
	lastErr  error
	width    int
	height   int
	quitting bool
}

// NewDashboardModel builds a DashboardModel that refreshes by calling
// poll every interval.
func NewDashboardModel(poll PollFunc, interval time.Duration) DashboardModel {
	if interval <= 0 {
		interval = time.Second
	}
	return DashboardModel{poll: poll, interval: interval}
}

func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetch(), m.tick())
}

func (m DashboardModel) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m DashboardModel) fetch() tea.Cmd {
	return func() tea.Msg {
		data, err := m.poll()
		return dataMsg{data: data, err: err}
	}
}

func (m DashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, dashboardKeys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.fetch(), m.tick())

	case dataMsg:
		m.lastErr = msg.err
		if msg.err == nil {
			m.data = msg.data
		}
		return m, nil
	}
	return m, nil
}

func (m DashboardModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Sensor Node: %s", m.data.DeviceID)))
	b.WriteString("\n\n")

	if m.lastErr != nil {
		b.WriteString(ErrorStyle.Render("poll failed: "+m.lastErr.Error()) + "\n\n")
	}

	b.WriteString(m.renderStatus())
	b.WriteString("\n\n")
	b.WriteString(m.renderStorage())
	b.WriteString("\n\n")
	b.WriteString(m.renderCounters())
	b.WriteString("\n\n")
	b.WriteString(m.renderHistogram())

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return b.String() + "\n" + help
}

func (m DashboardModel) renderStatus() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Recording:"),
		RecordingStyle(m.data.Recording).Render(boolLabel(m.data.Recording, "yes", "no"))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Wi-Fi:"),
		StatusStyle(m.data.WiFiOK).Render(fmt.Sprintf("%s (%d dBm)", boolLabel(m.data.WiFiOK, "up", "down"), m.data.WiFiRSSI))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("NTP synced:"),
		StatusStyle(m.data.NTPSynced).Render(boolLabel(m.data.NTPSynced, "yes", "no"))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Backlog:"),
		ValueStyle.Render(fmt.Sprintf("%d pending", m.data.BacklogCount))))
	return BoxStyle.Render(b.String())
}

func (m DashboardModel) renderStorage() string {
	style := FreeSpaceStyle(m.data.SDFreePercent, m.data.MinFreePercent, m.data.EmergencyFreePercent)

	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("SD used:"),
		ValueStyle.Render(fmt.Sprintf("%d MB", m.data.SDUsedMB))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("SD free:"),
		style.Render(fmt.Sprintf("%d MB (%d%%)", m.data.SDFreeMB, m.data.SDFreePercent))))
	return BoxStyle.Render(b.String())
}

func (m DashboardModel) renderCounters() string {
	boxes := []string{
		m.renderStatBox("Photos", m.data.PhotosCaptured, lipgloss.Color("#3B82F6")),
		m.renderStatBox("Clips Kept", m.data.AudioClipsKept, successColor),
		m.renderStatBox("Uploaded", m.data.UploadSuccess, successColor),
		m.renderStatBox("Upload Fails", m.data.UploadFailure, errorColor),
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (m DashboardModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)
	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)
	return boxStyle.Render(content)
}

func (m DashboardModel) renderHistogram() string {
	if len(m.data.AttemptHistogram) == 0 {
		return TitleStyle.Render("Upload Attempts") + "\n" + ValueStyle.Render("(backlog empty)")
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Upload Attempts"))
	b.WriteString("\n")
	for attempt := 0; attempt <= maxAttempt(m.data.AttemptHistogram); attempt++ {
		count := m.data.AttemptHistogram[attempt]
		bar := strings.Repeat("#", int(count))
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			LabelStyle.Render(fmt.Sprintf("attempt %d:", attempt)),
			WarningStyle.Render(bar),
			ValueStyle.Render(fmt.Sprintf("(%d)", count))))
	}
	return b.String()
}

func maxAttempt(histogram map[int]int64) int {
	max := 0
	for attempt := range histogram {
		if attempt > max {
			max = attempt
		}
	}
	return max
}

func boolLabel(v bool, ifTrue, ifFalse string) string {
	if v {
		return ifTrue
	}
	return ifFalse
}

type dashboardKeyMap struct {
	Quit key.Binding
}

var dashboardKeys = dashboardKeyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunDashboard starts the live dashboard TUI, polling poll every
// interval until the user quits.
func RunDashboard(poll PollFunc, interval time.Duration) error {
	model := NewDashboardModel(poll, interval)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderDashboardStatic renders one poll of dashboard data without
// entering the full TUI loop, for `devicesim inspect`'s non-interactive
// output.
func RenderDashboardStatic(data DashboardData) string {
	model := DashboardModel{data: data, width: 80, height: 24}
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
