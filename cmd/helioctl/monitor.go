package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/helioctl/helioctl/pkg/tracker"
)

type MonitorCommand struct {
	Range float64 `long:"range" default:"360" description:"Chart Y range (± from zero)"`
}

const (
	monHeaderHeight = 2 // title + blank line
	monLegendHeight = 3 // legend + sensor row + blank
	monFooterHeight = 9 // log box height + key help
	monMaxLogs      = 6 // number of log messages to show
	monBorderSize   = 2 // chart border
)

// Chart series colors.
const (
	positionColor = "51"  // cyan
	angleColor    = "208" // orange
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type monitorModel struct {
	session *tracker.Session
	chart   *streamlinechart.Model

	width        int // terminal width
	height       int // terminal height
	logs         []string
	sensors      map[string]string
	tracking     bool
	stopTrack    context.CancelFunc
	disconnected bool
	quitting     bool
}

func (m *monitorModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > monMaxLogs {
		m.logs = m.logs[len(m.logs)-monMaxLogs:]
	}
}

// Messages from the session
type eventMsg struct{ ev tracker.Event }

func waitForEvent(s *tracker.Session) tea.Cmd {
	return func() tea.Msg {
		return eventMsg{ev: <-s.Events()}
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *monitorModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 16 // default size before we know terminal size
	}
	width = m.width - monBorderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - monHeaderHeight - monLegendHeight - monFooterHeight - monBorderSize
	if height < 8 {
		height = 8
	}
	return width, height
}

func (m *monitorModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialMonitorModel(session *tracker.Session, yRange float64) monitorModel {
	chart := streamlinechart.New(80, 16,
		streamlinechart.WithYRange(-yRange, yRange),
	)

	posStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(positionColor))
	angStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(angleColor))
	chart.SetDataSetStyles("position", runes.ThinLineStyle, posStyle)
	chart.SetDataSetStyles("angle", runes.ThinLineStyle, angStyle)

	return monitorModel{
		session: session,
		chart:   &chart,
		sensors: make(map[string]string),
	}
}

func (m monitorModel) Init() tea.Cmd {
	return waitForEvent(m.session)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case eventMsg:
		m.applyEvent(msg.ev)
		return m, waitForEvent(m.session)
	}

	return m, nil
}

func (m *monitorModel) applyEvent(ev tracker.Event) {
	switch e := ev.(type) {
	case tracker.PositionUpdate:
		m.chart.PushDataSet("position", e.Value)
		m.chart.DrawAll()
	case tracker.AngleUpdate:
		m.chart.PushDataSet("angle", e.Value)
		m.chart.DrawAll()
	case tracker.SensorUpdate:
		m.sensors[e.Pin] = e.State
	case tracker.Info:
		m.addLog(e.Text)
	case tracker.Warn:
		m.addLog("WARN " + e.Text)
	case tracker.Error:
		m.addLog("ERROR " + e.Text)
	case tracker.Disconnected:
		m.disconnected = true
		m.addLog("DISCONNECTED " + e.Reason)
	case tracker.Raw:
		// Shown via the paired Info.
	}
}

func (m monitorModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	session := m.session
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.stopTrack != nil {
			m.stopTrack()
		}
		return m, tea.Quit

	case "f":
		return m, doCommand(func() { session.RunMotor("forward") })
	case "r":
		return m, doCommand(func() { session.RunMotor("reverse") })
	case "s":
		return m, doCommand(func() { session.StopMotor() })
	case "h":
		return m, doCommand(func() { session.Home() })
	case "x":
		return m, doCommand(func() { session.StopAll() })
	case "c":
		return m, doCommand(func() { session.ReadCalibration() })

	case "t":
		if m.tracking {
			m.stopTrack()
			m.stopTrack = nil
			m.tracking = false
			return m, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.stopTrack = cancel
		m.tracking = true
		go session.RunTracking(ctx)
		return m, nil
	}

	return m, nil
}

// doCommand runs a session call off the update loop; its outcome arrives
// back as session events.
func doCommand(fn func()) tea.Cmd {
	return func() tea.Msg {
		fn()
		return nil
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Monitor stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Helioctl Monitor"))
	if m.tracking {
		sb.WriteString(successStyle.Render("  [tracking]"))
	}
	if m.disconnected {
		sb.WriteString(errorStyle.Render("  [disconnected]"))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend + sensors
	sb.WriteString(monitorLegend())
	sb.WriteString("\n")
	sb.WriteString(m.sensorLine())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Waiting for device events...")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")
	sb.WriteString(statusStyle.Render(
		"f fwd · r rev · s stop · h home · x stop all · c get cal · t tracking · q quit"))
	sb.WriteString("\n")

	return sb.String()
}

func monitorLegend() string {
	posStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(positionColor)).Bold(true)
	angStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(angleColor)).Bold(true)
	return posStyle.Render("━━") + " position  " + angStyle.Render("━━") + " angle"
}

func (m monitorModel) sensorLine() string {
	if len(m.sensors) == 0 {
		return statusStyle.Render("sensors: none reported")
	}
	pins := make([]string, 0, len(m.sensors))
	for pin := range m.sensors {
		pins = append(pins, pin)
	}
	sort.Strings(pins)
	parts := make([]string, 0, len(pins))
	for _, pin := range pins {
		parts = append(parts, fmt.Sprintf("pin %s=%s", pin, m.sensors[pin]))
	}
	return statusStyle.Render("sensors: " + strings.Join(parts, "  "))
}

func (c *MonitorCommand) Execute(args []string) error {
	session, _, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	p := tea.NewProgram(initialMonitorModel(session, c.Range), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run monitor: %w", err)
	}

	return nil
}
