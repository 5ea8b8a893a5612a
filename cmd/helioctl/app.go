package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/charmbracelet/lipgloss"

	"github.com/helioctl/helioctl/pkg/link"
	"github.com/helioctl/helioctl/pkg/logs"
	"github.com/helioctl/helioctl/pkg/sequence"
	"github.com/helioctl/helioctl/pkg/tracker"
)

var (
	infoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dataStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
)

// openSession loads the configuration, sets up logging and connects to the
// configured serial port.
func openSession() (*tracker.Session, tracker.Config, func(), error) {
	cfg, err := tracker.LoadConfigFrom(opts.Config)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, cfg, nil, fmt.Errorf("no configuration found; run 'helioctl setup' first")
		}
		return nil, cfg, nil, err
	}
	if cfg.Port == "" {
		return nil, cfg, nil, fmt.Errorf("no serial port configured; run 'helioctl setup' first")
	}

	debugPath := ""
	if cfg.DebugLogEnabled {
		debugPath = cfg.DebugLogPath
		if debugPath == "" {
			debugPath = "helioctl-debug.log"
		}
	}
	logger, closeLog, err := logs.New(opts.Verbose, debugPath)
	if err != nil {
		return nil, cfg, nil, err
	}
	slog.SetDefault(logger)

	conn, err := link.Open(cfg.Port)
	if err != nil {
		closeLog()
		return nil, cfg, nil, err
	}

	session := tracker.NewSession(tracker.SessionConfig{
		Conn:          conn,
		Logger:        logger,
		SensorDefault: cfg.SensorDefault,
	})
	if cfg.SensorReport {
		session.SetSensorReport(true)
	}

	cleanup := func() {
		session.Close()
		closeLog()
	}
	return session, cfg, cleanup, nil
}

func timingFromConfig(cfg tracker.Config) sequence.Timing {
	return sequence.Timing{
		InitialWait:     cfg.InitialWaitDuration(),
		StallWindow:     cfg.StallWindowDuration(),
		MovementTimeout: cfg.MovementTimeoutDuration(),
	}
}

// printEvent renders an event for the headless commands (run, track, send).
func printEvent(ev tracker.Event) {
	switch e := ev.(type) {
	case tracker.Info:
		fmt.Println(infoStyle.Render(e.Text))
	case tracker.Warn:
		fmt.Println(warnStyle.Render("warning: " + e.Text))
	case tracker.Error:
		fmt.Println(errorStyle.Render("error: " + e.Text))
	case tracker.Disconnected:
		fmt.Println(errorStyle.Render("disconnected: " + e.Reason))
	case tracker.PositionUpdate:
		fmt.Println(dataStyle.Render(fmt.Sprintf("position %.2f", e.Value)))
	case tracker.AngleUpdate:
		fmt.Println(dataStyle.Render(fmt.Sprintf("angle %.2f", e.Value)))
	case tracker.SensorUpdate:
		fmt.Println(dataStyle.Render(fmt.Sprintf("sensor %s = %s", e.Pin, e.State)))
	case tracker.Raw:
		// The reader pairs every Raw with an Info; printing both would
		// duplicate the line.
	}
}
