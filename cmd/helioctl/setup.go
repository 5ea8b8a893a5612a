package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.bug.st/serial"

	"github.com/helioctl/helioctl/pkg/tracker"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct{}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("Helioctl Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	ports, err := serial.GetPortsList()
	if err != nil {
		return fmt.Errorf("list serial ports: %w", err)
	}

	var candidates []string
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}
		candidates = append(candidates, port)
	}

	if len(candidates) == 0 {
		fmt.Println("No serial ports found.")
		fmt.Println("Make sure the tracker controller is connected and powered on.")
		os.Exit(1)
	}

	var port string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Controller serial port").
				Description("The board speaking the tracker line protocol").
				Options(huh.NewOptions(candidates...)...).
				Value(&port),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	cfg, err := tracker.LoadConfigFrom(opts.Config)
	if err != nil {
		cfg = tracker.DefaultConfig()
	}
	cfg.Port = port

	if err := cfg.SaveTo(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	fmt.Println()
	printSettings(cfg)
	fmt.Println()
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Open the monitor with: " + headerStyle.Render("helioctl monitor"))

	return nil
}

func printSettings(cfg tracker.Config) {
	cellStyle := lipgloss.NewStyle().Padding(0, 1)
	headerCellStyle := cellStyle.Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Setting", "Value").
		Rows(
			[]string{"port", cfg.Port},
			[]string{"movement_timeout", fmt.Sprintf("%gs", cfg.MovementTimeout)},
			[]string{"stall_window", fmt.Sprintf("%gs", cfg.StallWindow)},
			[]string{"initial_wait", fmt.Sprintf("%gs", cfg.InitialWait)},
			[]string{"sensor_report", fmt.Sprintf("%t", cfg.SensorReport)},
			[]string{"sensor_default", cfg.SensorDefault},
		).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		})

	fmt.Println(t.Render())
}
