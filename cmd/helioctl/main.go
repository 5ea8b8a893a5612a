package main

import (
	"os"

	"github.com/jessevdk/go-flags"
)

type Options struct {
	Config  string `long:"config" default:"helioctl.json" description:"Path to the configuration file"`
	Verbose bool   `short:"v" long:"verbose" description:"Enable debug logging"`

	Setup   SetupCommand   `command:"setup" description:"Pick the controller's serial port and save the configuration"`
	Monitor MonitorCommand `command:"monitor" alias:"mon" description:"Live event monitor with motor controls"`
	Run     RunCommand     `command:"run" description:"Execute a sequence file"`
	Track   TrackCommand   `command:"track" description:"Run the sun tracking loop until interrupted"`
	Send    SendCommand    `command:"send" description:"Send one command and print its acknowledgment"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	parser.LongDescription = "helioctl - solar tracker controller CLI"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}
