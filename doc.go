// Package helioctl drives a solar-tracker controller board over a serial
// line protocol and runs user-authored command sequences against it.
//
// # Installation
//
//	go install github.com/helioctl/helioctl/cmd/helioctl@latest
//
// # Usage
//
// First, run setup to pick the controller's serial port:
//
//	helioctl setup
//
// Then open the live monitor, or run a sequence file:
//
//	helioctl monitor
//	helioctl run sequence.txt
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/helioctl: CLI with setup, monitor, run, track and send commands
//   - pkg/link: serial line channel (framing, timed reads)
//   - pkg/tracker: device session (event reader, command dispatcher,
//     tracking loop) and configuration
//   - pkg/sequence: sequence program parsing and execution
package helioctl
