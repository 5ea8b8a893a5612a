package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/helioctl/helioctl/pkg/sequence"
)

type RunCommand struct {
	Validate bool `long:"validate" description:"Check the program structure and exit without connecting"`

	Args struct {
		File string `positional-arg-name:"file" required:"true" description:"Sequence program file"`
	} `positional-args:"true"`
}

func (c *RunCommand) Execute(args []string) error {
	data, err := os.ReadFile(c.Args.File)
	if err != nil {
		return fmt.Errorf("read sequence file: %w", err)
	}
	prog := sequence.Parse(string(data))
	if len(prog) == 0 {
		return fmt.Errorf("%s contains no instructions", c.Args.File)
	}

	if c.Validate {
		if err := prog.Validate(); err != nil {
			return err
		}
		fmt.Printf("%s: %d instructions, structure OK\n", c.Args.File, len(prog))
		return nil
	}

	session, cfg, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	runner := sequence.NewRunner(sequence.RunnerConfig{
		Sender:  session,
		Sensors: session.Sensors(),
		Events:  session.Events(),
		Sink:    printEvent,
		Timing:  timingFromConfig(cfg),
		Logger:  slog.Default(),
	})

	return runner.Run(prog)
}
