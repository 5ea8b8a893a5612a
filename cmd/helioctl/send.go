package main

import (
	"fmt"

	"github.com/helioctl/helioctl/pkg/tracker"
)

type SendCommand struct {
	Args struct {
		Command string `positional-arg-name:"command" required:"true" description:"Command to send (aliases FWD/REV accepted)"`
	} `positional-args:"true"`
}

func (c *SendCommand) Execute(args []string) error {
	cmd, expectAck, ok := tracker.Normalize(c.Args.Command)
	if !ok {
		return fmt.Errorf("invalid command format: %s", c.Args.Command)
	}

	session, _, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	payload, err := session.Send(cmd, tracker.SendOptions{
		ExpectAck: expectAck,
		Timeout:   tracker.CommandAckTimeout,
		Retries:   1,
	})
	if err != nil {
		return err
	}
	if payload != "" {
		fmt.Println(payload)
	}
	return nil
}
