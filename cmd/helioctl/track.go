package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
)

type TrackCommand struct{}

func (c *TrackCommand) Execute(args []string) error {
	session, _, cleanup, err := openSession()
	if err != nil {
		return err
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		for {
			select {
			case ev := <-session.Events():
				printEvent(ev)
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := session.RunTracking(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
