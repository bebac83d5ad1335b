package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/exar/protocol"
)

var query protocol.Query

var SubscribeCmd = &cobra.Command{
	Use:   "subscribe <collection>",
	Short: "Print the events of a collection",
	Long: `Print the events of a collection, one line per event, followed by
EndOfEventStream.

Without --live the command exits after the events published so far. With
--live it keeps printing new events until interrupted or until the server
closes the connection.

Usage
	exar subscribe sensors --tag sensor --limit 10

`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer signalStop()

		conf, log, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		c, err := connect(ctx, conf, log, args[0])
		if err != nil {
			return err
		}

		defer func() {
			if err := c.Disconnect(); err != nil {
				log.Warn("Disconnect failed", zap.Error(err))
			}
		}()

		p := newEventPrinter(cmd.OutOrStdout(), log)

		closed := make(chan struct{})
		c.OnClose(func() { close(closed) })

		if _, err := c.Subscribe(query, p.print).Wait(ctx); err != nil {
			return err
		}

		ended := p.ended
		if query.Live {
			// A live subscription never ends on its own
			ended = nil
		}

		select {
		case <-ctx.Done():
		case <-ended:
		case <-closed:
			return fmt.Errorf("connection to %s closed", conf.Addr())
		}

		return nil
	},
}

func init() {
	flags := SubscribeCmd.Flags()

	flags.Uint64Var(&query.Offset, "offset", 0, "The position of the first event to print")
	flags.Uint64Var(&query.Limit, "limit", 0, "The maximum number of events to print, 0 prints them all")
	flags.StringVar(&query.Tag, "tag", "", "Only print the events with this tag")
	flags.BoolVar(&query.Live, "live", false, "Keep printing events as they are published")
}

// eventPrinter writes every event it receives as a protocol line. ended is
// closed at the first end of a batch.
type eventPrinter struct {
	out io.Writer
	log *zap.Logger

	ended     chan struct{}
	endedOnce sync.Once
}

func newEventPrinter(out io.Writer, log *zap.Logger) *eventPrinter {
	return &eventPrinter{
		out:   out,
		log:   log,
		ended: make(chan struct{}),
	}
}

func (p *eventPrinter) print(event *protocol.Event) {
	if event == nil {
		fmt.Fprintln(p.out, protocol.EndOfEventStream)
		p.endedOnce.Do(func() { close(p.ended) })
		return
	}

	line, err := protocol.Encode(event)
	if err != nil {
		p.log.Warn("Failed to print event", zap.Uint64("id", event.ID), zap.Error(err))
		return
	}

	if _, err := p.out.Write(line); err != nil {
		p.log.Warn("Failed to print event", zap.Uint64("id", event.ID), zap.Error(err))
	}
}
