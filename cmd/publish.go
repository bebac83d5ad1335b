package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/exar/protocol"
)

var PublishCmd = &cobra.Command{
	Use:   "publish <collection> <data> [tag...]",
	Short: "Publish an event to a collection",
	Long: `Publish an event to a collection and print the id the server assigned
to it.

Usage
	exar publish sensors temp=21 sensor room1

`,
	Args: cobra.MinimumNArgs(2),
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

		published, err := c.Publish(protocol.NewEvent(args[1], args[2:]...)).Wait(ctx)
		if err != nil {
			return err
		}

		line, err := protocol.Encode(published)
		if err != nil {
			return err
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), string(line))
		return err
	},
}
