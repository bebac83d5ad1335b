package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/luma/exar/client"
	"github.com/luma/exar/cmd/gen"
	"github.com/luma/exar/internal/env"
	"github.com/luma/exar/transport"
)

var (
	// The host of the Exar server, overrides EXAR_HOST
	host string

	// The port of the Exar server, overrides EXAR_PORT
	port int
)

var RootCmd = &cobra.Command{
	Use:   "exar",
	Short: "Publish to and subscribe to Exar event collections",
	Long: `Publish to and subscribe to Exar event collections.

The server and credentials are read from EXAR_HOST, EXAR_PORT,
EXAR_USERNAME and EXAR_PASSWORD, or from a .env.local file.`,
	SilenceUsage: true,
}

func init() {
	flags := RootCmd.PersistentFlags()

	flags.StringVarP(&host, "host", "a", "", "The host of the Exar server")
	flags.IntVarP(&port, "port", "p", 0, "The port of the Exar server")

	RootCmd.AddCommand(PublishCmd)
	RootCmd.AddCommand(SubscribeCmd)
	RootCmd.AddCommand(ConsoleCmd)
	RootCmd.AddCommand(VersionCmd)
	RootCmd.AddCommand(gen.RootCmd)
}

// Execute runs the command named by the arguments and exits with 1 if it
// fails.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the config, applies the flags that were set and builds the
// logger.
func setup(ctx context.Context, cmd *cobra.Command) (*env.Config, *zap.Logger, error) {
	conf, err := env.LoadConfig(ctx)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()

	if flags.Changed("host") {
		conf.Host = host
	}

	if flags.Changed("port") {
		conf.Port = port
	}

	log, err := env.MakeLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	return conf, log, nil
}

func newClient(conf *env.Config, log *zap.Logger) *client.Client {
	return client.New(client.Options{
		Addr:     conf.Addr(),
		Username: conf.Username,
		Password: conf.Password,
		Opener: transport.NewTCP(transport.Options{
			DialTimeout: conf.DialTimeout,
			Trace:       conf.Trace,
			Log:         log.Named("transport"),
		}),
		Log: log.Named("client"),
	})
}

// connect opens a client to collection and waits for the server to accept
// it.
func connect(ctx context.Context, conf *env.Config, log *zap.Logger, collection string) (*client.Client, error) {
	c := newClient(conf, log)

	if _, err := c.Connect(ctx, collection).Wait(ctx); err != nil {
		// Giving up on the wait leaves the socket to Disconnect
		if derr := c.Disconnect(); derr != nil {
			log.Warn("Disconnect failed", zap.Error(derr))
		}

		return nil, fmt.Errorf("failed to connect to %s: %w", conf.Addr(), err)
	}

	return c, nil
}
