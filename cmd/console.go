package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/luma/exar/console"
	"github.com/luma/exar/storage"
	"github.com/luma/exar/transport"
)

var (
	// The host to listen for http requests on
	httpHost string

	// The port to listen for http requests on
	httpPort string
)

func init() {
	flags := ConsoleCmd.Flags()

	flags.StringVar(&httpHost, "http-host", "127.0.0.1", "The host to listen to HTTP requests on")
	flags.StringVar(&httpPort, "http-port", "7362", "The port to listen to HTTP requests on")
}

var ConsoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start up the Exar console",
	Long: `Start up the Exar console, an HTTP API to open connections to the
Exar server, publish, subscribe and follow what the server sends back.

Usage
	exar console --http-port 7362

`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		ctx, signalStop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer signalStop()

		conf, log, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer log.Sync() //nolint:errcheck

		registry := prometheus.NewRegistry()
		registry.MustRegister(prometheus.NewGoCollector())

		store := storage.NewInmemoryStore()

		con := console.New(console.Options{
			ServerAddr: conf.Addr(),
			Username:   conf.Username,
			Password:   conf.Password,
			Opener: transport.NewTCP(transport.Options{
				DialTimeout: conf.DialTimeout,
				Trace:       conf.Trace,
				Log:         log.Named("transport"),
			}),
			Store:     store,
			Registry:  registry,
			DebugHTTP: conf.DebugHTTP,
			Log:       log.Named("console"),
		})

		s := &http.Server{
			Addr:    net.JoinHostPort(httpHost, httpPort),
			Handler: con.Handler(),
		}

		// Initializing the server in a goroutine so that
		// it won't block the graceful shutdown handling below
		go func() {
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("Http server errored", zap.Error(err))
				signalStop()
			}
		}()

		log.Info("Listening",
			zap.String("server", conf.Addr()),
			zap.String("httpHost", httpHost),
			zap.String("httpPort", httpPort))

		// Listen for the interrupt signal.
		<-ctx.Done()

		// Restore default behavior on the interrupt signal and notify user of shutdown.
		signalStop()
		log.Info("Shutting down gracefully, press Ctrl+C again to force")

		// The context is used to inform the server it has 5 seconds to finish
		// the request it is currently handling
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.SetKeepAlivesEnabled(false)

		if serr := s.Shutdown(shutdownCtx); serr != nil {
			log.Error("Http server forced to shutdown", zap.Error(serr))
			err = multierr.Append(err, serr)
		}

		err = multierr.Append(err, con.Close())
		err = multierr.Append(err, store.Close())

		log.Info("Exiting")
		return err
	},
}
