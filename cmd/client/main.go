package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/wirechat-tcp/internal/client"
	"github.com/vovakirdan/wirechat-tcp/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		logLevel    string
		dialTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:           "wirechat-client <address> <port> <username>",
		Short:         "Terminal client for the wirechat TCP server",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, args []string) error {
			addr := net.JoinHostPort(args[0], args[1])
			username := args[2]
			if err := client.ValidateUsername(username); err != nil {
				return err
			}

			logger := log.NewWithWriter(os.Stderr, logLevel)

			dialCtx, cancel := context.WithTimeout(context.Background(), dialTimeout)
			c, err := client.Dial(dialCtx, addr, username, logger)
			cancel()
			if err != nil {
				var rejected *client.RejectedError
				if errors.As(err, &rejected) {
					return fmt.Errorf("%w\nServer closing", err)
				}
				return err
			}
			defer c.Close()

			fmt.Printf("Chat: %s\n", c.Username())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return c.Run(ctx, os.Stdin, os.Stdout)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "off", "diagnostic log level written to stderr")
	cmd.Flags().DurationVar(&dialTimeout, "dial-timeout", 5*time.Second, "timeout for connecting and registering")

	return cmd
}
