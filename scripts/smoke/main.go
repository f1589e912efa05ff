package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/client"
	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "localhost:9000", "chat server address")
	user := flag.String("user", "tester", "username to register")
	text := flag.String("text", "hello from smoke test", "message text to broadcast")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	logger := zerolog.Nop()
	c, err := client.Dial(ctx, *addr, *user, &logger)
	if err != nil {
		return err
	}
	defer c.Close()

	if err := c.Send(proto.Message{Kind: proto.KindBroadcast, Text: *text + "\n"}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer stop()

	echoed := false
	for {
		m, err := c.Receive()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		fmt.Printf("Received: kind=%s from=%q text=%q\n", m.Kind, m.From, m.Text)

		switch {
		case m.Kind == proto.KindLeave:
			if !echoed {
				return fmt.Errorf("server ended the session before echoing the broadcast")
			}
			fmt.Println("Leave acknowledged")
			return nil
		case m.Kind == proto.KindBroadcast && m.From == *user && m.Text == *text+"\n":
			echoed = true
			if err := c.Send(proto.Message{Kind: proto.KindLeave}); err != nil {
				return fmt.Errorf("send leave: %w", err)
			}
		}
	}
}
