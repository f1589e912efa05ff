package core

import (
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-tcp/internal/proto"
)

func benchmarkBroadcast(b *testing.B, recipients int) {
	logger := zerolog.Nop()
	reg := NewRegistry(RegistryOptions{WriteTimeout: time.Second}, &logger)
	router := NewRouter(reg, &logger)

	var sender Origin
	for i := range recipients {
		srv, cli := net.Pipe()
		b.Cleanup(func() {
			_ = cli.Close()
			_ = srv.Close()
		})
		// Drain every recipient to avoid pipe backpressure.
		go func() { _, _ = io.Copy(io.Discard, cli) }()

		slot, err := reg.Register(srv, fmt.Sprintf("c%d", i), nil)
		if err != nil {
			b.Fatalf("register: %v", err)
		}
		if i == 0 {
			sender = Origin{Slot: slot, Conn: srv}
		}
	}

	msg := proto.Message{Kind: proto.KindBroadcast, Text: "payload"}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := router.Dispatch(msg, sender); err != nil {
			b.Fatalf("dispatch: %v", err)
		}
	}
}

func BenchmarkBroadcast_10(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkBroadcast_100(b *testing.B) { benchmarkBroadcast(b, 100) }
func BenchmarkBroadcast_500(b *testing.B) { benchmarkBroadcast(b, 500) }
