// Command semaforo shows the classroom noise traffic light in a terminal,
// following the server's zone stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/edunotas/edunotas-api/internal/dto"
)

const (
	minBackoff = time.Second
	maxBackoff = 30 * time.Second
)

func main() {
	serverFlag := flag.String("server", "ws://localhost:8080/api/v1/noise/stream", "Noise stream websocket URL")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	program := tea.NewProgram(newModel(*serverFlag), tea.WithAltScreen(), tea.WithContext(ctx))
	go follow(ctx, *serverFlag, program.Send)

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "semaforo:", err)
		os.Exit(1)
	}
}

// follow keeps a stream connection open, reconnecting with exponential backoff.
func follow(ctx context.Context, url string, send func(tea.Msg)) {
	backoff := minBackoff
	for ctx.Err() == nil {
		err := stream(ctx, url, func(ev dto.NoiseEvent) {
			backoff = minBackoff
			send(eventMsg(ev))
		})
		if ctx.Err() != nil {
			return
		}
		send(disconnectedMsg{err: err, retryIn: backoff})
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

func stream(ctx context.Context, url string, onEvent func(dto.NoiseEvent)) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, url, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var ev dto.NoiseEvent
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			return err
		}
		onEvent(ev)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
