package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pocketbox/internal/app/library"
	"github.com/osa030/pocketbox/internal/app/notification"
	"github.com/osa030/pocketbox/internal/infra/config"
)

// consoleStream mirrors now-playing notifications to a terminal.
type consoleStream struct {
	mu      sync.Mutex
	out     io.Writer
	stopped chan struct{}
	once    sync.Once
}

func newConsoleStream(out io.Writer) *consoleStream {
	return &consoleStream{out: out, stopped: make(chan struct{})}
}

// Send implements notification.Stream.
func (s *consoleStream) Send(np *notification.NowPlaying) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch np.Kind {
	case notification.KindTrackChanged:
		fmt.Fprintf(s.out, "♪ %s - %s [%s] (%s)\n", np.Artist, np.Title, np.Album, formatDuration(np.DurationMs))
	case notification.KindStateChanged:
		if np.IsPlaying {
			fmt.Fprintf(s.out, "▶ playing %s\n", np.Title)
		} else {
			fmt.Fprintf(s.out, "⏸ paused at %s\n", formatDuration(np.PositionMs))
		}
	case notification.KindPositionChanged:
		fmt.Fprintf(s.out, "  %s / %s\n", formatDuration(np.PositionMs), formatDuration(np.DurationMs))
	case notification.KindTrackEnded:
		fmt.Fprintf(s.out, "■ finished %s\n", np.Title)
	case notification.KindStopped:
		fmt.Fprintln(s.out, "■ stopped")
		s.once.Do(func() { close(s.stopped) })
	}
	return nil
}

// play starts playback and blocks until playback stops, the user quits or a
// signal arrives.
func play(ctx context.Context, cfg *config.Config, store *library.Store, trackID string) error {
	tracks := store.Tracks()
	if len(tracks) == 0 {
		return fmt.Errorf("library is empty")
	}
	if trackID == "" {
		trackID = tracks[0].ID
	}
	if _, ok := store.Track(trackID); !ok {
		return fmt.Errorf("track not found: %s", trackID)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	manager := notification.NewManager(cfg.SendTimeout())
	defer manager.Close()

	console := newConsoleStream(os.Stdout)
	manager.Subscribe(console)

	bridge := notification.NewBridge(manager, store, notification.BridgeConfig{
		ForwardPositions: cfg.Notification.ForwardPositions,
	})
	bridgeDone := make(chan struct{})
	go func() {
		defer close(bridgeDone)
		bridge.Run(ctx, store.Player().Events())
	}()

	if !store.PlayTrackByID(ctx, trackID) {
		return fmt.Errorf("track not found: %s", trackID)
	}

	fmt.Println("Controls: pause, resume, toggle, next, previous, seek <seconds>, tap, quit")
	quit := make(chan struct{})
	go readControls(ctx, os.Stdin, store, bridge, quit)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		zlog.Info().Msgf("pocketbox: received signal %v, stopping playback", sig)
	case <-quit:
	case <-console.stopped:
	}

	store.Cleanup()
	cancel()
	<-bridgeDone
	return nil
}

// readControls turns stdin lines into player commands until EOF or quit.
func readControls(ctx context.Context, in io.Reader, store *library.Store, bridge *notification.Bridge, quit chan<- struct{}) {
	defer close(quit)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch strings.ToLower(fields[0]) {
		case "q", "quit", "exit":
			return
		case "seek":
			if len(fields) < 2 {
				fmt.Println("usage: seek <seconds>")
				continue
			}
			sec, err := strconv.ParseFloat(fields[1], 64)
			if err != nil {
				fmt.Printf("invalid position: %s\n", fields[1])
				continue
			}
			store.SeekTo(int64(sec * 1000))
		case "tap":
			if t := store.Session().Track; t != nil {
				bridge.HandleTap(t.ID)
			}
			if id, ok := bridge.TakePendingNavigation(); ok {
				if t, found := store.Track(id); found {
					fmt.Printf("→ %s: %s - %s\n", t.ID, t.Artist, t.Title)
				}
			}
		default:
			c, err := notification.ParseControl(fields[0])
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := bridge.HandleControl(ctx, c); err != nil {
				fmt.Println(err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		zlog.Warn().Msgf("pocketbox: failed to read controls: %v", err)
	}
}
