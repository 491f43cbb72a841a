package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bitflyer-broker/internal/config"
	"bitflyer-broker/internal/exchange/bitflyer"
)

const (
	minBackoff = time.Second
	maxBackoff = time.Minute
)

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (<-chan bitflyer.Message, <-chan error, error)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	rt := bitflyer.NewRealtime(bitflyer.RealtimeOptions{
		URL:       cfg.Exchange.WSBaseURL,
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
	})
	writer := newChannelWriter(cfg.Stream.OutDir)
	defer func() {
		if err := writer.close(); err != nil {
			fmt.Fprintf(os.Stderr, "close writer failed: %v\n", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Printf("level=INFO event=stream_started channels=%q out_dir=%s", cfg.Stream.Channels, cfg.Stream.OutDir)

	backoff := minBackoff
	for ctx.Err() == nil {
		n, err := stream(ctx, rt, cfg.Stream.Channels, writer)
		if ctx.Err() != nil {
			break
		}
		if n > 0 {
			backoff = minBackoff
		}
		log.Printf("level=WARN event=stream_disconnected messages=%d retry_in=%s err=%q", n, backoff, errString(err))
		select {
		case <-ctx.Done():
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
	log.Printf("level=INFO event=stream_stopped")
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

// stream runs one subscription until it ends and returns how many messages
// were written. Decode errors from the stream are logged and skipped.
func stream(ctx context.Context, sub subscriber, channels []string, w *channelWriter) (int, error) {
	msgs, errs, err := sub.Subscribe(ctx, channels...)
	if err != nil {
		return 0, err
	}
	written := 0
	var last error
	for msgs != nil || errs != nil {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			if err := w.write(msg); err != nil {
				return written, fmt.Errorf("write %s: %w", msg.Channel, err)
			}
			written++
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			last = err
			log.Printf("level=WARN event=stream_error err=%q", err.Error())
		}
	}
	if last == nil {
		last = errors.New("stream closed")
	}
	return written, last
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
