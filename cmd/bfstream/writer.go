package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"bitflyer-broker/internal/exchange/bitflyer"
)

type streamLine struct {
	Time    string          `json:"time"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// dateWriter appends lines to <root>/<date>.jsonl, switching files when the
// date changes.
type dateWriter struct {
	root        string
	currentDate string
	currentFile *os.File
}

func newDateWriter(root string) (*dateWriter, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &dateWriter{root: root}, nil
}

func (w *dateWriter) write(date string, line []byte) error {
	if err := w.rotate(date); err != nil {
		return err
	}
	_, err := w.currentFile.Write(append(line, '\n'))
	return err
}

func (w *dateWriter) rotate(date string) error {
	if date == w.currentDate && w.currentFile != nil {
		return nil
	}
	if err := w.close(); err != nil {
		return err
	}
	path := filepath.Join(w.root, date+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.currentFile = f
	w.currentDate = date
	return nil
}

func (w *dateWriter) close() error {
	if w == nil || w.currentFile == nil {
		return nil
	}
	f := w.currentFile
	w.currentFile = nil
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// channelWriter keeps one dateWriter per realtime channel under root.
type channelWriter struct {
	root    string
	writers map[string]*dateWriter
}

func newChannelWriter(root string) *channelWriter {
	return &channelWriter{root: root, writers: map[string]*dateWriter{}}
}

func (c *channelWriter) write(msg bitflyer.Message) error {
	w, ok := c.writers[msg.Channel]
	if !ok {
		var err error
		w, err = newDateWriter(filepath.Join(c.root, safeName(msg.Channel)))
		if err != nil {
			return err
		}
		c.writers[msg.Channel] = w
	}
	ts := msg.Received.UTC()
	encoded, err := json.Marshal(streamLine{
		Time:    ts.Format("2006-01-02T15:04:05.000000Z07:00"),
		Channel: msg.Channel,
		Data:    msg.Data,
	})
	if err != nil {
		return err
	}
	return w.write(ts.Format("2006-01-02"), encoded)
}

func (c *channelWriter) close() error {
	var errs []error
	for _, w := range c.writers {
		errs = append(errs, w.close())
	}
	return errors.Join(errs...)
}

func safeName(channel string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(channel)
}
