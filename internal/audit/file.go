package audit

import (
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"bitflyer-broker/internal/core"
)

// FileSink appends entries to one CSV file created at construction. Each
// Append opens the file, writes a single record, syncs and closes it.
type FileSink struct {
	path string
	mu   sync.Mutex
}

// NewFileSink creates <dir>/<broker>/<stamp>_order_<broker>_<product>.csv
// and writes the header row, truncating any file of the same name.
func NewFileSink(dir, broker string, product core.ProductCode, now time.Time) (*FileSink, error) {
	broker = strings.TrimSpace(broker)
	if broker == "" {
		return nil, errors.New("audit broker name required")
	}
	if dir == "" {
		dir = "log"
	}
	if now.IsZero() {
		now = time.Now()
	}
	root := filepath.Join(dir, broker)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	name := now.Local().Format(fileTimeLayout) + "_order_" + broker + "_" + string(product) + ".csv"
	path := filepath.Join(root, name)
	if err := writeRecords(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, Header); err != nil {
		return nil, err
	}
	return &FileSink{path: path}, nil
}

func (s *FileSink) Path() string {
	return s.path
}

func (s *FileSink) Append(entry Entry) error {
	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeRecords(s.path, os.O_WRONLY|os.O_APPEND, entry.Record())
}

func writeRecords(path string, flag int, record []string) error {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}
