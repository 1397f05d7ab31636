package alpaca

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	emptyFile     = ".no-data"
	completedFile = ".last-backfill"
)

// progress persists backfill state next to the daily bars: the symbols that
// returned no data for the current end date and the last completed end date.
type progress struct {
	mu     sync.Mutex
	empty  map[string]struct{}
	file   *os.File
	writer *bufio.Writer
	dir    string
}

// openProgress loads state from dir, creating it if needed.
func openProgress(dir string) (*progress, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating progress dir: %w", err)
	}
	p := &progress{empty: make(map[string]struct{}), dir: dir}

	if data, err := os.ReadFile(filepath.Join(dir, emptyFile)); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if sym := strings.TrimSpace(line); sym != "" {
				p.empty[sym] = struct{}{}
			}
		}
	}
	if err := p.openAppend(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *progress) openAppend() error {
	f, err := os.OpenFile(filepath.Join(p.dir, emptyFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", emptyFile, err)
	}
	p.file = f
	p.writer = bufio.NewWriter(f)
	return nil
}

// IsEmpty reports whether symbol already came back without data.
func (p *progress) IsEmpty(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.empty[symbol]
	return ok
}

// MarkEmpty records symbols that returned no data.
func (p *progress) MarkEmpty(symbols []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, sym := range symbols {
		if _, ok := p.empty[sym]; ok {
			continue
		}
		p.empty[sym] = struct{}{}
		if _, err := p.writer.WriteString(sym + "\n"); err != nil {
			return fmt.Errorf("writing %s: %w", emptyFile, err)
		}
	}
	return p.writer.Flush()
}

// LastCompleted returns the last completed end date, or "".
func (p *progress) LastCompleted() string {
	data, err := os.ReadFile(filepath.Join(p.dir, completedFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// MarkCompleted records date as the last completed end date.
func (p *progress) MarkCompleted(date string) error {
	return os.WriteFile(filepath.Join(p.dir, completedFile), []byte(date), 0o644)
}

// Reset forgets the empty set, used when a new end date starts.
func (p *progress) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file != nil {
		p.file.Close()
	}
	p.empty = make(map[string]struct{})
	os.Remove(filepath.Join(p.dir, emptyFile))
	return p.openAppend()
}

// Close flushes and closes the state file.
func (p *progress) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		p.writer.Flush()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
