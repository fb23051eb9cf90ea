package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger appends timestamped lines to the target's deploy log. The log
// file is the definitive audit trail of a deployment: it is opened in
// append mode and never rotated or truncated by this package.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	tee  func(line string)
}

// OpenLogger opens (creating if needed) the append-only deploy log at
// path. If tee is non-nil every formatted line is also passed to it,
// which the server uses to stream deploy output live.
func OpenLogger(path string, tee func(line string)) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open deploy log: %w", err)
	}
	return &Logger{file: f, tee: tee}, nil
}

// Printf appends a single timestamped line to the deploy log.
func (l *Logger) Printf(format string, args ...interface{}) {
	line := fmt.Sprintf("[%s] %s", time.Now().Format("2006-01-02 15:04:05"), fmt.Sprintf(format, args...))

	l.mu.Lock()
	fmt.Fprintln(l.file, line)
	l.mu.Unlock()

	if l.tee != nil {
		l.tee(line)
	}
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
