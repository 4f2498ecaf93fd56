package infrastructure

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ProcessLog appends raw tool output to a daily file, framed by a command
// header and a status footer:
//
//	=== [2024-01-02 15:04:05] retrieve https://youtu.be/... ===
//	$ yt-dlp -f 18 ...
//	...tool output...
//	[2024-01-02 15:04:09] SUCCESS: downloaded
//	=== END ===
type ProcessLog struct {
	logsDir string
}

// NewProcessLog creates a process log writing to logsDir.
// An empty logsDir discards all output.
func NewProcessLog(logsDir string) *ProcessLog {
	return &ProcessLog{logsDir: logsDir}
}

// Path returns today's log file path
func (l *ProcessLog) Path() string {
	return filepath.Join(l.logsDir, "download-"+time.Now().Format("20060102")+".log")
}

// ProcessEntry is one framed section of the process log
type ProcessEntry struct {
	w     io.Writer
	close func() error
}

// Begin opens today's file and writes the section header
func (l *ProcessLog) Begin(label string, cmd Command) (*ProcessEntry, error) {
	if l == nil || l.logsDir == "" {
		return &ProcessEntry{w: io.Discard, close: func() error { return nil }}, nil
	}

	if err := os.MkdirAll(l.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	file, err := os.OpenFile(l.Path(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open process log: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(file, "\n=== [%s] %s ===\n", timestamp, label)
	fmt.Fprintf(file, "$ %s\n", cmd.String())

	return &ProcessEntry{w: file, close: file.Close}, nil
}

// Writer returns the destination for tool stdout/stderr
func (e *ProcessEntry) Writer() io.Writer {
	return e.w
}

// End writes the footer and closes the file
func (e *ProcessEntry) End(err error, message string) error {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if err != nil {
		status = "FAILED"
		message = fmt.Sprintf("%s: %v", message, err)
	}
	fmt.Fprintf(e.w, "[%s] %s: %s\n", timestamp, status, message)
	fmt.Fprint(e.w, "=== END ===\n\n")
	return e.close()
}
