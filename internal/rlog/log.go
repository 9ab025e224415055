// Package rlog provides structured console logging for the radio stack
// and a CSV packet log for offline analysis.
//
// Grounded on the teacher's src/textcolor.go (severity-by-color console
// output, generalized here to charmbracelet/log's structured levels
// instead of hand-rolled ANSI codes) and src/log.go (daily-named log
// files, UTC dates, directory-vs-single-file mode). Daily file naming
// uses github.com/lestrrat-go/strftime exactly as src/tq.go and
// src/xmit.go already do for timestamp formatting elsewhere in the
// teacher, rather than log.go's own hand-rolled "2006-01-02.log" Go
// time format — the pack's own precedent for "use the library, not a
// bespoke formatter."
package rlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

// Logger wraps a charmbracelet/log logger with the run id every line is
// tagged with (internal/config.NewRunID).
type Logger struct {
	*log.Logger
}

// New creates a console logger at the given level, tagged with runID.
func New(runID string, level log.Level) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Level:           level,
	})
	l = l.With("run", runID)
	return &Logger{Logger: l}
}

// PacketLog is the CSV packet log described in SPEC_FULL.md, recording
// every unique received packet's interface, stream, type and size.
// Grounded directly on log_init/log_write's daily-file-vs-single-file
// split.
type PacketLog struct {
	mu         sync.Mutex
	dailyNames bool
	path       string
	fp         *os.File
	w          *csv.Writer
	openName   string
	pattern    *strftime.Strftime
}

// NewPacketLog opens (or prepares to open) a packet log at path. If
// dailyNames is true, path is a directory and a new file is opened each
// UTC day named by the strftime pattern "%Y-%m-%d.csv"; otherwise path
// names a single file appended to directly (logrotate's job to bound
// its size, per the teacher's own comment).
func NewPacketLog(path string, dailyNames bool) (*PacketLog, error) {
	pl := &PacketLog{dailyNames: dailyNames}

	if path == "" {
		return pl, nil
	}

	if dailyNames {
		stat, err := os.Stat(path)
		switch {
		case err == nil && stat.IsDir():
			pl.path = path
		case err == nil:
			return nil, fmt.Errorf("rlog: log path %q is not a directory", path)
		default:
			if mkErr := os.Mkdir(path, 0o755); mkErr != nil {
				return nil, fmt.Errorf("rlog: creating log directory: %w", mkErr)
			}
			pl.path = path
		}
		pat, err := strftime.New("%Y-%m-%d.csv")
		if err != nil {
			return nil, err
		}
		pl.pattern = pat
	} else {
		pl.path = path
	}
	return pl, nil
}

// WriteReceived appends one CSV row for a uniquely-received packet.
func (pl *PacketLog) WriteReceived(now time.Time, ifaceIdx int, stream uint8, ptype uint8, size int) error {
	if pl == nil || pl.path == "" {
		return nil
	}

	pl.mu.Lock()
	defer pl.mu.Unlock()

	if err := pl.ensureOpenLocked(now); err != nil {
		return err
	}
	row := []string{
		now.UTC().Format(time.RFC3339Nano),
		strconv.Itoa(ifaceIdx),
		strconv.Itoa(int(stream)),
		strconv.Itoa(int(ptype)),
		strconv.Itoa(size),
	}
	if err := pl.w.Write(row); err != nil {
		return err
	}
	pl.w.Flush()
	return pl.w.Error()
}

func (pl *PacketLog) ensureOpenLocked(now time.Time) error {
	if !pl.dailyNames {
		if pl.fp != nil {
			return nil
		}
		fp, err := os.OpenFile(pl.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		pl.fp, pl.w = fp, csv.NewWriter(fp)
		return nil
	}

	name := pl.pattern.FormatString(now.UTC())
	if pl.fp != nil && name == pl.openName {
		return nil
	}
	if pl.fp != nil {
		pl.w.Flush()
		pl.fp.Close()
	}
	full := filepath.Join(pl.path, name)
	fp, err := os.OpenFile(full, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	pl.fp, pl.w, pl.openName = fp, csv.NewWriter(fp), name
	return nil
}

// Close flushes and closes the underlying file, if any is open.
func (pl *PacketLog) Close() error {
	if pl == nil {
		return nil
	}
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if pl.fp == nil {
		return nil
	}
	pl.w.Flush()
	return pl.fp.Close()
}
