package rlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketLogSingleFileAppends(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "packets.csv")

	pl, err := NewPacketLog(path, false)
	require.NoError(t, err)

	require.NoError(t, pl.WriteReceived(time.Now(), 0, 5, 1, 128))
	require.NoError(t, pl.WriteReceived(time.Now(), 1, 5, 1, 64))
	require.NoError(t, pl.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, splitLines(string(data)), 2)
}

func TestPacketLogDailyNamesCreatesDirAndFile(t *testing.T) {
	dir := t.TempDir()
	logDir := filepath.Join(dir, "logs")

	pl, err := NewPacketLog(logDir, true)
	require.NoError(t, err)

	now := time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pl.WriteReceived(now, 0, 5, 1, 128))
	require.NoError(t, pl.Close())

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "2026-07-30.csv", entries[0].Name())
}

func TestPacketLogNilPathIsNoop(t *testing.T) {
	pl, err := NewPacketLog("", false)
	require.NoError(t, err)
	assert.NoError(t, pl.WriteReceived(time.Now(), 0, 0, 0, 0))
	assert.NoError(t, pl.Close())
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, c := range s {
		if c == '\n' {
			if i > start {
				lines = append(lines, s[start:i])
			}
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
