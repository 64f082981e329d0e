package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes winread with args and returns what it wrote to standard output.
func run(t *testing.T, args ...string) string {
	t.Helper()

	out, err := os.Create(filepath.Join(t.TempDir(), "stdout"))
	require.NoError(t, err)
	defer out.Close()

	stdout := os.Stdout
	os.Stdout = out
	defer func() { os.Stdout = stdout }()

	require.NoError(t, newApp().Run(append([]string{"winread", "--quiet"}, args...)))

	data, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	return string(data)
}

func sourceFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestCat(t *testing.T) {
	path := sourceFile(t, "the quick brown fox")

	assert.Equal(t, "the quick brown fox", run(t, "--window-size", "4", "cat", "--raw", path))
	assert.Equal(t, "quick", run(t, "--window-size", "4", "cat", "--raw", "--from", "4", "--to", "8", path))
	assert.Equal(t, "the quick brown fox", run(t, "--window-size", "4", "--read-ahead", "2", "cat", "--raw", path))

	dump := run(t, "cat", "--hex", "--to", "2", path)
	assert.True(t, strings.HasPrefix(dump, "00000000  74 68 65"), dump)
}

func TestLength(t *testing.T) {
	path := sourceFile(t, strings.Repeat("x", 5000))

	assert.Equal(t, "5000\n", run(t, "length", path))
	assert.Equal(t, "4.9 KB\n", run(t, "length", "--human", path))
}

func TestWindow(t *testing.T) {
	path := sourceFile(t, strings.Repeat("y", 10))

	var info windowInfo
	require.NoError(t, json.Unmarshal([]byte(run(t, "--window-size", "4", "window", "-p", "9", path)), &info))
	assert.Equal(t, windowInfo{Position: 8, Length: 2, EndPosition: 9, NextPosition: 12}, info)
}

func TestStats(t *testing.T) {
	path := sourceFile(t, strings.Repeat("z", 40))

	var report statsReport
	require.NoError(t, json.Unmarshal([]byte(run(t, "--window-size", "8", "--capacity", "2", "stats", "--passes", "2", path)), &report))
	assert.Equal(t, int64(80), report.Bytes)
	assert.Equal(t, int64(40), report.Source.Length)
	assert.Equal(t, "file", report.Source.Kind)
	assert.Equal(t, 2, report.Cache.Windows)
	assert.Equal(t, uint64(8), report.Cache.Evictions)
}

func TestBadInput(t *testing.T) {
	path := sourceFile(t, "abc")

	assert.Error(t, newApp().Run([]string{"winread", "--quiet", "length"}))
	assert.Error(t, newApp().Run([]string{"winread", "--quiet", "--capacity", "0", "length", path}))
	assert.Error(t, newApp().Run([]string{"winread", "--quiet", "--read-ahead", "-1", "length", path}))
	assert.Error(t, newApp().Run([]string{"winread", "--quiet", "cat", "--from", "5", "--to", "2", path}))
	assert.Error(t, newApp().Run([]string{"winread", "--quiet", "length", "s3://bucket-only"}))
}
