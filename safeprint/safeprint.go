// Package safeprint provides process-wide serialized console output.
//
// Worker goroutines and the status reporter share one terminal. Writing
// through this package guarantees that no two concurrent writers
// interleave partial lines, and that a transient status line (shown
// while waiting on a job) is hidden before any regular output and
// restored afterwards.
//
// The status line is rewritten in place using carriage returns, so it
// must not contain newlines. Tabs are preserved when blanking it out.
package safeprint

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

var (
	mu     sync.Mutex
	out    io.Writer = os.Stdout
	status string
	active bool
)

// SetOutput redirects all output to w and returns the previous writer.
// It is primarily a test seam; the default writer is os.Stdout.
func SetOutput(w io.Writer) io.Writer {
	mu.Lock()
	defer mu.Unlock()
	prev := out
	out = w
	return prev
}

// Printf writes formatted output, hiding the status line first and
// restoring it afterwards. Safe for concurrent use from any goroutine,
// including target functions running inside pool workers.
func Printf(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	restore, line := active, status
	hideLocked()
	fmt.Fprintf(out, format, args...)
	if restore {
		showLocked(line)
	}
}

// Println writes its arguments followed by a newline, with the same
// status-line handling as Printf.
func Println(args ...any) {
	mu.Lock()
	defer mu.Unlock()
	restore, line := active, status
	hideLocked()
	fmt.Fprintln(out, args...)
	if restore {
		showLocked(line)
	}
}

// SetStatus replaces the current status line shown on screen. The line
// is not newline-terminated; a later SetStatus overwrites it in place.
func SetStatus(line string) {
	mu.Lock()
	defer mu.Unlock()
	showLocked(line)
}

// ClearStatus removes the status line from the screen, if one is shown.
func ClearStatus() {
	mu.Lock()
	defer mu.Unlock()
	hideLocked()
}

// hideLocked overwrites the shown status with whitespace and returns
// the cursor to the start of the line. Each character is replaced with
// a space, except tabs, which just move the cursor.
func hideLocked() {
	if !active {
		return
	}
	var blank strings.Builder
	for _, c := range status {
		if c == '\t' {
			blank.WriteByte('\t')
		} else {
			blank.WriteByte(' ')
		}
	}
	fmt.Fprint(out, "\r"+blank.String()+"\r")
	active = false
	status = ""
}

func showLocked(line string) {
	hideLocked()
	fmt.Fprint(out, line)
	active = true
	status = line
}
