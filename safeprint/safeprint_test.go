package safeprint

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func redirect(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	t.Cleanup(func() {
		ClearStatus()
		SetOutput(prev)
	})
	return &buf
}

func TestPrintln_WritesLine(t *testing.T) {
	buf := redirect(t)

	Println("hello", 42)
	if got := buf.String(); got != "hello 42\n" {
		t.Fatalf("expected %q, got %q", "hello 42\n", got)
	}
}

func TestPrintf_Formats(t *testing.T) {
	buf := redirect(t)

	Printf("%s=%d\n", "k", 7)
	if got := buf.String(); got != "k=7\n" {
		t.Fatalf("expected %q, got %q", "k=7\n", got)
	}
}

func TestStatus_ShowAndClear(t *testing.T) {
	buf := redirect(t)

	SetStatus("ab\tc")
	ClearStatus()

	// The status is written, then blanked out with spaces (tabs kept as
	// tabs) and the cursor returned to the start of the line.
	want := "ab\tc" + "\r  \t \r"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestStatus_ReplacedInPlace(t *testing.T) {
	buf := redirect(t)

	SetStatus("one")
	SetStatus("two")

	want := "one" + "\r   \r" + "two"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestPrintln_HidesAndRestoresStatus(t *testing.T) {
	buf := redirect(t)

	SetStatus("st")
	Println("hello")

	want := "st" + "\r  \r" + "hello\n" + "st"
	if got := buf.String(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestClearStatus_NoStatusIsNoOp(t *testing.T) {
	buf := redirect(t)

	ClearStatus()
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestPrintln_ConcurrentWritersDoNotInterleave(t *testing.T) {
	buf := redirect(t)

	const writers = 16
	const lines = 50
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		w := w
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < lines; i++ {
				Println(fmt.Sprintf("writer-%02d-line-%02d", w, i))
			}
		}()
	}
	wg.Wait()

	got := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(got) != writers*lines {
		t.Fatalf("expected %d lines, got %d", writers*lines, len(got))
	}
	for _, line := range got {
		if !strings.HasPrefix(line, "writer-") || len(line) != len("writer-00-line-00") {
			t.Fatalf("interleaved or truncated line: %q", line)
		}
	}
}
