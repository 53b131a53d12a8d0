package job

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"

	"github.com/utkarsh5026/meanwhile/safeprint"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
)

// PrintStatus writes a one-shot snapshot of the job's counts through
// safeprint, in the form:
//
//	pending: P  running: R  finished: F  failed: E
//
// It never blocks on in-flight work.
func (j *Job[K, R]) PrintStatus() {
	safeprint.Println(j.statusLine())
}

func (j *Job[K, R]) statusLine() string {
	c := j.Counts()
	return fmt.Sprintf("pending: %d  running: %d  finished: %d  failed: %d",
		c.Pending, c.Running, c.Finished, c.Failed)
}

// WriteStatusTable renders the current counts as a table to w. It is a
// convenience for interactive sessions; the coordination core only
// guarantees the plain status line.
func (j *Job[K, R]) WriteStatusTable(w io.Writer) error {
	c := j.Counts()

	table := tablewriter.NewWriter(w)
	table.Header("Status", "Keys")
	_ = table.Append(cyan.Sprint("pending"), fmt.Sprint(c.Pending))
	_ = table.Append(yellow.Sprint("running"), fmt.Sprint(c.Running))
	_ = table.Append(green.Sprint("finished"), fmt.Sprint(c.Finished))
	_ = table.Append(red.Sprint("failed"), fmt.Sprint(c.Failed))
	_ = table.Append("total", fmt.Sprint(c.Total()))
	return table.Render()
}

// WaitWithProgress is Wait with a progress bar over processed keys
// (finished plus failed) instead of the textual status line. The bar's
// maximum follows keys added while waiting. Like Wait, it returns nil
// on drain and ctx.Err() on interruption without altering job state.
func (j *Job[K, R]) WaitWithProgress(ctx context.Context) error {
	bar := progressbar.NewOptions(j.Counts().Total(),
		progressbar.OptionSetDescription("processing"),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	for {
		changed := j.registry.Changed()
		c := j.Counts()
		bar.ChangeMax(c.Total())
		_ = bar.Set(c.Finished + c.Failed)
		if c.Active() == 0 {
			_ = bar.Finish()
			return nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			_ = bar.Exit()
			return ctx.Err()
		}
	}
}
