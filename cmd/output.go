package cmd

import (
	"fmt"
	"sync"

	"db-sync/internal/engine"
	"db-sync/internal/executor"

	"github.com/fatih/color"
	"github.com/gosuri/uiprogress"
)

var (
	success = color.New(color.FgGreen, color.Bold).SprintFunc()
	warning = color.New(color.FgYellow, color.Bold).SprintFunc()
	failure = color.New(color.FgRed, color.Bold).SprintFunc()
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	faint   = color.New(color.Faint).SprintFunc()
)

// progressBars shows one bar per engine stage. Call stop when the flow ends.
func progressBars(e *engine.Engine) (stop func()) {
	if verbose {
		// statement logs and redrawn bars do not mix
		return func() {}
	}
	var mu sync.Mutex
	var started bool
	bars := map[string]*uiprogress.Bar{}
	e.Progress = func(stage string, done, total int) {
		mu.Lock()
		defer mu.Unlock()
		if total <= 0 {
			return
		}
		if !started {
			uiprogress.Start()
			started = true
		}
		bar, ok := bars[stage]
		if !ok {
			label := fmt.Sprintf("%-9s", stage)
			bar = uiprogress.AddBar(total).AppendCompleted().PrependElapsed()
			bar.PrependFunc(func(b *uiprogress.Bar) string {
				return label
			})
			bars[stage] = bar
		}
		bar.Set(done)
	}
	return func() {
		mu.Lock()
		defer mu.Unlock()
		if started {
			uiprogress.Stop()
		}
		e.Progress = nil
	}
}

func printResult(title string, res *executor.Result) {
	if res == nil {
		return
	}
	fmt.Println()
	fmt.Println(heading(title))
	fmt.Printf("  %s %d   %s %d   %s %d\n",
		success("ok"), res.Success, warning("skipped"), res.Skipped, failure("errors"), res.Errors)
	for _, o := range res.Outcomes {
		if o.Status != executor.StatusError {
			continue
		}
		fmt.Printf("  %s %s\n    %s\n", failure("x"), o.Err, faint(firstLine(o.Statement.Text)))
	}
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i] + " ..."
		}
	}
	return s
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
