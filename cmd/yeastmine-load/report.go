package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/yeastgenome/yeastmine-bio-sources/pkg/loader"
	"github.com/yeastgenome/yeastmine-bio-sources/pkg/pipeline"
)

var (
	doneColor    = color.New(color.FgGreen)
	failedColor  = color.New(color.FgRed, color.Bold)
	runningColor = color.New(color.FgYellow)
)

// writeReport prints one line per job followed by the load totals. The
// state column is last so color codes do not skew the alignment.
func writeReport(w io.Writer, result loader.Result) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "JOB\tROWS\tSKIPPED\tCONFLICTS\tSTORED\tDURATION\tSTATE")
	for _, job := range result.Jobs {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			job.Source,
			job.Rows,
			job.Skipped,
			job.Conflicts,
			job.StoredTotal(),
			job.Duration.Round(time.Millisecond),
			stateColor(job.State).Sprint(job.State),
		)
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nmanifest %s on %s backend, run %s\n", result.Manifest, result.Backend, result.RunID)
	if result.FailedJob != "" {
		failedColor.Fprintf(w, "load failed at job %s after %s\n", result.FailedJob, result.Duration.Round(time.Millisecond))
		return
	}
	doneColor.Fprintf(w, "%d jobs done, %d shared items stored in %s\n", len(result.Jobs), result.SharedStored, result.Duration.Round(time.Millisecond))
}

func stateColor(state pipeline.State) *color.Color {
	switch state {
	case pipeline.StateDone:
		return doneColor
	case pipeline.StateFailed:
		return failedColor
	default:
		return runningColor
	}
}
