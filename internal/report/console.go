package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/studiowebux/chatbench/internal/executor"
	"github.com/studiowebux/chatbench/internal/fixture"
	"github.com/studiowebux/chatbench/internal/loadtest"
	"github.com/studiowebux/chatbench/internal/sanity"
)

// ConsoleEmitter prints a table summary
type ConsoleEmitter struct {
	Out io.Writer
	// Verbose lists every result instead of failures only
	Verbose bool
}

func (e *ConsoleEmitter) Emit(r *Report) error {
	if err := r.Validate(); err != nil {
		return err
	}
	out := e.Out
	if out == nil {
		out = os.Stdout
	}

	fmt.Fprintf(out, "\n%s\n", r.Title)
	fmt.Fprintf(out, "Target: %s\n", r.Target)

	switch r.Kind {
	case KindSanity:
		e.sanity(out, r.Sanity)
	case KindLoad:
		e.load(out, r.Load)
	}
	return nil
}

func (e *ConsoleEmitter) sanity(out io.Writer, s *sanity.Summary) {
	fmt.Fprintf(out, "Models: %s\n", strings.Join(s.Models, ", "))
	fmt.Fprintf(out, "Duration: %s\n\n", executor.FormatDuration(s.Duration().Milliseconds()))

	kinds := newTable(out)
	kinds.SetHeader([]string{"Kind", "Total", "Passed", "Failed"})
	for _, kind := range fixture.Kinds {
		c, ok := s.ByKind[kind]
		if !ok {
			continue
		}
		kinds.Append([]string{string(kind), strconv.Itoa(c.Total), strconv.Itoa(c.Passed), strconv.Itoa(c.Failed)})
	}
	kinds.SetFooter([]string{"all", strconv.Itoa(s.Counts.Total), strconv.Itoa(s.Counts.Passed), strconv.Itoa(s.Counts.Failed)})
	kinds.Render()

	results := s.FailedResults()
	if e.Verbose {
		results = s.Results
	}
	if len(results) > 0 {
		fmt.Fprintln(out)
		table := newTable(out)
		table.SetHeader([]string{"Scenario", "Model", "Result", "Status", "Latency", "Failures"})
		for _, res := range results {
			verdict := "PASS"
			if !res.Passed {
				verdict = "FAIL"
			}
			table.Append([]string{
				res.Scenario,
				res.Model,
				verdict,
				statusText(res.Status),
				executor.FormatDuration(res.LatencyMs),
				strings.Join(res.Failures, "; "),
			})
		}
		table.Render()
	}

	switch {
	case s.Cancelled:
		fmt.Fprintf(out, "\nRun cancelled after %d of the planned scenarios\n", s.Counts.Total)
	case s.Counts.Failed == 0:
		fmt.Fprintf(out, "\nAll %d scenarios passed\n", s.Counts.Total)
	default:
		fmt.Fprintf(out, "\n%d of %d scenarios failed\n", s.Counts.Failed, s.Counts.Total)
	}
}

func (e *ConsoleEmitter) load(out io.Writer, s *loadtest.Summary) {
	fmt.Fprintf(out, "Model: %s  Users: %d  Spawn rate: %.2f/s  Status: %s\n", s.Model, s.Users, s.SpawnRate, s.Status)
	fmt.Fprintf(out, "Duration: %s\n\n", executor.FormatDuration(s.Duration().Milliseconds()))

	totals := newTable(out)
	totals.SetHeader([]string{"Requests", "Successes", "Network errors", "Validation errors", "Dropped", "Error rate", "Req/s"})
	totals.Append([]string{
		strconv.Itoa(s.TotalRequests),
		strconv.Itoa(s.Successes),
		strconv.Itoa(s.NetworkErrors),
		strconv.Itoa(s.ValidationErrors),
		strconv.Itoa(s.Dropped),
		fmt.Sprintf("%.2f%%", s.ErrorRate*100),
		fmt.Sprintf("%.2f", s.RequestsPerSec),
	})
	totals.Render()
	fmt.Fprintln(out)

	lat := newTable(out)
	lat.SetHeader([]string{"Min", "Avg", "P50", "P90", "P95", "P99", "Max"})
	lat.Append([]string{
		executor.FormatDuration(s.Latency.MinMs),
		executor.FormatDuration(int64(s.Latency.AvgMs)),
		executor.FormatDuration(s.Latency.P50Ms),
		executor.FormatDuration(s.Latency.P90Ms),
		executor.FormatDuration(s.Latency.P95Ms),
		executor.FormatDuration(s.Latency.P99Ms),
		executor.FormatDuration(s.Latency.MaxMs),
	})
	lat.Render()

	if len(s.StatusCodes) > 0 {
		fmt.Fprintln(out)
		codes := newTable(out)
		codes.SetHeader([]string{"Status", "Count"})
		for _, code := range s.StatusCodeList() {
			codes.Append([]string{strconv.Itoa(code), strconv.Itoa(s.StatusCodes[code])})
		}
		codes.Render()
	}

	if len(s.ErrorCategories) > 0 {
		fmt.Fprintln(out)
		cats := newTable(out)
		cats.SetHeader([]string{"Error", "Count"})
		for _, cat := range sortedKeys(s.ErrorCategories) {
			cats.Append([]string{cat, strconv.Itoa(s.ErrorCategories[cat])})
		}
		cats.Render()
	}
}

func newTable(out io.Writer) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func statusText(status int) string {
	if status == 0 {
		return "-"
	}
	return strconv.Itoa(status)
}
