package stepline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/stepline-ci/stepline/types"
)

// ResultFormatter is responsible for formatting and displaying run results.
type ResultFormatter interface {
	FormatResults(result *RunResult) error
}

// ConsoleResultFormatter implements the ResultFormatter interface.
type ConsoleResultFormatter struct {
	logger log.Logger
}

// NewConsoleResultFormatter creates a new ConsoleResultFormatter.
func NewConsoleResultFormatter(logger log.Logger) *ConsoleResultFormatter {
	return &ConsoleResultFormatter{
		logger: logger,
	}
}

// FormatResults formats and displays the run's step history.
func (f *ConsoleResultFormatter) FormatResults(result *RunResult) error {
	f.logger.Info("Printing results...")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(fmt.Sprintf("Build Run Results (%s)", formatDuration(result.Duration)))

	t.AppendHeader(table.Row{
		"#", "Step", "Retcode", "Status", "Summary",
	})

	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Step", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Retcode", Align: text.AlignRight},
		{Name: "Summary", WidthMax: 80, WidthMaxEnforcer: text.WrapSoft},
	})

	failed := 0
	for i := 0; i < result.History.Len(); i++ {
		res := result.History.Nth(i)
		if res == nil {
			continue
		}
		pres := res.Presentation()
		if pres.Status() == types.StatusFailure || pres.Status() == types.StatusException {
			failed++
		}

		t.AppendRow(table.Row{
			i + 1,
			res.Name(),
			res.RetCode(),
			statusString(pres.Status()),
			summaryLine(pres),
		})
	}

	if result.Failed() {
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	} else {
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	}

	t.AppendFooter(table.Row{
		"",
		"TOTAL",
		"",
		fmt.Sprintf("%d failed", failed),
		fmt.Sprintf("%d steps", result.History.Len()),
	})

	t.Render()

	fmt.Println(result.String())

	return nil
}

// summaryLine condenses a presentation into one cell: the summary text if
// present, otherwise the step text's first line.
func summaryLine(pres *types.Presentation) string {
	s := pres.SummaryText()
	if s == "" {
		s = pres.StepText()
	}
	if idx := strings.Index(s, "\n"); idx != -1 {
		s = s[:idx]
	}
	return s
}

// statusString returns a marked string representing the step outcome.
func statusString(status types.Status) string {
	switch status {
	case types.StatusFailure:
		return "✗ fail"
	case types.StatusException:
		return "✗ exception"
	case types.StatusWarning:
		return "! warn"
	default:
		return "✓ pass"
	}
}

// Helper function to format duration to seconds with 1 decimal place
func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
