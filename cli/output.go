package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	actx "go.hackfix.me/dbmigrate/app/context"
	"go.hackfix.me/dbmigrate/migrate"
)

var (
	infoColor    = color.New(color.FgYellow)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
)

// confirmFlag adds the option to skip confirmation prompts.
type confirmFlag struct {
	Yes bool `kong:"short='y',help='Answer yes to all prompts.'"`
}

func (f confirmFlag) confirm(appCtx *actx.Context, question string, def bool) (bool, error) {
	if f.Yes {
		return true, nil
	}
	return confirm(appCtx, question, def)
}

// confirm asks a yes/no question on stdin. An empty answer, or the end of
// input, selects the default.
func confirm(appCtx *actx.Context, question string, def bool) (bool, error) {
	defStr := "no"
	if def {
		defStr = "yes"
	}

	scanner := bufio.NewScanner(appCtx.Stdin)
	for {
		fmt.Fprintf(appCtx.Stdout, "%s (yes|no) [%s]:", question, defStr)
		if !scanner.Scan() {
			fmt.Fprintln(appCtx.Stdout)
			if err := scanner.Err(); err != nil {
				return false, fmt.Errorf("failed reading answer: %w", err)
			}
			return def, nil
		}

		switch strings.ToLower(strings.TrimSpace(scanner.Text())) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

func listNames(w io.Writer, names []string) {
	for _, n := range names {
		fmt.Fprintf(w, "\t%s\n", n)
	}
	fmt.Fprintln(w)
}

func migrationWord(n int) string {
	if n == 1 {
		return "migration"
	}
	return "migrations"
}

func wasWere(n int) string {
	if n == 1 {
		return "was"
	}
	return "were"
}

// consoleObserver prints the progress of each migration.
type consoleObserver struct {
	w io.Writer
}

var _ migrate.Observer = consoleObserver{}

// Observe implements the migrate.Observer interface.
func (o consoleObserver) Observe(ev migrate.Event) {
	secs := ev.Duration.Seconds()
	switch ev.State {
	case migrate.StateApplying:
		infoColor.Fprintf(o.w, "*** applying %s\n", ev.Name)
	case migrate.StateApplied:
		successColor.Fprintf(o.w, "*** applied %s (time: %.3fs)\n\n", ev.Name, secs)
	case migrate.StateReverting:
		infoColor.Fprintf(o.w, "*** reverting %s\n", ev.Name)
	case migrate.StateReverted:
		successColor.Fprintf(o.w, "*** reverted %s (time: %.3fs)\n\n", ev.Name, secs)
	case migrate.StateFailed:
		errorColor.Fprintf(o.w, "*** failed to %s %s (time: %.3fs)\n\n", ev.Op, ev.Name, secs)
	case migrate.StatePending:
	}
}

// batchSummary prints the outcome of a batch that stopped early.
func batchSummary(w io.Writer, op migrate.Op, res migrate.BatchResult) {
	verb := "applied"
	if op == migrate.OpRevert {
		verb = "reverted"
	}
	errorColor.Fprintf(w, "\n%d from %d %s %s.\n",
		res.Completed, res.Requested, migrationWord(res.Requested), wasWere(res.Completed)+" "+verb)
	errorColor.Fprintln(w, "The rest of the migrations are canceled.")
}
