// Command observe-log is a tool for viewing and analyzing observation event
// log files.
//
// Log files are created by pointing the observation layer at a FileLogger,
// for example with observe-repl's -log flag.
//
// Usage:
//
//	observe-log <command> [flags] <file.cbor>
//
// Commands:
//
//	view     View log file in human-readable format
//	export   Export log file to JSON lines
//	stats    Show statistics about the log file
//
// Examples:
//
//	# View all events
//	observe-log view events.cbor
//
//	# View only violation events
//	observe-log view -category violation events.cbor
//
//	# View events for one subject
//	observe-log view -subject-uid 6b3f... events.cbor
//
//	# Export to JSONL
//	observe-log export events.cbor
//
//	# Show statistics
//	observe-log stats events.cbor
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	obslog "github.com/observekit/observe-go/pkg/log"
)

const usage = `observe-log - Observation Event Log Analyzer

Usage:
  observe-log <command> [flags] <file.cbor>

Commands:
  view     View log file in human-readable format
  export   Export log file to JSON lines
  stats    Show statistics about the log file

Use "observe-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// filterFlags registers the shared filter flags on fs and returns a builder.
func filterFlags(fs *flag.FlagSet) func() (obslog.Filter, error) {
	category := fs.String("category", "", "Filter by category (subscribe, cancel, combine, violation)")
	subjectUID := fs.String("subject-uid", "", "Filter by subject UID")
	key := fs.String("key", "", "Filter by property key")
	handleID := fs.Uint64("handle-id", 0, "Filter by handle ID")

	return func() (obslog.Filter, error) {
		filter := obslog.Filter{
			SubjectUID: *subjectUID,
			Key:        *key,
			HandleID:   *handleID,
		}
		if *category != "" {
			c, err := parseCategoryFlag(*category)
			if err != nil {
				return obslog.Filter{}, err
			}
			filter.Category = &c
		}
		return filter, nil
	}
}

func parseCategoryFlag(name string) (obslog.Category, error) {
	switch strings.ToLower(name) {
	case "subscribe":
		return obslog.CategorySubscribe, nil
	case "cancel":
		return obslog.CategoryCancel, nil
	case "combine":
		return obslog.CategoryCombine, nil
	case "violation":
		return obslog.CategoryViolation, nil
	default:
		return 0, fmt.Errorf("unknown category %q", name)
	}
}

func runView(args []string) {
	fs := flag.NewFlagSet("view", flag.ExitOnError)
	buildFilter := filterFlags(fs)
	parseArgs(fs, args, "view", "View log file in human-readable format")

	filter, err := buildFilter()
	if err != nil {
		fail(err)
	}
	if err := view(fs.Arg(0), filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	buildFilter := filterFlags(fs)
	parseArgs(fs, args, "export", "Export log file to JSON lines")

	filter, err := buildFilter()
	if err != nil {
		fail(err)
	}
	if err := export(fs.Arg(0), filter, os.Stdout); err != nil {
		fail(err)
	}
}

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	parseArgs(fs, args, "stats", "Show statistics about the log file")

	if err := stats(fs.Arg(0), os.Stdout); err != nil {
		fail(err)
	}
}

func parseArgs(fs *flag.FlagSet, args []string, name, oneline string) {
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "observe-log %s - %s\n\nUsage:\n  observe-log %s [flags] <file.cbor>\n\nFlags:\n", name, oneline, name)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: log file path required")
		fs.Usage()
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
