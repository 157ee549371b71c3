// Command observe-repl is an interactive shell for exploring observable
// subjects: create or load subjects, mutate their properties, and watch
// single-property and combined observations fire inline.
//
// Usage:
//
//	observe-repl [flags]
//
// Flags:
//
//	-load string  Subject definition YAML to load on startup
//	-log string   Append observation events (CBOR) to this file
//	-strict       Panic on contract violations instead of logging them
//
// Examples:
//
//	# Start with a definition file and an event log
//	observe-repl -load subjects.yaml -log events.cbor
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	obslog "github.com/observekit/observe-go/pkg/log"
	"github.com/observekit/observe-go/pkg/observe"
)

func main() {
	loadFile := flag.String("load", "", "Subject definition YAML to load on startup")
	logFile := flag.String("log", "", "Append observation events (CBOR) to this file")
	strict := flag.Bool("strict", false, "Panic on contract violations instead of logging them")
	flag.Parse()

	observe.SetStrict(*strict)

	if *logFile != "" {
		fl, err := obslog.NewFileLogger(*logFile)
		if err != nil {
			log.Fatalf("failed to open event log: %v", err)
		}
		defer fl.Close()
		observe.SetLogger(fl)
	}

	r, err := newRepl()
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	if *loadFile != "" {
		if err := r.cmdLoad([]string{*loadFile}); err != nil {
			fmt.Fprintf(os.Stderr, "load failed: %v\n", err)
		}
	}

	r.run()
}
