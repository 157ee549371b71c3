package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/observekit/observe-go/pkg/model"
	"github.com/observekit/observe-go/pkg/observe"
	"github.com/observekit/observe-go/pkg/schema"
)

// watch is one live observation, single-property or combined.
type watch struct {
	desc    string
	handles []*observe.Handle
}

// repl holds the interactive session state.
type repl struct {
	rl       *readline.Instance
	subjects map[string]*model.Subject
	watches  map[int]*watch
	nextID   int
}

func newRepl() (*repl, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "observe> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &repl{
		rl:       rl,
		subjects: make(map[string]*model.Subject),
		watches:  make(map[int]*watch),
		nextID:   1,
	}, nil
}

// run is the interactive command loop. Observation callbacks print through
// rl.Stdout so inline deliveries do not garble the prompt.
func (r *repl) run() {
	defer r.rl.Close()

	r.printHelp()

	for {
		line, err := r.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			r.printHelp()

		case "load":
			if err := r.cmdLoad(args); err != nil {
				fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
			}

		case "new":
			r.cmdNew(args)

		case "subjects":
			r.cmdSubjects()

		case "set":
			r.cmdSet(args)

		case "get", "g":
			r.cmdGet(args)

		case "append":
			r.cmdAppend(args)

		case "watch", "w":
			r.cmdWatch(args)

		case "latest", "l":
			r.cmdLatest(args)

		case "watches":
			r.cmdWatches()

		case "cancel":
			r.cmdCancel(args)

		case "invalidate":
			r.cmdInvalidate(args)

		case "quit", "exit", "q":
			fmt.Fprintln(r.rl.Stdout(), "Exiting...")
			return

		default:
			fmt.Fprintf(r.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.rl.Stdout(), `
Observation Commands:
  Subjects:
    load <file>             - Load subject definitions from YAML
    new <name> <key:type>.. - Create a subject (types: bool,int,float64,string,array,any)
    subjects                - List subjects
    invalidate <name>       - Destroy a subject

  Values:
    set <name> <key> <val>  - Set a property value
    get <name> <key>        - Read a property value
    append <name> <key> <v> - Append to an array property

  Observations:
    watch <name> <key>      - Observe a property (add 'prior' for old values)
    latest <n.k> <n.k>..    - Observe the latest values of 2-9 properties
    watches                 - List live observations
    cancel <id>             - Cancel an observation

  General:
    help                    - Show this help
    quit                    - Exit`)
}

// cmdLoad handles the load command.
func (r *repl) cmdLoad(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: load <file>")
	}
	defs, err := schema.LoadSubjectDefs(args[0])
	if err != nil {
		return err
	}
	for _, def := range defs {
		s, err := def.Build()
		if err != nil {
			return err
		}
		r.subjects[def.Name] = s
		fmt.Fprintf(r.rl.Stdout(), "Loaded subject %s (%d properties)\n", def.Name, len(def.Properties))
	}
	return nil
}

// cmdNew handles the new command.
func (r *repl) cmdNew(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: new <name> <key:type>...")
		return
	}
	name := args[0]
	def := schema.SubjectDef{Name: name}
	for _, spec := range args[1:] {
		key, typ, ok := strings.Cut(spec, ":")
		if !ok {
			typ = "any"
		}
		def.Properties = append(def.Properties, schema.PropertyDef{Key: key, Type: typ})
	}
	s, err := def.Build()
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}
	r.subjects[name] = s
	fmt.Fprintf(r.rl.Stdout(), "Created subject %s\n", name)
}

// cmdSubjects handles the subjects command.
func (r *repl) cmdSubjects() {
	if len(r.subjects) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "No subjects")
		return
	}
	names := make([]string, 0, len(r.subjects))
	for name := range r.subjects {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s := r.subjects[name]
		fmt.Fprintf(r.rl.Stdout(), "%s  keys=%v\n", name, s.Keys())
	}
}

// cmdSet handles the set command.
func (r *repl) cmdSet(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: set <name> <key> <value>")
		return
	}
	s, ok := r.subjects[args[0]]
	if !ok {
		fmt.Fprintf(r.rl.Stdout(), "Unknown subject: %s\n", args[0])
		return
	}
	if err := s.Set(args[1], parseLiteral(args[2])); err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
	}
}

// cmdGet handles the get command.
func (r *repl) cmdGet(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: get <name> <key>")
		return
	}
	s, ok := r.subjects[args[0]]
	if !ok {
		fmt.Fprintf(r.rl.Stdout(), "Unknown subject: %s\n", args[0])
		return
	}
	v, err := s.Get(args[1])
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintf(r.rl.Stdout(), "%s.%s = %v\n", args[0], args[1], v)
}

// cmdAppend handles the append command.
func (r *repl) cmdAppend(args []string) {
	if len(args) != 3 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: append <name> <key> <value>")
		return
	}
	s, ok := r.subjects[args[0]]
	if !ok {
		fmt.Fprintf(r.rl.Stdout(), "Unknown subject: %s\n", args[0])
		return
	}
	if err := s.Append(args[1], parseLiteral(args[2])); err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Error: %v\n", err)
	}
}

// cmdWatch handles the watch command.
func (r *repl) cmdWatch(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: watch <name> <key> [prior]")
		return
	}
	s, ok := r.subjects[args[0]]
	if !ok {
		fmt.Fprintf(r.rl.Stdout(), "Unknown subject: %s\n", args[0])
		return
	}

	id := r.nextID
	desc := args[0] + "." + args[1]
	out := r.rl.Stdout()

	var h *observe.Handle
	var err error
	if len(args) > 2 && args[2] == "prior" {
		h, err = observe.ObserveWith(s, args[1], observe.Options{Initial: true, Prior: true}, func(old, new any) {
			fmt.Fprintf(out, "[%d] %s: %v -> %v\n", id, desc, old, new)
		})
	} else {
		h, err = observe.Observe(s, args[1], func(new any) {
			fmt.Fprintf(out, "[%d] %s = %v\n", id, desc, new)
		})
	}
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	r.watches[id] = &watch{desc: desc, handles: []*observe.Handle{h}}
	r.nextID++
}

// cmdLatest handles the latest command.
func (r *repl) cmdLatest(args []string) {
	if len(args) < observe.MinLatestSources || len(args) > observe.MaxLatestSources {
		fmt.Fprintf(r.rl.Stdout(), "Usage: latest <name.key> x%d..%d\n",
			observe.MinLatestSources, observe.MaxLatestSources)
		return
	}

	sources := make([]observe.Source, len(args))
	for i, spec := range args {
		name, key, ok := strings.Cut(spec, ".")
		if !ok {
			fmt.Fprintf(r.rl.Stdout(), "Invalid source %q (want name.key)\n", spec)
			return
		}
		s, found := r.subjects[name]
		if !found {
			fmt.Fprintf(r.rl.Stdout(), "Unknown subject: %s\n", name)
			return
		}
		sources[i] = observe.Source{Subject: s, Key: key}
	}

	id := r.nextID
	desc := strings.Join(args, " ")
	out := r.rl.Stdout()

	handles, err := observe.ObserveLatest(sources, func(updated int, latest []observe.Latest) {
		vals := make([]string, len(latest))
		for i, l := range latest {
			if l.Present() {
				vals[i] = fmt.Sprintf("%v", l.Value())
			} else {
				vals[i] = "-"
			}
		}
		fmt.Fprintf(out, "[%d] latest(%d): %s\n", id, updated, strings.Join(vals, ", "))
	})
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	r.watches[id] = &watch{desc: "latest " + desc, handles: handles}
	r.nextID++
}

// cmdWatches handles the watches command.
func (r *repl) cmdWatches() {
	if len(r.watches) == 0 {
		fmt.Fprintln(r.rl.Stdout(), "No watches")
		return
	}
	ids := make([]int, 0, len(r.watches))
	for id := range r.watches {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		w := r.watches[id]
		active := 0
		for _, h := range w.handles {
			if h.IsActive() {
				active++
			}
		}
		fmt.Fprintf(r.rl.Stdout(), "[%d] %s (%d/%d active)\n", id, w.desc, active, len(w.handles))
	}
}

// cmdCancel handles the cancel command.
func (r *repl) cmdCancel(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: cancel <id>")
		return
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Fprintf(r.rl.Stdout(), "Invalid id: %s\n", args[0])
		return
	}
	w, ok := r.watches[id]
	if !ok {
		fmt.Fprintf(r.rl.Stdout(), "Unknown watch: %d\n", id)
		return
	}
	observe.CancelAll(w.handles)
	delete(r.watches, id)
	fmt.Fprintf(r.rl.Stdout(), "Canceled [%d] %s\n", id, w.desc)
}

// cmdInvalidate handles the invalidate command.
func (r *repl) cmdInvalidate(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(r.rl.Stdout(), "Usage: invalidate <name>")
		return
	}
	s, ok := r.subjects[args[0]]
	if !ok {
		fmt.Fprintf(r.rl.Stdout(), "Unknown subject: %s\n", args[0])
		return
	}
	s.Invalidate()
	delete(r.subjects, args[0])
	fmt.Fprintf(r.rl.Stdout(), "Invalidated %s\n", args[0])
}

// parseLiteral interprets a command argument as the most specific matching
// literal: bool, integer, float, nil, else string.
func parseLiteral(s string) any {
	switch s {
	case "nil", "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return strings.Trim(s, `"`)
}
