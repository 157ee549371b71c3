package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	obslog "github.com/observekit/observe-go/pkg/log"
)

// view prints matching events, one line per event.
func view(path string, filter obslog.Filter, w io.Writer) error {
	r, err := obslog.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	count := 0
	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read error after %d events: %w", count, err)
		}
		fmt.Fprintln(w, formatEvent(ev))
		count++
	}

	fmt.Fprintf(w, "\n%d events\n", count)
	return nil
}

// formatEvent renders one event as a single human-readable line.
func formatEvent(ev obslog.Event) string {
	line := fmt.Sprintf("%s  %-9s", ev.Timestamp.Format("15:04:05.000000"), ev.Category)
	if ev.SubjectName != "" {
		line += "  " + ev.SubjectName
	} else if ev.SubjectUID != "" {
		line += "  " + shortUID(ev.SubjectUID)
	}
	if ev.Key != "" {
		line += "." + ev.Key
	}
	if ev.HandleID != 0 {
		line += fmt.Sprintf("  handle=%d", ev.HandleID)
	}
	if ev.Combine != nil {
		line += fmt.Sprintf("  arity=%d", ev.Combine.Arity)
	}
	if ev.Violation != nil {
		line += fmt.Sprintf("  %s: %s", ev.Violation.Kind, ev.Violation.Message)
	}
	return line
}

func shortUID(uid string) string {
	if len(uid) > 8 {
		return uid[:8]
	}
	return uid
}

// jsonEvent is the JSONL export shape.
type jsonEvent struct {
	Timestamp  time.Time              `json:"ts"`
	Category   string                 `json:"category"`
	SubjectUID string                 `json:"subject_uid,omitempty"`
	Subject    string                 `json:"subject,omitempty"`
	Key        string                 `json:"key,omitempty"`
	HandleID   uint64                 `json:"handle_id,omitempty"`
	Combine    *obslog.CombineEvent   `json:"combine,omitempty"`
	Violation  *obslog.ViolationEvent `json:"violation,omitempty"`
}

// export writes matching events as JSON lines.
func export(path string, filter obslog.Filter, w io.Writer) error {
	r, err := obslog.NewFilteredReader(path, filter)
	if err != nil {
		return err
	}
	defer r.Close()

	enc := json.NewEncoder(w)
	for {
		ev, err := r.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := enc.Encode(jsonEvent{
			Timestamp:  ev.Timestamp,
			Category:   ev.Category.String(),
			SubjectUID: ev.SubjectUID,
			Subject:    ev.SubjectName,
			Key:        ev.Key,
			HandleID:   ev.HandleID,
			Combine:    ev.Combine,
			Violation:  ev.Violation,
		}); err != nil {
			return err
		}
	}
}

// stats summarizes the log file: event counts per category and per subject,
// and the covered time span.
func stats(path string, w io.Writer) error {
	r, err := obslog.NewReader(path)
	if err != nil {
		return err
	}
	defer r.Close()

	total := 0
	byCategory := map[obslog.Category]int{}
	bySubject := map[string]int{}
	var first, last time.Time

	for {
		ev, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		total++
		byCategory[ev.Category]++
		if ev.SubjectUID != "" {
			bySubject[ev.SubjectUID]++
		}
		if first.IsZero() || ev.Timestamp.Before(first) {
			first = ev.Timestamp
		}
		if ev.Timestamp.After(last) {
			last = ev.Timestamp
		}
	}

	fmt.Fprintf(w, "Events: %d\n", total)
	if total > 0 {
		fmt.Fprintf(w, "Span:   %s .. %s (%s)\n",
			first.Format(time.RFC3339Nano), last.Format(time.RFC3339Nano), last.Sub(first))
	}

	fmt.Fprintln(w, "\nBy category:")
	for _, c := range []obslog.Category{
		obslog.CategorySubscribe, obslog.CategoryCancel,
		obslog.CategoryCombine, obslog.CategoryViolation,
	} {
		if byCategory[c] > 0 {
			fmt.Fprintf(w, "  %-10s %d\n", c, byCategory[c])
		}
	}

	if len(bySubject) > 0 {
		uids := make([]string, 0, len(bySubject))
		for uid := range bySubject {
			uids = append(uids, uid)
		}
		sort.Strings(uids)
		fmt.Fprintln(w, "\nBy subject:")
		for _, uid := range uids {
			fmt.Fprintf(w, "  %-10s %d\n", shortUID(uid), bySubject[uid])
		}
	}
	return nil
}
