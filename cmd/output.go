package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/gym-sniper/internal/booking"
	"github.com/example/gym-sniper/internal/history"
	"github.com/example/gym-sniper/internal/queue"
)

const listTime = "Mon 2006-01-02 15:04"

// entryRow is the list view of a queue entry.
type entryRow struct {
	ClassID       int64  `json:"class_id" yaml:"class_id"`
	ClassName     string `json:"class_name" yaml:"class_name"`
	ClassTime     string `json:"class_time" yaml:"class_time"`
	BookingWindow string `json:"booking_window" yaml:"booking_window"`
	OpensIn       string `json:"opens_in,omitempty" yaml:"opens_in,omitempty"`
	Trainer       string `json:"trainer,omitempty" yaml:"trainer,omitempty"`
	Status        string `json:"status" yaml:"status"`
	Error         string `json:"error,omitempty" yaml:"error,omitempty"`
}

func entryRows(entries []queue.Entry, now time.Time) []entryRow {
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		r := entryRow{
			ClassID:       e.ClassID,
			ClassName:     e.ClassName,
			ClassTime:     e.ClassTime.Format(time.RFC3339),
			BookingWindow: e.BookingWindow.Format(time.RFC3339),
			Trainer:       e.Trainer,
			Status:        string(e.Status),
			Error:         e.ErrorMessage,
		}
		if e.Status == queue.StatusPending {
			r.OpensIn = humanDuration(e.BookingWindow.Sub(now))
		}
		rows = append(rows, r)
	}
	return rows
}

func writeEntries(w io.Writer, format string, entries []queue.Entry, now time.Time) error {
	rows := entryRows(entries, now)
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return err
		}
		return enc.Close()
	case "", "table":
		if len(rows) == 0 {
			_, err := fmt.Fprintln(w, "No snipes queued.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCLASS\tTIME\tWINDOW\tOPENS IN\tSTATUS")
		for i, r := range rows {
			e := entries[i]
			opens := r.OpensIn
			if opens == "" {
				opens = "-"
			}
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
				r.ClassID, r.ClassName, e.ClassTime.Format(listTime), e.BookingWindow.Format(listTime), opens, r.Status)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

// humanDuration renders d as "2d 3h 4m", or "open" once it has passed.
func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "open"
	}
	d = d.Round(time.Minute)
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	mins := d / time.Minute

	var parts []string
	if days > 0 {
		parts = append(parts, fmt.Sprintf("%dd", days))
	}
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if mins > 0 || len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("%dm", mins))
	}
	return strings.Join(parts, " ")
}

func writeSlots(w io.Writer, slots []booking.Slot) error {
	if len(slots) == 0 {
		_, err := fmt.Fprintln(w, "No classes found.")
		return err
	}
	sort.SliceStable(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLASS\tTIME\tTRAINER\tSTATUS")
	for _, s := range slots {
		trainer := s.Trainer
		if trainer == "" {
			trainer = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.StartTime.Format(listTime), trainer, s.Status)
	}
	return tw.Flush()
}

func writeBookings(w io.Writer, details []booking.SlotDetail) error {
	if len(details) == 0 {
		_, err := fmt.Fprintln(w, "No upcoming bookings.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCLASS\tTIME\tSTATUS\tWAITLIST")
	for _, d := range details {
		pos := "-"
		if d.WaitlistPosition > 0 {
			pos = fmt.Sprintf("#%d", d.WaitlistPosition)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", d.ID, d.Name, d.StartTime.Format(listTime), d.Status, pos)
	}
	return tw.Flush()
}

func writeRuns(w io.Writer, runs []history.Run) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No runs recorded.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tCLASS\tTIME\tSOURCE\tOUTCOME\tATTEMPTS\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s (%d)\t%s\t%s\t%s\t%d\t%s\n",
			r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.ClassName, r.ClassID,
			r.ClassTime.Local().Format(listTime), r.Source, r.Outcome, r.Attempts, r.ErrorText())
	}
	return tw.Flush()
}

// filterTrainer keeps slots whose trainer contains name, case-insensitively.
func filterTrainer(slots []booking.Slot, name string) []booking.Slot {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return slots
	}
	var out []booking.Slot
	for _, s := range slots {
		if strings.Contains(strings.ToLower(s.Trainer), name) {
			out = append(out, s)
		}
	}
	return out
}
