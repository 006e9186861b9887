package migration

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Report is the status snapshot shown by the admin tool.
type Report struct {
	Status      Status     `json:"status"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Errors      []string   `json:"errors"`
	Pending     int        `json:"pending_actions"`
	Description string     `json:"description"`
}

// Running reports whether a run is underway. A freshly scheduled chain is
// still not_started until its first action executes, so a pending migration
// action counts as running too.
func (r *Report) Running() bool {
	if r == nil {
		return false
	}
	return r.Status == StatusInProgress || (r.Status == StatusNotStarted && r.Pending > 0)
}

func (s *JobScheduler) Report(ctx context.Context) (*Report, error) {
	st, err := s.Status(ctx)
	if err != nil {
		return nil, err
	}
	errs, err := s.Errors(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.Pending(ctx)
	if err != nil {
		return nil, err
	}
	r := &Report{Status: st, Errors: errs, Pending: len(pending)}
	if r.Errors == nil {
		r.Errors = []string{}
	}
	if v, ok, err := s.StartedAt(ctx); err != nil {
		return nil, err
	} else if ok {
		t := fromMicrotime(v)
		r.StartedAt = &t
	}
	if v, ok, err := s.CompletedAt(ctx); err != nil {
		return nil, err
	} else if ok {
		t := fromMicrotime(v)
		r.CompletedAt = &t
	}
	r.Description = describe(r)
	return r, nil
}

// Describe is the human readable status line followed by any errors.
func (s *JobScheduler) Describe(ctx context.Context) (string, error) {
	r, err := s.Report(ctx)
	if err != nil {
		return "", err
	}
	return r.Description, nil
}

func describe(r *Report) string {
	var b strings.Builder
	switch r.Status {
	case StatusNotStarted:
		b.WriteString("Not started.")
	case StatusInProgress:
		since := "an unknown time"
		if r.StartedAt != nil {
			since = r.StartedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "In progress since %s. %d error(s).", since, len(r.Errors))
	case StatusComplete:
		if r.StartedAt != nil && r.CompletedAt != nil {
			fmt.Fprintf(&b, "Completed in %s.", r.CompletedAt.Sub(*r.StartedAt).Round(time.Millisecond))
		} else {
			b.WriteString("Completed.")
		}
	case StatusFailed:
		last := "unknown error"
		if n := len(r.Errors); n > 0 {
			last = r.Errors[n-1]
		}
		fmt.Fprintf(&b, "Failed: %s.", strings.TrimSuffix(last, "."))
	default:
		fmt.Fprintf(&b, "Unknown status %q.", r.Status)
	}
	for _, e := range r.Errors {
		b.WriteString("\n- ")
		b.WriteString(e)
	}
	return b.String()
}

func fromMicrotime(v float64) time.Time {
	return time.UnixMicro(int64(v * 1e6)).UTC()
}
