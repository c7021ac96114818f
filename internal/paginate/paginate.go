// Package paginate implements the windowed, deduplicating page walker
// used for chat, dialog and message listings.
//
// The platform returns listings sorted by recency, newest first. The
// early-stop optimization below (a page whose records are all older than
// the window means every later page is older too) is only correct under
// that sortedness assumption.
package paginate

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultPageSize matches the platform's listing page size.
	DefaultPageSize = 100
	// DefaultMaxPages bounds runaway loops; generous enough for months
	// of traffic at 100 records a page.
	DefaultMaxPages = 200
)

// Window is an inclusive day-granularity date range, expanded to
// start-of-day and end-of-day boundaries in its location.
type Window struct {
	start time.Time
	end   time.Time
	set   bool
}

// NewWindow parses "YYYY-MM-DD" bounds in the given location. Both
// bounds are required; use the zero Window for unfiltered loads.
func NewWindow(from, to string, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.Local
	}
	start, err := time.ParseInLocation("2006-01-02", from, loc)
	if err != nil {
		return Window{}, fmt.Errorf("parse from date: %w", err)
	}
	end, err := time.ParseInLocation("2006-01-02", to, loc)
	if err != nil {
		return Window{}, fmt.Errorf("parse to date: %w", err)
	}
	if end.Before(start) {
		return Window{}, fmt.Errorf("window end %s before start %s", to, from)
	}
	return Window{
		start: start,
		end:   time.Date(end.Year(), end.Month(), end.Day(), 23, 59, 59, int(time.Second-time.Nanosecond), loc),
		set:   true,
	}, nil
}

// IsZero reports whether no filter is active.
func (w Window) IsZero() bool { return !w.set }

// Compare places t relative to the window: -1 older, 0 in range, 1 newer.
// The zero window has no bounds and places everything in range, which is
// what makes an unfiltered Collect retain every record. Inside a set
// window a zero timestamp counts as older so records without dates are
// never retained.
func (w Window) Compare(t time.Time) int {
	if !w.set {
		return 0
	}
	if t.IsZero() || t.Before(w.start) {
		return -1
	}
	if t.After(w.end) {
		return 1
	}
	return 0
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return w.set && w.Compare(t) == 0
}

// Since returns the window start formatted for the platform's since param.
func (w Window) Since() string {
	if !w.set {
		return ""
	}
	return w.start.Format("2006-01-02")
}

// Until returns the window end formatted for the platform's until param.
func (w Window) Until() string {
	if !w.set {
		return ""
	}
	return w.end.Format("2006-01-02")
}

// FetchPage returns one page of records at the given offset.
type FetchPage[T any] func(ctx context.Context, limit, offset int) ([]T, error)

// Options tune a collection run. Zero values take the defaults.
type Options struct {
	PageSize int
	MaxPages int
}

func (o Options) withDefaults() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxPages <= 0 {
		o.MaxPages = DefaultMaxPages
	}
	return o
}

// Collect pages through a listing and returns the in-range records,
// deduplicated by key, in first-seen order. The zero Window disables
// filtering and retains every record. Collection stops on a short page,
// on the MaxPages bound, or early when an entire page is older than the
// window (see the package comment for the sortedness assumption).
//
// A failed fetch aborts the whole run and discards everything
// accumulated so far: callers never see a silently truncated set.
func Collect[T any, K comparable](ctx context.Context, fetch FetchPage[T], w Window, key func(T) K, at func(T) time.Time, opts Options) ([]T, error) {
	opts = opts.withDefaults()

	var out []T
	seen := make(map[K]struct{})
	offset := 0

	for page := 0; page < opts.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := fetch(ctx, opts.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("page %d (offset %d): %w", page+1, offset, err)
		}
		if len(records) == 0 {
			break
		}

		inRange, older := 0, 0
		for _, rec := range records {
			switch w.Compare(at(rec)) {
			case 0:
				inRange++
				k := key(rec)
				if _, dup := seen[k]; !dup {
					seen[k] = struct{}{}
					out = append(out, rec)
				}
			case -1:
				older++
			}
			// newer records are simply skipped
		}

		// page entirely behind the window: the rest is older still
		if inRange == 0 && older == len(records) {
			break
		}
		if len(records) < opts.PageSize {
			break
		}
		offset += opts.PageSize
	}
	return out, nil
}
