// Package stamp reads and rewrites the tool.uv.exclude-newer field of a
// script block, which pins dependency resolution to a moment in time.
package stamp

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/juv/internal/apperr"
)

// Layout is the form every stamped timestamp is written in.
const Layout = "2006-01-02T15:04:05-07:00"

// Request selects how the target moment is chosen. At most one field may
// be set; an empty Request means "now".
type Request struct {
	Time   string
	Rev    string
	Latest bool
	Clear  bool
}

// Validate rejects requests naming more than one strategy.
func (r Request) Validate() error {
	n := 0
	for _, set := range []bool{r.Time != "", r.Rev != "", r.Latest, r.Clear} {
		if set {
			n++
		}
	}
	if n > 1 {
		return fmt.Errorf("stamp: --time, --rev, --latest and --clear are %w", apperr.ErrMutuallyExclusive)
	}
	return nil
}

// CommitTimer returns the commit timestamp of a revision.
type CommitTimer interface {
	CommitTime(ctx context.Context, rev string) (time.Time, error)
}

// Resolver turns a Request into the value to store.
type Resolver struct {
	// Location is used for "now" and for plain dates. Nil means local time.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
	Git CommitTimer
}

func (r *Resolver) location() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.Local
}

// Resolve returns the formatted timestamp req asks for, or nil when the
// field should be removed.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*string, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var t time.Time
	switch {
	case req.Clear:
		return nil, nil
	case req.Latest, req.Rev != "":
		rev := req.Rev
		if req.Latest {
			rev = "HEAD"
		}
		if r.Git == nil {
			return nil, fmt.Errorf("stamp: no git client configured")
		}
		ct, err := r.Git.CommitTime(ctx, rev)
		if err != nil {
			return nil, fmt.Errorf("stamp: resolve revision %q: %w", rev, err)
		}
		t = ct
	case req.Time != "":
		pt, err := ParseTime(req.Time, r.location())
		if err != nil {
			return nil, err
		}
		t = pt
	default:
		now := time.Now
		if r.Now != nil {
			now = r.Now
		}
		t = now().In(r.location())
	}

	s := Format(t)
	return &s, nil
}

// ParseTime reads a timestamp with an explicit offset, or a plain date.
// A plain date means "everything before the next day": it resolves to
// midnight at the start of the following day in loc.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05Z07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	d, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("stamp: %q %w", s, apperr.ErrInvalidTimestamp)
	}
	return time.Date(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc), nil
}

// Format renders t to the second, keeping its offset.
func Format(t time.Time) string {
	return t.Truncate(time.Second).Format(Layout)
}
