// Package gitrev looks up commit timestamps with the git CLI.
package gitrev

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/juv/internal/proc"
)

// Client queries a repository through the git binary.
type Client struct {
	Binary string // defaults to "git"
	Dir    string // working directory; "" is the current directory
}

// New returns a client for the repository containing dir.
func New(binary, dir string) *Client {
	return &Client{Binary: binary, Dir: dir}
}

func (c *Client) binary() string {
	if c.Binary == "" {
		return "git"
	}
	return c.Binary
}

// CommitTime returns the committer date of rev with its original offset.
func (c *Client) CommitTime(ctx context.Context, rev string) (time.Time, error) {
	out, err := proc.Output(ctx, c.Dir, c.binary(), "show", "-s", "--format=%cI", rev)
	if err != nil {
		return time.Time{}, fmt.Errorf("gitrev: %s: %w", rev, err)
	}
	return ParseCommitTime(out)
}

// ParseCommitTime reads the strict ISO 8601 form printed by %cI.
func ParseCommitTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("gitrev: parse %q: %w", s, err)
	}
	return t, nil
}
