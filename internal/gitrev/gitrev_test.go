package gitrev

import (
	"context"
	"os/exec"
	"testing"
	"time"
)

func TestParseCommitTime_KeepsOffset(t *testing.T) {
	got, err := ParseCommitTime("2024-05-01T12:00:00-07:00")
	if err != nil {
		t.Fatalf("ParseCommitTime: %v", err)
	}
	_, off := got.Zone()
	if off != -7*60*60 {
		t.Errorf("offset = %d", off)
	}
	if got.Hour() != 12 {
		t.Errorf("hour = %d", got.Hour())
	}
}

func TestParseCommitTime_Invalid(t *testing.T) {
	if _, err := ParseCommitTime("yesterday"); err == nil {
		t.Error("expected error")
	}
}

func TestCommitTime_Repository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(cmd.Environ(),
			"GIT_AUTHOR_NAME=t", "GIT_AUTHOR_EMAIL=t@example.com",
			"GIT_COMMITTER_NAME=t", "GIT_COMMITTER_EMAIL=t@example.com",
			"GIT_COMMITTER_DATE=2024-05-01T12:00:00+02:00",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Skipf("git %v: %v: %s", args, err, out)
		}
	}
	run("init", "-q")
	run("commit", "-q", "--allow-empty", "-m", "init")

	got, err := New("", dir).CommitTime(context.Background(), "HEAD")
	if err != nil {
		t.Fatalf("CommitTime: %v", err)
	}
	if s := got.Format(time.RFC3339); s != "2024-05-01T12:00:00+02:00" {
		t.Errorf("CommitTime = %s", s)
	}
}

func TestCommitTime_UnknownRevision(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
	if _, err := New("", t.TempDir()).CommitTime(context.Background(), "no-such-rev"); err == nil {
		t.Error("expected error outside a repository")
	}
}
