package dsync

import (
	"bytes"
	"context"
	stderrs "errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bobg/flock"
	"github.com/google/go-cmp/cmp"

	"github.com/bobg/cpytool/fs"
	"github.com/bobg/cpytool/inotify"
	"github.com/bobg/cpytool/testutil"
)

func TestSync(t *testing.T) {
	var (
		src  = t.TempDir()
		dest = t.TempDir()
	)
	testutil.WriteFile(t, src, "code.py", "print('hi')\n")
	testutil.WriteFile(t, src, "lib/helper.py", "")

	s := &Session{Sources: []string{src}, Dest: dest}

	stats, err := s.Sync()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Copied != 2 {
		t.Errorf("got %d copied, want 2", stats.Copied)
	}

	stats, err = s.Sync()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(fs.UploadStats{Skipped: 2}, stats); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRun(t *testing.T) {
	var (
		src  = t.TempDir()
		dest = t.TempDir()
		t1   = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	)
	codePath := testutil.WriteFile(t, src, "code.py", "v1")
	testutil.SetModTime(t, codePath, t1)

	s := &Session{
		Sources: []string{src},
		Dest:    dest,
		Delay:   50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	destContents := func(rel string) func() bool {
		return func() bool {
			b, err := os.ReadFile(filepath.Join(dest, rel))
			return err == nil && len(b) > 0
		}
	}
	testutil.Eventually(t, 5*time.Second, "initial sync", destContents("code.py"))

	// A file in a directory that did not exist when watching began.
	testutil.WriteFile(t, src, "lib/new.py", "X = 1")
	testutil.Eventually(t, 5*time.Second, "lib/new.py", destContents("lib/new.py"))

	testutil.WriteFile(t, src, "code.py", "v2")
	testutil.SetModTime(t, codePath, t1.Add(10*time.Second))
	testutil.Eventually(t, 5*time.Second, "updated code.py", func() bool {
		b, err := os.ReadFile(filepath.Join(dest, "code.py"))
		return err == nil && string(b) == "v2"
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("got error %v from canceled Run, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to exit")
	}
}

// logBuffer collects log output from concurrent goroutines.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func captureLog(t *testing.T) *logBuffer {
	b := new(logBuffer)
	log.SetOutput(b)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return b
}

func TestRunRetriesAfterFailedSync(t *testing.T) {
	var (
		src  = t.TempDir()
		dest = t.TempDir()
		logs = captureLog(t)
	)
	testutil.WriteFile(t, src, "a.py", "a")

	s := &Session{
		Sources: []string{src},
		Dest:    dest,
		Delay:   50 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	destFile := func(rel, want string) func() bool {
		return func() bool {
			b, err := os.ReadFile(filepath.Join(dest, rel))
			return err == nil && string(b) == want
		}
	}
	testutil.Eventually(t, 5*time.Second, "initial sync", destFile("a.py", "a"))

	// A directory in the way makes the next sync fail.
	blocker := testutil.Mkdir(t, dest, "b.py")
	testutil.WriteFile(t, src, "b.py", "b")
	testutil.Eventually(t, 5*time.Second, "failed sync", func() bool {
		return strings.Contains(logs.String(), "ERROR syncing")
	})

	// The session is still running, and the next change retries.
	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	testutil.WriteFile(t, src, "c.py", "c")
	testutil.Eventually(t, 5*time.Second, "retried sync", func() bool {
		return destFile("b.py", "b")() && destFile("c.py", "c")()
	})

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("got error %v from canceled Run, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for Run to exit")
	}
}

func TestSyncWaitsForLock(t *testing.T) {
	var (
		src  = t.TempDir()
		dest = t.TempDir()
	)
	testutil.WriteFile(t, src, "code.py", "")

	s := &Session{Sources: []string{src}, Dest: dest}
	lockPath, err := s.lockPath()
	if err != nil {
		t.Fatal(err)
	}

	var other flock.Locker
	if err = other.Lock(lockPath); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { other.Unlock(lockPath) })

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Sync()
		errCh <- err
	}()

	select {
	case err = <-errCh:
		t.Fatalf("Sync returned (%v) while the destination was locked", err)
	case <-time.After(300 * time.Millisecond):
	}
	if got := testutil.Files(t, dest); len(got) != 0 {
		t.Errorf("got files %v written while locked", got)
	}

	if err = other.Unlock(lockPath); err != nil {
		t.Fatal(err)
	}
	select {
	case err = <-errCh:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Sync did not proceed after the lock was released")
	}
	if diff := cmp.Diff([]string{"code.py"}, testutil.Files(t, dest)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestRunInitialSyncError(t *testing.T) {
	var (
		src  = t.TempDir()
		dest = t.TempDir()
	)
	testutil.WriteFile(t, src, "code.py", "")
	testutil.Mkdir(t, dest, "code.py")

	s := &Session{Sources: []string{src}, Dest: dest}
	err := s.Run(context.Background())

	var cerr *fs.CopyError
	if !stderrs.As(err, &cerr) {
		t.Errorf("got error %v, want a *fs.CopyError", err)
	}
}

func TestRunMissingSource(t *testing.T) {
	s := &Session{
		Sources: []string{filepath.Join(t.TempDir(), "missing")},
		Dest:    t.TempDir(),
	}
	if err := s.Run(context.Background()); err == nil {
		t.Error("got no error, want one")
	}
}

func TestChangedPaths(t *testing.T) {
	events := []inotify.Event{
		{Mask: inotify.Create, Path: "/src/a.py"},
		{Mask: inotify.Modify, Path: "/src/b.py"},
		{Mask: inotify.Modify, Path: "/src/a.py"},
		{Mask: inotify.QOverflow},
	}
	want := []string{"/src/a.py", "/src/b.py", "(event queue overflow)"}
	if diff := cmp.Diff(want, changedPaths(events)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestLockPath(t *testing.T) {
	var (
		a = &Session{Dest: "/media/CIRCUITPY"}
		b = &Session{Dest: "/media/CIRCUITPY/"}
		c = &Session{Dest: "/media/CIRCUITPY1"}
	)
	pa, err := a.lockPath()
	if err != nil {
		t.Fatal(err)
	}
	pb, err := b.lockPath()
	if err != nil {
		t.Fatal(err)
	}
	pc, err := c.lockPath()
	if err != nil {
		t.Fatal(err)
	}
	if pa != pb {
		t.Errorf("lock paths differ for equivalent destinations: %s vs. %s", pa, pb)
	}
	if pa == pc {
		t.Errorf("lock paths are the same for different destinations: %s", pa)
	}
}
