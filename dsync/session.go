// Package dsync keeps a CircuitPython drive in sync with the source trees it is built from.
//
// A Session copies its source trees onto the drive once,
// then watches them
// and copies again after each burst of changes settles.
package dsync

import (
	"context"
	"crypto/sha256"
	stderrs "errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bobg/flock"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/bobg/cpytool"
	"github.com/bobg/cpytool/batch"
	"github.com/bobg/cpytool/fs"
	"github.com/bobg/cpytool/inotify"
)

// DefaultDelay is how long a Session waits for changes to stop
// before copying them.
const DefaultDelay = 500 * time.Millisecond

// Session synchronizes one or more source trees onto a destination directory,
// normally the mountpoint of a CircuitPython drive.
type Session struct {
	// Sources are the source trees, in order.
	// A file in a later tree replaces one at the same relative path in an earlier tree.
	Sources []string

	// Dest is the destination directory.
	Dest string

	// Delay is how long Run waits after the last change in a burst before syncing.
	// If it is zero, DefaultDelay is used.
	Delay time.Duration

	flocker flock.Locker
}

// Sync copies the source trees onto the destination, once,
// skipping files that are already up to date.
//
// Sync holds a lock on the destination while copying,
// so concurrent Sessions (in this process or others)
// never write the same drive at the same time.
// It waits for the lock if another Session holds it.
func (s *Session) Sync() (fs.UploadStats, error) {
	lockPath, err := s.lockPath()
	if err != nil {
		return fs.UploadStats{}, err
	}
	if err = s.lock(lockPath); err != nil {
		return fs.UploadStats{}, errors.Wrapf(err, "locking %s", lockPath)
	}
	defer func() {
		if err := s.flocker.Unlock(lockPath); err != nil {
			log.Printf("ERROR unlocking %s: %s", lockPath, err)
		}
	}()

	return fs.Upload(s.Sources, s.Dest)
}

// Run syncs the source trees onto the destination,
// then watches them for changes and syncs again after each batch of changes,
// until ctx is canceled.
// Every sync copies whatever has changed in the full source trees,
// not only the paths named in the batch.
//
// An error from the first sync is returned.
// Later sync errors are logged and the session carries on;
// the next batch of changes tries again.
//
// Run returns nil when ctx is canceled.
func (s *Session) Run(ctx context.Context) error {
	// Watch before the first sync, so changes made during it are seen.
	tw, err := fs.NewTreeWatcher(s.Sources)
	if err != nil {
		return errors.Wrap(err, "watching source trees")
	}
	defer func() {
		if err := tw.Close(); err != nil {
			log.Printf("ERROR closing watcher: %s", err)
		}
	}()

	if _, err = s.Sync(); err != nil {
		return errors.Wrap(err, "in initial sync")
	}

	delay := s.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	var (
		events  = make(chan inotify.Event, 100)
		batches = make(chan []inotify.Event)
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(events)
		return tw.Run(gctx, events)
	})

	g.Go(func() error {
		return batch.Debounce(gctx, events, delay, batches)
	})

	g.Go(func() error {
		for b := range batches {
			if gctx.Err() != nil {
				continue
			}
			s.handleBatch(b)
		}
		return nil
	})

	err = g.Wait()
	if ctx.Err() != nil {
		log.Print("context canceled, exiting watch loop")
		return nil
	}
	return err
}

func (s *Session) handleBatch(events []inotify.Event) {
	log.Printf("Modified paths: %s", strings.Join(changedPaths(events), ", "))

	if _, err := s.Sync(); err != nil {
		log.Printf("ERROR syncing to %s: %s", s.Dest, err)
	}
}

// changedPaths lists the distinct paths in events, in order of first appearance.
func changedPaths(events []inotify.Event) []string {
	var (
		result []string
		seen   = make(map[string]bool)
	)
	for _, ev := range events {
		p := ev.Path
		if ev.Mask.Has(inotify.QOverflow) {
			p = "(event queue overflow)"
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		result = append(result, p)
	}
	return result
}

const lockPollInterval = 100 * time.Millisecond

// lock waits until it can take the lock on path.
// A lock left behind by a crashed process expires after a minute.
func (s *Session) lock(path string) error {
	for {
		err := s.flocker.Lock(path)
		if !stderrs.Is(err, flock.ErrLocked) {
			return err
		}
		cpytool.Debugf("Waiting for lock on %s", path)
		time.Sleep(lockPollInterval)
	}
}

// lockPath is the path whose lock guards s.Dest.
// It lives outside the destination so nothing is written to the drive but the files being synced.
func (s *Session) lockPath() (string, error) {
	dest, err := filepath.Abs(s.Dest)
	if err != nil {
		return "", errors.Wrapf(err, "getting absolute path of %s", s.Dest)
	}
	sum := sha256.Sum256([]byte(dest))
	name := fmt.Sprintf("cpytool-%x", sum[:8])
	return filepath.Join(os.TempDir(), name), nil
}
