package fs

import (
	"context"
	stderrs "errors"
	iofs "io/fs"
	"log"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/bobg/cpytool"
	"github.com/bobg/cpytool/inotify"
)

// WatchMask is the set of events a TreeWatcher watches each directory for.
const WatchMask = inotify.Create | inotify.Modify | inotify.Attrib | inotify.Delete | inotify.DeleteSelf

// TreeWatcher watches every directory in a set of trees for changes.
// Directories created while it runs are watched too.
//
// A TreeWatcher owns an inotify descriptor.
// Call Close to release it.
type TreeWatcher struct {
	w *inotify.Watcher
}

// NewTreeWatcher creates a TreeWatcher
// and adds a watch on every directory currently in the trees at roots.
// Watching begins immediately,
// so changes made between this call and the first call to Run are not lost.
func NewTreeWatcher(roots []string) (*TreeWatcher, error) {
	w, err := inotify.New()
	if err != nil {
		return nil, err
	}
	tw := &TreeWatcher{w: w}
	for _, root := range roots {
		if err = tw.watchTree(root, nil); err != nil {
			w.Close()
			return nil, err
		}
	}
	return tw, nil
}

// Run sends each change in the watched trees to ch,
// in the order the kernel reports them,
// until ctx is canceled or an error occurs.
// It returns ctx.Err() on cancellation.
//
// When a new directory appears,
// Run watches it and everything beneath it,
// then sends a synthetic Create event for each entry already inside it,
// since those may have been created before the watch was in place.
//
// Run must not be called concurrently with itself.
func (tw *TreeWatcher) Run(ctx context.Context, ch chan<- inotify.Event) error {
	for {
		events, err := tw.w.Read(ctx)
		if err != nil {
			return err
		}
		for _, ev := range events {
			cpytool.Debugf("Filesystem event: %s", ev)

			if ev.Mask.Has(inotify.Ignored) {
				// Watch removal bookkeeping; the deletion itself has its own event.
				continue
			}

			var found []inotify.Event
			if ev.Mask.Has(inotify.Create | inotify.IsDir) {
				log.Printf("Watching newly created directory %s for changes.", ev.Path)
				err = tw.watchTree(ev.Path, func(path string, d iofs.DirEntry) {
					m := inotify.Create
					if d.IsDir() {
						m |= inotify.IsDir
					}
					found = append(found, inotify.Event{Mask: m, Path: path})
				})
				if stderrs.Is(err, iofs.ErrNotExist) {
					cpytool.Debugf("Directory %s vanished before it could be watched", ev.Path)
				} else if err != nil {
					return err
				}
			}

			for _, e := range append([]inotify.Event{ev}, found...) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ch <- e:
				}
			}
		}
	}
}

// Dirs returns the directories currently watched, sorted.
// It must not be called concurrently with Run.
func (tw *TreeWatcher) Dirs() []string {
	return tw.w.Paths()
}

// Close releases the inotify descriptor.
func (tw *TreeWatcher) Close() error {
	return tw.w.Close()
}

// watchTree adds a watch on dir and each directory beneath it.
// If found is not nil it is called for every path beneath dir.
//
// Directories that cannot be watched for lack of permission are logged and skipped,
// as are directories that have vanished by the time they are reached.
// Other failures are fatal.
func (tw *TreeWatcher) watchTree(dir string, found func(string, iofs.DirEntry)) error {
	return Walk(dir, func(path string, d iofs.DirEntry) error {
		if path != dir && found != nil {
			found(path, d)
		}
		if !d.IsDir() {
			return nil
		}

		err := tw.w.AddWatch(path, WatchMask)
		switch {
		case err == nil:
			if found == nil {
				log.Printf("Watching directory %s for changes.", path)
			}
			return nil

		case stderrs.Is(err, unix.EACCES):
			log.Printf("Skipping %s: %s", path, err)
			return filepath.SkipDir

		case stderrs.Is(err, iofs.ErrNotExist) || stderrs.Is(err, unix.ENOTDIR):
			// Came and went while being walked.
			cpytool.Debugf("Not watching vanished directory %s", path)
			return filepath.SkipDir
		}
		return err
	})
}
