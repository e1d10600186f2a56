// Package inotify is a binding to the Linux inotify facility,
// built directly on the inotify_init1, inotify_add_watch, and read system calls.
//
// A Watcher owns one inotify descriptor
// and the mapping from the kernel's watch handles to the directories they watch.
// It is meant to be driven by a single goroutine:
// the one that calls Read is also the one that should call AddWatch.
//
// See inotify(7) for the semantics of the underlying facility.
package inotify

import (
	"context"
	stderrs "errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Event is one decoded inotify record.
type Event struct {
	// Mask says what happened.
	Mask Mask

	// Cookie associates the two halves of a rename.
	Cookie uint32

	// Path is the watched directory joined with the name the record carries.
	// For events about the watched directory itself it is just the directory.
	// It is empty for queue-overflow events,
	// which are not associated with any watch.
	Path string
}

func (e Event) String() string {
	return e.Path + " " + e.Mask.String()
}

// CallError is a failed inotify system call.
// Interrupted calls are retried and never produce a CallError.
type CallError struct {
	Op  string
	Err error
}

func (e *CallError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *CallError) Unwrap() error {
	return e.Err
}

// Large enough for hundreds of records of maximum name length.
const bufSize = 64 * 1024

// Watcher owns an inotify descriptor.
// Create one with New and release it with Close.
type Watcher struct {
	fd    int
	f     *os.File
	paths map[int32]string
	buf   []byte
}

// New creates a Watcher with a fresh inotify descriptor,
// opened non-blocking and close-on-exec.
func New() (*Watcher, error) {
	fd, err := ignoringEINTR(func() (int, error) {
		return unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	})
	if err != nil {
		return nil, &CallError{Op: "inotify_init1", Err: err}
	}
	return &Watcher{
		fd: fd,
		// The descriptor is non-blocking,
		// so os.NewFile registers it with the runtime poller:
		// reads park the calling goroutine until the descriptor is readable.
		f:     os.NewFile(uintptr(fd), "inotify"),
		paths: make(map[int32]string),
		buf:   make([]byte, bufSize),
	}, nil
}

// AddWatch registers dir with the kernel for the events in mask.
// The dir must exist and be a directory.
// Adding a directory that is already watched replaces its mask.
func (w *Watcher) AddWatch(dir string, mask Mask) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "checking watch path %s", dir)
	}
	if !info.IsDir() {
		return errors.Errorf("watch path %s is not a directory", dir)
	}

	wd, err := ignoringEINTR(func() (int, error) {
		return unix.InotifyAddWatch(w.fd, dir, uint32(mask|OnlyDir))
	})
	if err != nil {
		return errors.Wrapf(&CallError{Op: "inotify_add_watch", Err: err}, "watching %s", dir)
	}
	w.paths[int32(wd)] = dir
	return nil
}

// Paths returns the directories currently watched, sorted.
func (w *Watcher) Paths() []string {
	result := make([]string, 0, len(w.paths))
	for _, p := range w.paths {
		result = append(result, p)
	}
	sort.Strings(result)
	return result
}

// Read waits for the descriptor to become readable,
// then returns the events from one read of it, in kernel order.
// The result is never empty when the error is nil.
// If ctx is canceled while waiting,
// Read returns ctx.Err().
func (w *Watcher) Read(ctx context.Context) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A previous canceled Read may have left a deadline behind.
	if err := w.f.SetReadDeadline(time.Time{}); err != nil {
		return nil, errors.Wrap(err, "clearing read deadline")
	}
	expired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		w.f.SetReadDeadline(time.Now())
		close(expired)
	})
	n, err := w.f.Read(w.buf)
	if !stop() {
		// Don't let the deadline land on the next Read.
		<-expired
	}

	if err != nil {
		if ctx.Err() != nil && stderrs.Is(err, os.ErrDeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, &CallError{Op: "read", Err: err}
	}

	records, err := parseRecords(w.buf[:n])
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %d bytes from inotify descriptor", n)
	}
	return w.decode(records), nil
}

// Events reads events until ctx is canceled or an error occurs,
// sending each to ch in kernel order.
// It returns ctx.Err() on cancellation.
func (w *Watcher) Events(ctx context.Context, ch chan<- Event) error {
	for {
		events, err := w.Read(ctx)
		if err != nil {
			return err
		}
		for _, ev := range events {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case ch <- ev:
			}
		}
	}
}

// Close releases the inotify descriptor,
// and with it every watch registered on it.
func (w *Watcher) Close() error {
	return errors.Wrap(w.f.Close(), "closing inotify descriptor")
}

func (w *Watcher) decode(records []record) []Event {
	events := make([]Event, 0, len(records))
	for _, r := range records {
		ev := Event{Mask: r.mask, Cookie: r.cookie}

		if r.mask.Has(QOverflow) {
			// Overflow records carry watch descriptor -1.
			events = append(events, ev)
			continue
		}

		dir, ok := w.paths[r.wd]
		if !ok {
			panic(errors.Errorf("inotify record for unknown watch handle %d (mask %s)", r.wd, r.mask))
		}
		if r.name == "" {
			ev.Path = dir
		} else {
			ev.Path = filepath.Join(dir, r.name)
		}
		events = append(events, ev)

		if r.mask.Has(Ignored) {
			// The kernel has retired this handle and may hand out the number again.
			delete(w.paths, r.wd)
		}
	}
	return events
}

func ignoringEINTR(f func() (int, error)) (int, error) {
	for {
		n, err := f()
		if err != unix.EINTR {
			return n, err
		}
	}
}
