// Package fs walks, watches, and copies CircuitPython source trees.
//
// Walk and WalkAll enumerate source trees.
// TreeWatcher keeps an inotify watch on every directory in a set of trees,
// including directories created after watching began.
// Upload copies source trees onto a device's drive,
// skipping files whose timestamps show they are already there.
package fs

import (
	stderrs "errors"
	iofs "io/fs"
	"log"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bobg/cpytool"
)

// WalkFunc is called by Walk for each path it visits.
// Returning filepath.SkipDir for a directory skips its contents.
// Any other error stops the walk.
type WalkFunc func(path string, d iofs.DirEntry) error

// Walk calls fn for root and then for every file and directory beneath it,
// depth first, in lexical order within each directory.
//
// If root is a symlink, the tree it points to is walked,
// but paths are still reported beneath root.
// Symlinks below root are not followed.
//
// A subdirectory that cannot be read for lack of permission
// is logged and its contents skipped.
// So is one that vanishes before it can be read.
// The walk carries on in both cases.
func Walk(root string, fn WalkFunc) error {
	resolved, err := filepath.EvalSymlinks(root)
	if err != nil {
		return errors.Wrapf(err, "walking %s", root)
	}

	return filepath.WalkDir(resolved, func(path string, d iofs.DirEntry, err error) error {
		if path == resolved {
			path = root
		} else if resolved != root {
			rel, relErr := filepath.Rel(resolved, path)
			if relErr != nil {
				return errors.Wrapf(relErr, "computing path of %s relative to %s", path, resolved)
			}
			path = filepath.Join(root, rel)
		}

		if err != nil {
			if path != root {
				switch {
				case stderrs.Is(err, iofs.ErrPermission):
					log.Printf("Skipping %s: %s", path, err)
					return nil
				case stderrs.Is(err, iofs.ErrNotExist):
					cpytool.Debugf("Skipping vanished %s", path)
					return nil
				}
			}
			return errors.Wrapf(err, "walking %s", path)
		}
		return fn(path, d)
	})
}

// WalkAllFunc is called by WalkAll for each path it visits,
// together with the root it was found beneath.
type WalkAllFunc func(root, path string, d iofs.DirEntry) error

// WalkAll walks each of roots in turn,
// calling fn with the root alongside each path
// so that callers can compute paths relative to it.
func WalkAll(roots []string, fn WalkAllFunc) error {
	for _, root := range roots {
		err := Walk(root, func(path string, d iofs.DirEntry) error {
			return fn(root, path, d)
		})
		if err != nil {
			return err
		}
	}
	return nil
}
