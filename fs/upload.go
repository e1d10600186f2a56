package fs

import (
	stderrs "errors"
	"io"
	iofs "io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/cpytool"
)

// ErrNoSource means a source root given to Upload does not exist.
var ErrNoSource = errors.New("source directory does not exist")

// CopyError is a failure to copy one file onto the destination.
type CopyError struct {
	Source, Dest string
	Err          error
}

func (e *CopyError) Error() string {
	return "copying " + e.Source + " to " + e.Dest + ": " + e.Err.Error()
}

func (e *CopyError) Unwrap() error {
	return e.Err
}

// UploadStats counts what Upload did.
type UploadStats struct {
	// Copied is the number of files written to the destination.
	Copied int

	// Skipped is the number of files already up to date.
	Skipped int

	// Bytes is the number of bytes written to the destination.
	Bytes int64
}

// The FAT filesystem on a CircuitPython drive
// records modification times in units of two seconds.
const fatTimeResolution = 2

// CoarsenModTime rounds t down to the two-second resolution of FAT timestamps.
func CoarsenModTime(t time.Time) time.Time {
	secs := t.Unix()
	secs -= ((secs % fatTimeResolution) + fatTimeResolution) % fatTimeResolution
	return time.Unix(secs, 0)
}

// Upload copies the files of each source directory into dest,
// so that the relative path of each file beneath its source
// is its relative path beneath dest.
// Missing directories in dest are created as needed.
// Files and directories whose names begin with "." are skipped.
//
// A file whose destination already exists with a modification time
// equal to the source's time rounded down to two seconds
// is considered up to date and not copied.
// Each copied file gets that rounded time,
// so uploading an unchanged tree a second time writes nothing.
//
// When two sources contain the same relative path,
// the one in the later source is the one copied.
//
// Each source must be an existing directory;
// otherwise Upload does nothing and returns an error wrapping ErrNoSource.
// Upload stops at the first file that fails to copy,
// returning a *CopyError.
func Upload(sources []string, dest string) (UploadStats, error) {
	var stats UploadStats

	for _, src := range sources {
		info, err := os.Stat(src)
		if stderrs.Is(err, os.ErrNotExist) {
			return stats, errors.Wrapf(ErrNoSource, "source %s", src)
		}
		if err != nil {
			return stats, errors.Wrapf(err, "checking source %s", src)
		}
		if !info.IsDir() {
			return stats, errors.Errorf("source %s is not a directory", src)
		}
	}

	var (
		plan  []plannedCopy
		index = make(map[string]int) // target -> position in plan
	)
	err := WalkAll(sources, func(root, path string, d iofs.DirEntry) error {
		if path != root && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		// Follow symlinks to the files they name.
		info, err := os.Stat(path)
		if err != nil {
			return &CopyError{Source: path, Dest: dest, Err: err}
		}
		if !info.Mode().IsRegular() {
			cpytool.Debugf("Skipping non-regular file %s", path)
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return errors.Wrapf(err, "computing path of %s relative to %s", path, root)
		}
		pc := plannedCopy{src: path, target: filepath.Join(dest, rel), info: info}
		if i, ok := index[pc.target]; ok {
			cpytool.Debugf("%s overrides %s", path, plan[i].src)
			plan[i] = pc
			return nil
		}
		index[pc.target] = len(plan)
		plan = append(plan, pc)
		return nil
	})
	if err != nil {
		return stats, err
	}

	for _, pc := range plan {
		n, copied, err := syncFile(pc.src, pc.info, pc.target)
		if err != nil {
			return stats, &CopyError{Source: pc.src, Dest: pc.target, Err: err}
		}
		if copied {
			log.Printf("Copying %s", pc.src)
			stats.Copied++
			stats.Bytes += n
		} else {
			cpytool.Debugf("Up to date: %s", pc.target)
			stats.Skipped++
		}
	}

	log.Printf("Upload complete: %d copied, %d up to date, %d bytes", stats.Copied, stats.Skipped, stats.Bytes)
	return stats, nil
}

type plannedCopy struct {
	src, target string
	info        os.FileInfo
}

// syncFile copies src to target unless target is already up to date.
// It reports the number of bytes written and whether a copy happened.
func syncFile(src string, info os.FileInfo, target string) (int64, bool, error) {
	mtime := CoarsenModTime(info.ModTime())

	targetInfo, err := os.Stat(target)
	if err == nil && targetInfo.ModTime().Equal(mtime) {
		return 0, false, nil
	}
	if err != nil && !stderrs.Is(err, os.ErrNotExist) {
		return 0, false, errors.Wrapf(err, "checking %s", target)
	}

	dir := filepath.Dir(target)
	if err = os.MkdirAll(dir, 0755); err != nil {
		return 0, false, errors.Wrapf(err, "making dir %s", dir)
	}

	n, err := copyFile(src, target, info.Mode().Perm(), mtime)
	return n, true, err
}

func copyFile(src, target string, perm os.FileMode, mtime time.Time) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s for reading", src)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, errors.Wrapf(err, "opening %s for writing", target)
	}
	n, err := io.Copy(out, in)
	if err != nil {
		out.Close()
		return n, errors.Wrapf(err, "copying to %s", target)
	}
	if err = out.Close(); err != nil {
		return n, errors.Wrapf(err, "closing %s", target)
	}

	// FAT has no Unix permissions; vfat refuses some mode changes.
	if err = os.Chmod(target, perm); err != nil {
		cpytool.Debugf("Could not set mode of %s: %s", target, err)
	}
	err = os.Chtimes(target, mtime, mtime)
	return n, errors.Wrapf(err, "setting times of %s", target)
}
