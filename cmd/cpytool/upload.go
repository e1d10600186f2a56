package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/bobg/cpytool/dsync"
	"github.com/bobg/cpytool/fs"
)

// sourceDirs splits the comma-separated list dirs and makes each entry absolute.
// An empty list means the one source directory guessed from the current directory.
func sourceDirs(dirs string) ([]string, error) {
	var result []string
	for _, dir := range strings.Split(dirs, ",") {
		if dir == "" {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, errors.Wrapf(err, "getting absolute path of %s", dir)
		}
		result = append(result, abs)
	}
	if len(result) > 0 {
		return result, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, "getting current directory")
	}
	dir, err := fs.GuessSourceDir(wd)
	if err != nil {
		return nil, errors.Wrap(err, "finding source directory (use -dir)")
	}
	fmt.Printf("Using source directory %s\n", dir)
	return []string{dir}, nil
}

func (c maincmd) upload(ctx context.Context, dirs, dest string, args []string) error {
	sources, err := sourceDirs(dirs)
	if err != nil {
		return err
	}
	destDir, err := c.destination(dest, args)
	if err != nil {
		return err
	}

	s := &dsync.Session{Sources: sources, Dest: destDir}
	stats, err := s.Sync()
	if err != nil {
		return errors.Wrapf(err, "uploading to %s", destDir)
	}
	fmt.Printf("Copied %d files (%d bytes), %d already up to date\n", stats.Copied, stats.Bytes, stats.Skipped)
	return nil
}
