package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/cpytool/dsync"
)

func (c maincmd) watch(ctx context.Context, dirs, dest string, delay time.Duration, args []string) error {
	if delay <= 0 {
		return errors.New("-delay must be positive")
	}

	sources, err := sourceDirs(dirs)
	if err != nil {
		return err
	}
	destDir, err := c.destination(dest, args)
	if err != nil {
		return err
	}

	s := &dsync.Session{
		Sources: sources,
		Dest:    destDir,
		Delay:   delay,
	}
	if err = s.Run(ctx); err != nil {
		return errors.Wrapf(err, "watching for changes to upload to %s", destDir)
	}
	fmt.Println("Watch cancelled.")
	return nil
}
