package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/cpytool/fs"
	"github.com/bobg/cpytool/inotify"
)

func (c maincmd) inotify(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: inotify DIR [MASK...]")
	}

	mask := fs.WatchMask
	if len(args) > 1 {
		mask = 0
		for _, name := range args[1:] {
			m, err := inotify.ParseMask(name)
			if err != nil {
				return err
			}
			mask |= m
		}
	}

	w, err := inotify.New()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := args[0]
	if err = w.AddWatch(dir, mask); err != nil {
		return err
	}
	fmt.Printf("Watching %s for %s\n", dir, mask)

	for {
		events, err := w.Read(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), ev)
		}
	}
}
