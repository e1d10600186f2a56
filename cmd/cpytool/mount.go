package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

func (c maincmd) mount(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: mount QUERY")
	}

	d, err := c.findDevice(args[0])
	if err != nil {
		return err
	}
	mountpoint, err := d.MountIfNeeded()
	if err != nil {
		return err
	}
	fmt.Println(mountpoint)
	return nil
}
