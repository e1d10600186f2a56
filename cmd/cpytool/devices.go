package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/cpytool"
)

func (c maincmd) devices(ctx context.Context, save string, args []string) error {
	var (
		q   cpytool.Query
		err error
	)
	switch len(args) {
	case 0:
	case 1:
		q, err = cpytool.ParseQuery(args[0])
		if err != nil {
			return errors.Wrap(err, "parsing query")
		}
	default:
		return errors.New("usage: devices [-save FILE] [QUERY]")
	}

	all, err := cpytool.LoadDevices(c.configPath)
	if err != nil {
		return errors.Wrap(err, "loading devices")
	}
	matches := q.Filter(all)

	if save != "" {
		if err = cpytool.SaveDevices(save, matches); err != nil {
			return err
		}
		fmt.Printf("Saved %d devices to %s\n", len(matches), save)
		return nil
	}

	if len(matches) == 0 {
		fmt.Println("No matching devices.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DEVICE\tPARTITION\tMOUNTPOINT\tCONNECTED")
	for _, d := range matches {
		connected := "-"
		if t := d.ConnectionTime(); !t.IsZero() {
			connected = t.Format(time.RFC3339)
		}
		mountpoint := d.Mountpoint
		if mountpoint == "" {
			mountpoint = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", d.Key(), d.PartitionPath, mountpoint, connected)
	}
	return errors.Wrap(w.Flush(), "writing device list")
}
