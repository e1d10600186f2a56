package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"

	"github.com/bobg/cpytool"
	"github.com/bobg/cpytool/dsync"
)

type maincmd struct {
	configPath string
}

func main() {
	var (
		config  = flag.String("config", cpytool.DefaultDevicesPath(), "path to device definitions file")
		verbose = flag.Bool("v", cpytool.Verbose, "verbose logging")
	)
	flag.Parse()

	cpytool.Verbose = *verbose

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go cancelOnSignal(sigCh, cancel)

	err := subcmd.Run(ctx, maincmd{configPath: *config}, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
}

// cancelOnSignal calls cancel when the first signal arrives on sigCh,
// then stops relaying signals to sigCh,
// so a second interrupt kills the process.
func cancelOnSignal(sigCh chan os.Signal, cancel context.CancelFunc) {
	sig := <-sigCh
	cpytool.Debugf("got signal %s", sig)
	cancel()
	signal.Stop(sigCh)
}

func (c maincmd) Subcmds() subcmd.Map {
	return subcmd.Commands(
		"devices", c.devices, subcmd.Params(
			"save", subcmd.String, "", "write the matching devices to this TOML file",
		),
		"inotify", c.inotify, nil,
		"mount", c.mount, nil,
		"upload", c.upload, subcmd.Params(
			"dir", subcmd.String, "", "comma-separated source directories (default: guessed from the current directory)",
			"dest", subcmd.String, "", "destination directory (default: mountpoint of the device matching the query)",
		),
		"watch", c.watch, subcmd.Params(
			"dir", subcmd.String, "", "comma-separated source directories (default: guessed from the current directory)",
			"dest", subcmd.String, "", "destination directory (default: mountpoint of the device matching the query)",
			"delay", subcmd.Duration, dsync.DefaultDelay, "how long changes must settle before uploading",
		),
	)
}

// findDevice loads the configured devices and returns the one matching query.
func (c maincmd) findDevice(query string) (cpytool.Device, error) {
	q, err := cpytool.ParseQuery(query)
	if err != nil {
		return cpytool.Device{}, errors.Wrap(err, "parsing query")
	}
	devices, err := cpytool.LoadDevices(c.configPath)
	if err != nil {
		return cpytool.Device{}, errors.Wrap(err, "loading devices")
	}
	return q.Distinct(devices)
}

// destination is the directory named by -dest,
// or else the mountpoint of the device matching the query in args.
func (c maincmd) destination(dest string, args []string) (string, error) {
	if dest != "" {
		if len(args) > 0 {
			return "", errors.New("cannot supply both -dest and a device query")
		}
		return dest, nil
	}
	if len(args) != 1 {
		return "", errors.New("must supply one of -dest or a device query")
	}
	d, err := c.findDevice(args[0])
	if err != nil {
		return "", err
	}
	return d.MountIfNeeded()
}
