//go:build mage
// +build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

func Build() error {
	return sh.Run(mg.GoCmd(), "build", "./cmd/cpytool")
}

// Test runs the tests with the race detector.
// The inotify, fs, and dsync tests need Linux.
func Test() error {
	args := []string{"test", "-race"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	return sh.Run(mg.GoCmd(), args...)
}

func Vet() error {
	return sh.RunV(mg.GoCmd(), "vet", "./...")
}

func Lint() error {
	mg.Deps(Vet)
	return sh.RunV("staticcheck", "./...")
}
