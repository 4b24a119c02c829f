package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/kolide/kit/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, "USAGE\n")
	fmt.Fprintf(os.Stderr, "  %s <mode> --help\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "MODES\n")
	fmt.Fprintf(os.Stderr, "  build         Build the distributable packages for a project\n")
	fmt.Fprintf(os.Stderr, "  list-targets  List the known package kinds per host platform\n")
	fmt.Fprintf(os.Stderr, "  version       Print full version information\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "VERSION\n")
	fmt.Fprintf(os.Stderr, "  %s\n", version.Version().Version)
	fmt.Fprintf(os.Stderr, "\n")
}

func runVersion(_args []string) error {
	version.PrintFull()
	return nil
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1) //nolint:forbidigo // mirrors the teacher's packaging CLI entrypoint
	}

	var run func([]string) error
	switch strings.ToLower(os.Args[1]) {
	case "version":
		run = runVersion
	case "build":
		run = runBuild
	case "list-targets":
		run = runListTargets
	default:
		usage()
		os.Exit(1) //nolint:forbidigo
	}

	if err := run(os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1) //nolint:forbidigo
	}
}
