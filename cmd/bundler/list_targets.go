package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/crateforge/bundler/pkg/bundle"
)

func runListTargets(_args []string) error {
	hosts := []bundle.HostOS{bundle.Darwin, bundle.Linux, bundle.Windows, bundle.IOS}

	outFH := os.Stdout

	fmt.Fprintf(outFH, "Packaging Target Matrix\n")
	fmt.Fprintf(outFH, "Each row is one host/target OS and the package kinds reachable from it.\n")
	fmt.Fprintf(outFH, "An active updater section appends \"updater\" to every row.\n")
	fmt.Fprintf(outFH, "\n")

	w := tabwriter.NewWriter(outFH, 0, 4, 4, ' ', 0)
	fmt.Fprintf(w, "HOST\tKINDS\n")
	for _, host := range hosts {
		kinds, err := bundle.PlatformKinds(host)
		if err != nil {
			return err
		}
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}
		fmt.Fprintf(w, "%s\t%s\n", host, joinComma(names))
	}
	w.Flush()

	return nil
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
