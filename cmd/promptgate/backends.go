package main

import (
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/odvcencio/promptgate/pkg/backend"
	"github.com/odvcencio/promptgate/pkg/config"
)

func runBackendsCommand(args []string) error {
	fs := flag.NewFlagSet("backends", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return withExitCode(err, 2)
	}

	registry := backend.NewRegistry(cfg)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tCOMMAND\tDEFAULT MODEL\tDEFAULT")
	for _, b := range registry.List() {
		def := ""
		if b.Name() == cfg.DefaultBackend {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Name(), b.Command(), b.DefaultModel(), def)
	}
	return w.Flush()
}
