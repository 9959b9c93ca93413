package main

import (
	"fmt"
	"os"

	"github.com/danmuck/wlctl/internal/config"
	"github.com/danmuck/wlctl/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

var defaultPaths = map[string]string{
	"client":  "cmd/wlctl/config.toml",
	"monitor": "cmd/wlmon/config.toml",
}

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:]); err != nil {
		log.Error().Err(err).Msg("configgen failed")
		os.Exit(1)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := flagSet.String("kind", "client", "config kind: client|monitor")
	output := flagSet.StringP("output", "o", "", "output path for config template")
	validate := flagSet.Bool("validate", false, "validate an existing config file")
	input := flagSet.StringP("input", "i", "", "config path for validation (defaults to per-kind cmd path)")
	force := flagSet.BoolP("force", "f", false, "overwrite existing config file")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	fallback, ok := defaultPaths[*kind]
	if !ok {
		return fmt.Errorf("unknown kind: %s", *kind)
	}

	if *validate {
		path := *input
		if path == "" {
			path = fallback
		}
		if _, err := config.LoadClientConfig(path); err != nil {
			return err
		}
		log.Info().Msgf("configgen.validate kind=%s path=%s", *kind, path)
		return nil
	}

	target := *output
	if target == "" {
		target = fallback
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	log.Info().Msgf("configgen.write kind=%s path=%s", *kind, target)
	return nil
}
