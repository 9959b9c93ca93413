package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/danmuck/wlctl/internal/config"
	"github.com/danmuck/wlctl/internal/discovery"
	"github.com/danmuck/wlctl/internal/logging"
	"github.com/danmuck/wlctl/internal/monitor"
	"github.com/danmuck/wlctl/internal/protocol/schema"
	"github.com/danmuck/wlctl/internal/protocol/session"
	"github.com/danmuck/wlctl/internal/protocol/wire"
	"github.com/spf13/pflag"
)

type options struct {
	configPath string
	display    string
	protocols  []string
	timeout    time.Duration
	asJSON     bool
}

func main() {
	logging.ConfigureRuntime()
	if err := run(os.Args[1:], os.Stdout, os.LookupEnv); err != nil {
		fmt.Fprintf(os.Stderr, "wlctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, lookup func(string) (string, bool)) error {
	var opts options
	flagSet := pflag.NewFlagSet("wlctl", pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.StringVarP(&opts.configPath, "config", "c", "", "client config file")
	flagSet.StringVarP(&opts.display, "display", "d", "", "display socket name or absolute path")
	flagSet.StringSliceVarP(&opts.protocols, "protocols", "p", nil, "protocol XML files or directories (skips discovery)")
	flagSet.DurationVar(&opts.timeout, "timeout", 5*time.Second, "roundtrip timeout")
	flagSet.BoolVar(&opts.asJSON, "json", false, "print JSON")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(out, flagSet)
		return nil
	}
	rest := flagSet.Args()
	if len(rest) == 0 {
		printHelp(out, flagSet)
		return errors.New("missing command")
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	env := discovery.EnvFromLookup(lookup)
	cat, files, err := discovery.Load(cfg.ProtocolPaths, env)
	if err != nil {
		return err
	}

	switch rest[0] {
	case "catalog":
		if len(rest) > 1 {
			return printInterface(out, cat, rest[1], opts.asJSON)
		}
		return printCatalog(out, cat, opts.asJSON)
	case "globals":
		sessCfg, err := cfg.SessionConfig(lookup)
		if err != nil {
			return err
		}
		conn, err := session.Connect(sessCfg, cat)
		if err != nil {
			return err
		}
		defer conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
		defer cancel()
		globals, err := collectGlobals(ctx, conn)
		if err != nil {
			return err
		}
		return printGlobals(out, globals, opts.asJSON)
	case "info":
		sessCfg, err := cfg.SessionConfig(lookup)
		if err != nil {
			return err
		}
		return printInfo(out, sessCfg, env, cfg.ProtocolPaths, files, cat)
	default:
		return fmt.Errorf("unknown command %q", rest[0])
	}
}

func loadConfig(opts options) (config.ClientConfig, error) {
	cfg := config.DefaultClientConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadClientConfig(opts.configPath)
		if err != nil {
			return config.ClientConfig{}, err
		}
		cfg = loaded
	}
	if opts.display != "" {
		cfg.Display = opts.display
	}
	if len(opts.protocols) > 0 {
		cfg.ProtocolPaths = opts.protocols
	}
	if err := config.ValidateClientConfig(cfg); err != nil {
		return config.ClientConfig{}, err
	}
	return cfg, nil
}

// collectGlobals binds the registry and returns the globals announced
// before the first sync completes.
func collectGlobals(ctx context.Context, conn *session.Conn) ([]monitor.Global, error) {
	table := monitor.NewGlobals()
	reg, err := conn.RequestByName(conn.Display(), "get_registry", wire.NewID(0))
	if err != nil {
		return nil, err
	}
	d := session.NewDispatcher()
	d.HandleObject(reg, func(ev session.Event) error {
		table.Apply(ev, conn.Catalog())
		return nil
	})
	if err := conn.Roundtrip(ctx, d); err != nil {
		return nil, err
	}
	return table.List(), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printGlobals(out io.Writer, globals []monitor.Global, asJSON bool) error {
	if asJSON {
		if globals == nil {
			globals = []monitor.Global{}
		}
		return printJSON(out, globals)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINTERFACE\tVERSION\tBINDABLE")
	for _, g := range globals {
		bindable := "-"
		if g.CatalogVersion > 0 {
			bindable = fmt.Sprint(g.Bindable())
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", g.Name, g.Interface, g.Version, bindable)
	}
	return tw.Flush()
}

type catalogEntry struct {
	Interface string `json:"interface"`
	Protocol  string `json:"protocol"`
	Version   uint32 `json:"version"`
	Requests  int    `json:"requests"`
	Events    int    `json:"events"`
}

func catalogEntries(cat *schema.Catalog) []catalogEntry {
	owner := make(map[*schema.Interface]string)
	for _, p := range cat.Protocols() {
		for _, iface := range p.Interfaces {
			owner[iface] = p.Name
		}
	}
	ifaces := cat.Interfaces()
	out := make([]catalogEntry, 0, len(ifaces))
	for _, iface := range ifaces {
		out = append(out, catalogEntry{
			Interface: iface.WireName,
			Protocol:  owner[iface],
			Version:   iface.Version,
			Requests:  len(iface.Requests),
			Events:    len(iface.Events),
		})
	}
	return out
}

func printCatalog(out io.Writer, cat *schema.Catalog, asJSON bool) error {
	entries := catalogEntries(cat)
	if asJSON {
		return printJSON(out, entries)
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INTERFACE\tPROTOCOL\tVERSION\tREQUESTS\tEVENTS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", e.Interface, e.Protocol, e.Version, e.Requests, e.Events)
	}
	return tw.Flush()
}

func printInterface(out io.Writer, cat *schema.Catalog, name string, asJSON bool) error {
	iface, ok := cat.Interface(name)
	if !ok {
		return fmt.Errorf("%w: %s", session.ErrUnknownInterface, name)
	}
	if asJSON {
		return printJSON(out, iface)
	}
	fmt.Fprintf(out, "%s v%d\n", iface.WireName, iface.Version)
	if iface.Description != nil && iface.Description.Summary != "" {
		fmt.Fprintf(out, "  %s\n", iface.Description.Summary)
	}
	writeMessages(out, "requests", iface.Requests)
	writeMessages(out, "events", iface.Events)
	for _, e := range iface.Enums {
		kind := "enum"
		if e.Bitfield {
			kind = "bitfield"
		}
		fmt.Fprintf(out, "%s %s\n", kind, e.Name)
		for _, entry := range e.Entries {
			fmt.Fprintf(out, "  %s = %d\n", entry.Name, entry.Value)
		}
	}
	return nil
}

func writeMessages(out io.Writer, title string, msgs []*schema.Message) {
	if len(msgs) == 0 {
		return
	}
	fmt.Fprintln(out, title)
	for _, msg := range msgs {
		args := make([]string, 0, len(msg.Args))
		for _, a := range msg.Args {
			typ := a.Type.String()
			if a.Nullable {
				typ = "?" + typ
			}
			args = append(args, a.Name+" "+typ)
		}
		var tags []string
		if msg.Since > 1 {
			tags = append(tags, fmt.Sprintf("since %d", msg.Since))
		}
		if msg.IsDestructor() {
			tags = append(tags, "destructor")
		}
		line := fmt.Sprintf("  %d %s(%s)", msg.Opcode, msg.Name, strings.Join(args, ", "))
		if len(tags) > 0 {
			line += " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintln(out, line)
	}
}

func printInfo(out io.Writer, cfg session.Config, env discovery.Env, explicit, files []string, cat *schema.Catalog) error {
	if cfg.SocketFD >= 0 {
		fmt.Fprintf(out, "socket: inherited fd %d\n", cfg.SocketFD)
	} else if path, err := cfg.SocketPath(); err != nil {
		fmt.Fprintf(out, "socket: unresolved (%v)\n", err)
	} else {
		fmt.Fprintf(out, "socket: %s\n", path)
	}
	dirs := explicit
	if len(dirs) == 0 {
		dirs = discovery.SearchDirs(env)
	}
	fmt.Fprintf(out, "search: %s\n", strings.Join(dirs, ":"))
	fmt.Fprintf(out, "files: %d\n", len(files))
	for _, f := range files {
		fmt.Fprintf(out, "  %s\n", f)
	}
	fmt.Fprintf(out, "interfaces: %d\n", cat.Len())
	return nil
}

func printHelp(out io.Writer, flagSet *pflag.FlagSet) {
	fmt.Fprintf(out, `wlctl inspects display protocol descriptions and live displays.

Usage:
  wlctl [flags] catalog [interface]
  wlctl [flags] globals
  wlctl [flags] info

Flags:
%s`, flagSet.FlagUsages())
}
