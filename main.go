package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"grimm.is/nftblockd/cmd"
	"grimm.is/nftblockd/internal/brand"
	"grimm.is/nftblockd/internal/errdefs"
	"grimm.is/nftblockd/internal/updater"
)

// Exit codes. Init systems key restart policy off these.
const (
	exitOK         = 0
	exitConfig     = 1
	exitExhausted  = 2
	exitApplyError = 3
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitConfig)
	}

	switch os.Args[1] {
	case "run":
		opts := parseOptions("run", os.Args[2:])
		if err := cmd.RunUpdate(opts); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", brand.BinaryName, err)
			os.Exit(exitCodeFor(err))
		}

	case "delete":
		opts := parseOptions("delete", os.Args[2:])
		if err := cmd.RunDelete(opts); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", brand.BinaryName, err)
			os.Exit(exitCodeFor(err))
		}

	case "check":
		opts := parseOptions("check", os.Args[2:])
		if err := cmd.RunCheck(opts); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", brand.BinaryName, err)
			os.Exit(exitCodeFor(err))
		}

	case "version":
		fmt.Printf("%s version %s\n", brand.Name, brand.Version)

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitConfig)
	}
}

// parseOptions handles the flag overlay shared by all subcommands.
func parseOptions(name string, args []string) cmd.Options {
	var opts cmd.Options
	fs := flag.NewFlagSet(name, flag.ExitOnError)

	fs.StringVar(&opts.ConfigFile, "config", brand.DefaultConfigFile, "Configuration file")
	fs.StringVar(&opts.ConfigFile, "c", brand.DefaultConfigFile, "Configuration file (short)")

	fs.StringVar(&opts.IPv4URL, "4", "", "IPv4 blocklist URL (overrides config)")
	fs.StringVar(&opts.IPv6URL, "6", "", "IPv6 blocklist URL (overrides config)")

	fs.StringVar(&opts.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&opts.NftPath, "nft", "", "Path to the nft binary")
	fs.BoolVar(&opts.Native, "native", false, "Apply rulesets over netlink instead of the nft binary")

	fs.Parse(args)
	return opts
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, updater.ErrRetriesExhausted):
		return exitExhausted
	case errors.Is(err, errdefs.ErrNftables):
		return exitApplyError
	default:
		return exitConfig
	}
}

func printUsage() {
	fmt.Printf(`%s - %s

Usage:
  %s <command> [options]

Commands:
  run       Run the update loop (fetch, validate, apply, repeat)
  delete    Delete the blocklist table and all its contents
  check     Validate configuration and print the static ruleset as JSON
  version   Print version information
  help      Show this help

Options (all commands):
  -config (-c) <file>   Configuration file (default %s)
  -4 <url>              IPv4 blocklist URL (overrides config)
  -6 <url>              IPv6 blocklist URL (overrides config)
  -log-level <level>    debug, info, warn, error
  -nft <path>           Path to the nft binary
  -native               Apply over netlink instead of the nft binary

Examples:
  %s run -4 https://example.com/drop.txt
  %s check -c /etc/nftblockd/nftblockd.hcl
  %s delete
`,
		brand.Name, brand.Description,
		brand.BinaryName,
		brand.DefaultConfigFile,
		brand.BinaryName, brand.BinaryName, brand.BinaryName)
}
