package main

import (
	"fmt"
	"io"
	"os"
)

// Version is set at build time via -ldflags.
// Example: go build -ldflags="-X main.Version=v0.3.0" ./cmd
var Version = "dev"

const usage = `picoterm - relay a live shell session to a tiny remote display

Usage:
  picoterm <command> [options]

Commands:
  host      Run the bridge: shell under a PTY, snapshot frames out the
            serial link and the WebSocket server
  view      Software viewer: connect to a host and emulate the handheld
            display in the terminal
  sessions  List recorded sessions and their event logs
  doctor    Diagnose configuration and link readiness

Run 'picoterm <command> --help' for more information on a command.
`

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		fmt.Fprint(stdout, usage)
		return 0
	}

	switch args[1] {
	case "host":
		return runHost(args[2:], stdout, stderr)
	case "view":
		return runView(args[2:], stdout, stderr)
	case "sessions":
		return runSessions(args[2:], stdout, stderr)
	case "doctor":
		return runDoctor(args[2:], stdout, stderr)
	case "--help", "-h", "help":
		fmt.Fprint(stdout, usage)
		return 0
	case "--version", "-v", "version":
		fmt.Fprintf(stdout, "picoterm %s\n", Version)
		return 0
	default:
		fmt.Fprintf(stdout, "Unknown command: %s\n", args[1])
		fmt.Fprint(stdout, usage)
		return 1
	}
}
