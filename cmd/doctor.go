// This file implements the `picoterm doctor` diagnostic command.
//
// The doctor command runs a sequence of preflight checks against the
// local host environment and reports actionable remediation guidance
// for any issues. It supports both human-readable (default) and
// machine-readable (--json) output.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"time"

	"github.com/picoterm/host/internal/config"
)

// DoctorResult is the top-level JSON output for `picoterm doctor --json`.
type DoctorResult struct {
	// Version is the doctor output schema version. Always "1".
	Version string `json:"version"`

	// Checks is the ordered list of diagnostic checks that were evaluated.
	Checks []DoctorCheck `json:"checks"`

	// Summary contains aggregate pass/warn/fail counts derived from Checks.
	Summary DoctorSummary `json:"summary"`
}

// DoctorCheck is one diagnostic check in the doctor output.
type DoctorCheck struct {
	// ID is a stable, machine-readable identifier for the check.
	ID string `json:"id"`

	// Status is the check result: "pass", "warn", or "fail".
	Status string `json:"status"`

	// Message is a human-readable summary of what was found.
	Message string `json:"message"`

	// NextAction is a concrete remediation step the operator should take.
	NextAction string `json:"next_action"`
}

// DoctorSummary holds aggregate counts of check outcomes.
type DoctorSummary struct {
	Pass int `json:"pass"`
	Warn int `json:"warn"`
	Fail int `json:"fail"`
}

// Stable check IDs. These are part of the CLI contract.
const (
	checkIDConfig   = "config.file"
	checkIDGeometry = "config.geometry"
	checkIDSerial   = "serial.device"
	checkIDShell    = "shell.command"
	checkIDHost     = "host.reachability"
)

// Stable status values for doctor checks.
const (
	statusPass = "pass"
	statusWarn = "warn"
	statusFail = "fail"
)

// Function-variable seams for testability. Tests override these to
// inject deterministic behavior without device or network access.
var (
	// doctorStatDevice stats the serial device path.
	doctorStatDevice = os.Stat

	// doctorLookPath resolves the shell command.
	doctorLookPath = exec.LookPath

	// doctorDialHost probes the WebSocket listen address.
	doctorDialHost = func(addr string) error {
		conn, err := net.DialTimeout("tcp", addr, time.Second)
		if err != nil {
			return err
		}
		return conn.Close()
	}
)

// runDoctor implements the `picoterm doctor` CLI command. Returns 0
// when no checks fail, 1 when any check fails.
func runDoctor(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(stderr)

	jsonMode := fs.Bool("json", false, "Emit machine-readable JSON to stdout")
	configPath := fs.String("config", "", "Config file path override")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: picoterm doctor [options]\n\nDiagnose configuration and link readiness.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	cfg, loadErr := config.Load(*configPath)
	if cfg == nil {
		cfg = &config.Config{}
	}
	cfg.ApplyDefaults()

	checks := make([]DoctorCheck, 0, 5)
	checks = append(checks, evalConfigFile(loadErr, *configPath))
	checks = append(checks, evalGeometry(cfg))
	checks = append(checks, evalSerialDevice(cfg))
	checks = append(checks, evalShellCommand(cfg))
	checks = append(checks, evalHostReachability(cfg))

	summary := DoctorSummary{}
	for _, c := range checks {
		switch c.Status {
		case statusPass:
			summary.Pass++
		case statusWarn:
			summary.Warn++
		case statusFail:
			summary.Fail++
		}
	}

	result := DoctorResult{Version: "1", Checks: checks, Summary: summary}

	if *jsonMode {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(stderr, "Error: failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		renderDoctorHuman(stdout, result)
	}

	if summary.Fail > 0 {
		return 1
	}
	return 0
}

// evalConfigFile reports whether the config file loaded.
func evalConfigFile(loadErr error, path string) DoctorCheck {
	check := DoctorCheck{ID: checkIDConfig}
	if loadErr != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Config error: %v", loadErr)
		check.NextAction = "Fix the file named in the error, or pass a valid --config path."
		return check
	}
	check.Status = statusPass
	if path == "" {
		check.Message = "Configuration loaded (defaults apply where unset)."
	} else {
		check.Message = fmt.Sprintf("Configuration loaded from %s.", path)
	}
	check.NextAction = "No action required."
	return check
}

// evalGeometry verifies the grid fits the frame header.
func evalGeometry(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDGeometry}
	if err := cfg.Validate(); err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Invalid configuration: %v", err)
		check.NextAction = "Rows and cols must each be 1..255; fix the config or flags."
		return check
	}
	check.Status = statusPass
	check.Message = fmt.Sprintf("Screen geometry %dx%d fits the frame header.", cfg.Rows, cfg.Cols)
	check.NextAction = "No action required."
	return check
}

// evalSerialDevice checks the serial device exists.
// Decision table:
//   - serial disabled -> warn (WebSocket-only operation)
//   - device exists -> pass
//   - device missing -> fail
func evalSerialDevice(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDSerial}
	if cfg.SerialDisabled {
		check.Status = statusWarn
		check.Message = "Serial link is disabled; only WebSocket viewers can connect."
		check.NextAction = "Remove serial_disabled (or --no-serial) to drive the hardware display."
		return check
	}
	if _, err := doctorStatDevice(cfg.SerialPort); err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Serial device %s: %v", cfg.SerialPort, err)
		check.NextAction = "Check the wiring and device path, or set serial_port in the config."
		return check
	}
	check.Status = statusPass
	check.Message = fmt.Sprintf("Serial device %s is present.", cfg.SerialPort)
	check.NextAction = "No action required."
	return check
}

// evalShellCommand checks the configured shell resolves.
func evalShellCommand(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDShell}
	path, err := doctorLookPath(cfg.Shell)
	if err != nil {
		check.Status = statusFail
		check.Message = fmt.Sprintf("Shell %q not found: %v", cfg.Shell, err)
		check.NextAction = "Set shell in the config, or fix $SHELL."
		return check
	}
	check.Status = statusPass
	check.Message = fmt.Sprintf("Shell resolves to %s.", path)
	check.NextAction = "No action required."
	return check
}

// evalHostReachability probes the WebSocket listen address.
// Decision table:
//   - something is listening -> pass (a host is running)
//   - nothing listening -> warn (host simply not started yet)
func evalHostReachability(cfg *config.Config) DoctorCheck {
	check := DoctorCheck{ID: checkIDHost}
	if err := doctorDialHost(cfg.Addr); err != nil {
		check.Status = statusWarn
		check.Message = fmt.Sprintf("No host answering at %s.", cfg.Addr)
		check.NextAction = "Start the bridge with `picoterm host` if you expected one running."
		return check
	}
	check.Status = statusPass
	check.Message = fmt.Sprintf("A host is listening at %s.", cfg.Addr)
	check.NextAction = "No action required."
	return check
}

// renderDoctorHuman writes the doctor result in human-readable format.
func renderDoctorHuman(w io.Writer, result DoctorResult) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Picoterm Doctor")
	fmt.Fprintln(w, "===============")
	fmt.Fprintln(w, "")

	for _, c := range result.Checks {
		fmt.Fprintf(w, "  %s %s: %s\n", statusIcon(c.Status), c.ID, c.Message)
		if c.Status != statusPass {
			fmt.Fprintf(w, "    -> %s\n", c.NextAction)
		}
	}

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d failures\n",
		result.Summary.Pass, result.Summary.Warn, result.Summary.Fail)
	fmt.Fprintln(w, "")
}

// statusIcon returns a text marker for the check status.
func statusIcon(status string) string {
	switch status {
	case statusPass:
		return "[PASS]"
	case statusWarn:
		return "[WARN]"
	case statusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}
