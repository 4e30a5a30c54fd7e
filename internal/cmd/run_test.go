package cmd

import (
	"testing"

	"github.com/spf13/cobra"
)

func TestParseDevices(t *testing.T) {
	cases := map[string]struct {
		key   bool
		mouse bool
		fails bool
	}{
		"key":   {key: true},
		"mouse": {mouse: true},
		"both":  {key: true, mouse: true},
		"":      {key: true, mouse: true},
		"pen":   {fails: true},
	}
	for input, tc := range cases {
		streams, err := parseDevices(input)
		if tc.fails {
			if err == nil {
				t.Fatalf("parseDevices(%q): expected error", input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseDevices(%q): %v", input, err)
		}
		if streams.Key != tc.key || streams.Mouse != tc.mouse {
			t.Fatalf("parseDevices(%q): got %+v", input, streams)
		}
	}
}

func TestCaptureFlagsOnRootAndRun(t *testing.T) {
	for _, c := range []*cobra.Command{rootCmd, runCmd} {
		logFlag := c.Flags().Lookup("log")
		if logFlag == nil {
			t.Fatalf("%s: missing --log flag", c.Name())
		}
		if logFlag.Value.Type() != "string" || logFlag.DefValue != "" {
			t.Fatalf("%s: --log must be a level string defaulting to config, got %s %q",
				c.Name(), logFlag.Value.Type(), logFlag.DefValue)
		}
		devFlag := c.Flags().Lookup("dev")
		if devFlag == nil {
			t.Fatalf("%s: missing --dev flag", c.Name())
		}
		if devFlag.Value.Type() != "string" || devFlag.DefValue != "both" {
			t.Fatalf("%s: --dev must be a device string defaulting to both, got %s %q",
				c.Name(), devFlag.Value.Type(), devFlag.DefValue)
		}
	}
}

func TestLogTakesLevelAndDevTakesDevice(t *testing.T) {
	if err := runCmd.Flags().Set("log", "debug"); err != nil {
		t.Fatalf("--log debug must parse: %v", err)
	}
	if err := runCmd.Flags().Set("dev", "key"); err != nil {
		t.Fatalf("--dev key must parse: %v", err)
	}
	streams, err := parseDevices(flagDevices)
	if err != nil {
		t.Fatalf("device selection from --dev: %v", err)
	}
	if !streams.Key || streams.Mouse {
		t.Fatalf("--dev key must select the key stream only, got %+v", streams)
	}
	if flagLogLevel != "debug" {
		t.Fatalf("--log must carry the level, got %q", flagLogLevel)
	}
}

func TestRunIsARegisteredSubcommand(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() == "run" {
			return
		}
	}
	t.Fatalf("run subcommand not registered")
}
