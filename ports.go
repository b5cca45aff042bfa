package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"go-perform/config"
	"go-perform/midi"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output ports",
	RunE:  runPorts,
}

func runPorts(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	defer midi.CloseDriver()

	timeout := cfg.PortScanTimeout()
	fmt.Printf("=== MIDI Output Ports ===\n(waiting up to %s...)\n", timeout)

	names, err := midi.ListOutPorts(timeout)
	if errors.Is(err, midi.ErrPortScanTimeout) {
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
		return err
	}
	if err != nil {
		return err
	}

	if len(names) == 0 {
		fmt.Println("  (none)")
	}
	for i, name := range names {
		marker := " "
		if cfg.Output.Port != "" && midi.MatchPort(name, cfg.Output.Port) {
			marker = "*"
		}
		fmt.Printf(" %s%d: %s\n", marker, i, name)
	}
	return nil
}
