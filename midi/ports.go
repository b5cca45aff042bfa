package midi

import (
	"errors"
	"fmt"
	"strings"
	"time"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

// ErrPortScanTimeout is returned when the driver does not answer in time.
var ErrPortScanTimeout = errors.New("midi port scan timed out")

// ErrPortNotFound is returned when no output port matches the requested name.
var ErrPortNotFound = errors.New("midi output port not found")

// outPorts gets the output ports with a timeout (CoreMIDI can hang)
func outPorts(timeout time.Duration) ([]drivers.Out, error) {
	ch := make(chan []drivers.Out, 1)
	go func() {
		ch <- gomidi.GetOutPorts()
	}()

	select {
	case ports := <-ch:
		return ports, nil
	case <-time.After(timeout):
		// User needs to run: sudo killall coreaudiod midiserver
		return nil, ErrPortScanTimeout
	}
}

// ListOutPorts returns the names of the available output ports.
func ListOutPorts(timeout time.Duration) ([]string, error) {
	ports, err := outPorts(timeout)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		names[i] = p.String()
	}
	return names, nil
}

// OpenOutput opens the first output port whose name contains name
// (case-insensitive) and returns a sender for it.
func OpenOutput(name string, timeout time.Duration) (func(gomidi.Message) error, drivers.Out, error) {
	ports, err := outPorts(timeout)
	if err != nil {
		return nil, nil, err
	}

	for _, port := range ports {
		if !MatchPort(port.String(), name) {
			continue
		}
		send, err := gomidi.SendTo(port)
		if err != nil {
			return nil, nil, fmt.Errorf("open output %q: %w", port.String(), err)
		}
		return send, port, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrPortNotFound, name)
}

// MatchPort reports whether the port name contains want, ignoring case
func MatchPort(port, want string) bool {
	return strings.Contains(strings.ToLower(port), strings.ToLower(want))
}

// CloseDriver releases the MIDI driver.
func CloseDriver() {
	gomidi.CloseDriver()
}
