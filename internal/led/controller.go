// Package led drives a board LED as a tally light: solid while anyone is
// watching, heartbeat while the camera is idle.
package led

import (
	"log/slog"
	"os"
	"strings"
)

// LED patterns understood by every Controller.
const (
	PatternOff   = "off"
	PatternSolid = "solid"
	PatternBlink = "blink"
)

const deviceTreeModelPath = "/proc/device-tree/model"

// Controller switches one LED between patterns.
type Controller interface {
	Set(pattern string) error
	Name() string
}

// boardLEDs maps a device tree model substring to its status LED.
var boardLEDs = []struct {
	model string
	led   string
}{
	{"NanoPC-T6", "usr_led"},
	{"Orange Pi", "green_led"},
	{"Raspberry Pi", "ACT"},
}

// New returns a controller for name. An empty name disables the tally,
// "auto" picks the status LED of a known board, anything else names an
// entry under /sys/class/leds.
func New(name string, logger *slog.Logger) Controller {
	switch name {
	case "":
		return noop{}
	case "auto":
		model := detectBoard(deviceTreeModelPath)
		for _, b := range boardLEDs {
			if strings.Contains(model, b.model) {
				logger.Info("Tally LED selected", "board_model", model, "led", b.led)
				return newSysfs(sysfsLEDPath, b.led)
			}
		}
		logger.Info("No tally LED for this board", "board_model", model)
		return noop{}
	default:
		return newSysfs(sysfsLEDPath, name)
	}
}

// detectBoard reads the device tree model, which is NUL terminated.
func detectBoard(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return "unknown"
	}
	return strings.TrimRight(string(data), "\x00")
}

type noop struct{}

func (noop) Set(string) error { return nil }
func (noop) Name() string     { return "none" }
