package led

import (
	"fmt"
	"os"
	"path/filepath"
)

const sysfsLEDPath = "/sys/class/leds"

// sysfs drives an LED through the Linux LED class interface.
type sysfs struct {
	dir  string
	name string
}

func newSysfs(root, name string) *sysfs {
	return &sysfs{dir: filepath.Join(root, name), name: name}
}

func (s *sysfs) Name() string {
	return s.name
}

// Set writes the kernel trigger first; brightness is only meaningful with
// the "none" trigger.
func (s *sysfs) Set(pattern string) error {
	var trigger, brightness string
	switch pattern {
	case PatternSolid:
		trigger, brightness = "none", "1"
	case PatternBlink:
		trigger = "heartbeat"
	case PatternOff:
		trigger, brightness = "none", "0"
	default:
		return fmt.Errorf("led %s: unknown pattern %q", s.name, pattern)
	}

	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("led %s: %w", s.name, err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, "trigger"), []byte(trigger), 0o644); err != nil {
		return fmt.Errorf("led %s: set trigger: %w", s.name, err)
	}
	if brightness == "" {
		return nil
	}
	if err := os.WriteFile(filepath.Join(s.dir, "brightness"), []byte(brightness), 0o644); err != nil {
		return fmt.Errorf("led %s: set brightness: %w", s.name, err)
	}
	return nil
}
