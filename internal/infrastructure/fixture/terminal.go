package fixture

import (
	"fmt"

	"github.com/erp/attendance/internal/application/attendance"
	"github.com/erp/attendance/internal/domain/shared"
)

// TerminalFile lists the punch devices and the credentials they accept
type TerminalFile struct {
	Devices     []attendance.Device `yaml:"devices"`
	Credentials map[string]string   `yaml:"credentials"`
}

// EventFile is the layout of a punch events file
type EventFile struct {
	Events []attendance.PunchEvent `yaml:"events"`
}

// LoadTerminals reads the device registry and credential directory
func LoadTerminals(path string) (*attendance.StaticDevices, attendance.StaticDirectory, error) {
	var file TerminalFile
	if err := readYAML(path, &file); err != nil {
		return nil, nil, err
	}

	seen := make(map[string]bool, len(file.Devices))
	for i, d := range file.Devices {
		if d.ID == "" {
			return nil, nil, fmt.Errorf("%w: device #%d has no id", shared.ErrInvalidInput, i+1)
		}
		if seen[d.ID] {
			return nil, nil, fmt.Errorf("%w: duplicate device id %s", shared.ErrInvalidInput, d.ID)
		}
		seen[d.ID] = true
	}

	directory := attendance.StaticDirectory(file.Credentials)
	if directory == nil {
		directory = attendance.StaticDirectory{}
	}
	return attendance.NewStaticDevices(file.Devices...), directory, nil
}

// LoadEvents reads raw punch events. They are validated by the processor.
func LoadEvents(path string) ([]attendance.PunchEvent, error) {
	var file EventFile
	if err := readYAML(path, &file); err != nil {
		return nil, err
	}
	return file.Events, nil
}
