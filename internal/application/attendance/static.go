package attendance

import (
	"context"
	"fmt"
	"sync"

	"github.com/erp/attendance/internal/domain/shared"
)

// StaticDevices is a DeviceRegistry over a fixed device list
type StaticDevices struct {
	mu      sync.RWMutex
	devices map[string]Device
}

// NewStaticDevices indexes devices by ID
func NewStaticDevices(devices ...Device) *StaticDevices {
	s := &StaticDevices{devices: make(map[string]Device, len(devices))}
	for _, d := range devices {
		s.devices[d.ID] = d
	}
	return s
}

// Device returns a copy of the device
func (s *StaticDevices) Device(_ context.Context, deviceID string) (*Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("%w: device %s", shared.ErrNotFound, deviceID)
	}
	return &d, nil
}

// SetEnabled enables or disables a device
func (s *StaticDevices) SetEnabled(deviceID string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: device %s", shared.ErrNotFound, deviceID)
	}
	d.Enabled = enabled
	s.devices[deviceID] = d
	return nil
}

// StaticDirectory is an EmployeeDirectory over a credential to employee map
type StaticDirectory map[string]string

// EmployeeForCredential looks the credential up
func (d StaticDirectory) EmployeeForCredential(_ context.Context, credential string) (string, error) {
	employeeID, ok := d[credential]
	if !ok {
		return "", fmt.Errorf("%w: credential", shared.ErrNotFound)
	}
	return employeeID, nil
}

var (
	_ DeviceRegistry    = (*StaticDevices)(nil)
	_ EmployeeDirectory = StaticDirectory(nil)
)
