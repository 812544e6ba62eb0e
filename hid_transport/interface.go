package hid_transport

import "errors"

// ThinkReality A3 glasses.
const (
	ThinkRealityVendorID  uint16 = 0x17EF
	ThinkRealityProductID uint16 = 0xB813
)

var (
	ErrDeviceNotFound = errors.New("no matching HID device found")
	ErrAlreadyOpen    = errors.New("transport already open")
)

type DeviceInfo struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	Manufacturer string
	Product      string
	Serial       string
}

// Interface delivers raw input reports to a single handler, in arrival order.
type Interface interface {
	Open() error
	RegisterReportHandler(fn func(report []byte))
	Close() error
}
