package hid_transport

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sstallion/go-hid"
)

const (
	DefaultReadTimeout = 200 * time.Millisecond
	maxReportSize      = 64
)

type reportReader interface {
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
	Close() error
}

type transportImpl struct {
	vendorID    uint16
	productID   uint16
	path        string
	readTimeout time.Duration
	logger      *slog.Logger
	open        func() (reportReader, error)

	mu      sync.Mutex
	handler func(report []byte)
	device  reportReader
	stop    chan struct{}
	done    chan struct{}
}

type Config struct {
	VendorID  uint16
	ProductID uint16
	// Path selects one device when several match; the first match is used
	// when empty.
	Path        string
	ReadTimeout time.Duration
	Logger      *slog.Logger
}

func New(cfg *Config) (Interface, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	t := &transportImpl{
		vendorID:    cfg.VendorID,
		productID:   cfg.ProductID,
		path:        cfg.Path,
		readTimeout: cfg.ReadTimeout,
		logger:      cfg.Logger,
	}

	if t.readTimeout <= 0 {
		t.readTimeout = DefaultReadTimeout
	}

	if t.logger == nil {
		t.logger = slog.Default()
	}

	t.open = t.openHID

	return t, nil
}

func (t *transportImpl) openHID() (reportReader, error) {
	err := hid.Init()
	if err != nil {
		return nil, fmt.Errorf("hid init: %w", err)
	}

	var device *hid.Device

	if t.path != "" {
		device, err = hid.OpenPath(t.path)
	} else {
		device, err = hid.OpenFirst(t.vendorID, t.productID)
	}

	if err != nil {
		hid.Exit()

		return nil, fmt.Errorf("%w (vid %#04x, pid %#04x): %v", ErrDeviceNotFound, t.vendorID, t.productID, err)
	}

	return &hidDevice{Device: device}, nil
}

// hidDevice releases the hidapi library together with the device.
type hidDevice struct {
	*hid.Device
}

func (d *hidDevice) Close() error {
	err := d.Device.Close()
	exitErr := hid.Exit()

	if err != nil {
		return err
	}

	return exitErr
}

func (t *transportImpl) RegisterReportHandler(fn func(report []byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.handler = fn
}

func (t *transportImpl) Open() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.device != nil {
		return ErrAlreadyOpen
	}

	device, err := t.open()
	if err != nil {
		return err
	}

	t.device = device
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.readLoop(device, t.stop, t.done)

	t.logger.Info("hid device opened", slog.String("vendor_id", fmt.Sprintf("%#04x", t.vendorID)),
		slog.String("product_id", fmt.Sprintf("%#04x", t.productID)))

	return nil
}

func (t *transportImpl) readLoop(device reportReader, stop, done chan struct{}) {
	defer close(done)

	buf := make([]byte, maxReportSize)

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := device.ReadWithTimeout(buf, t.readTimeout)
		if errors.Is(err, hid.ErrTimeout) {
			continue
		}

		if err != nil {
			t.logger.Error("error reading hid device", slog.Any("error", err))

			return
		}

		if n == 0 {
			continue
		}

		report := make([]byte, n)
		copy(report, buf[:n])

		t.deliver(report)
	}
}

func (t *transportImpl) deliver(report []byte) {
	t.mu.Lock()
	handler := t.handler
	t.mu.Unlock()

	if handler == nil {
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			t.logger.Error("report handler panicked", slog.Any("panic", rec))
		}
	}()

	handler(report)
}

// Close stops the read loop and closes the device. Safe to call when not open.
func (t *transportImpl) Close() error {
	t.mu.Lock()
	device, stop, done := t.device, t.stop, t.done
	t.device = nil
	t.mu.Unlock()

	if device == nil {
		return nil
	}

	close(stop)
	<-done

	t.logger.Info("hid device closed")

	return device.Close()
}

// Enumerate lists the HID devices matching vendorID and productID.
func Enumerate(vendorID, productID uint16) ([]DeviceInfo, error) {
	err := hid.Init()
	if err != nil {
		return nil, fmt.Errorf("hid init: %w", err)
	}

	defer hid.Exit()

	devices := make([]DeviceInfo, 0)

	err = hid.Enumerate(vendorID, productID, func(info *hid.DeviceInfo) error {
		devices = append(devices, DeviceInfo{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			Manufacturer: info.MfrStr,
			Product:      info.ProductStr,
			Serial:       info.SerialNbr,
		})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return devices, nil
}
