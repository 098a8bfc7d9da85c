package bridge

import (
	"errors"
	"sync"
	"time"

	serial "github.com/allbin/serial-bridge"
)

var errFake = errors.New("fake failure")

// fakeDevice records every call and serves queued inbound bytes.
type fakeDevice struct {
	mu sync.Mutex

	id       string
	inbound  []byte
	written  []byte
	writes   int
	closes   int
	calls    []string
	setErrs  map[string]error
	maxWrite int           // bytes accepted per Write, 0 = all
	gate     chan struct{} // Write blocks until closed, when set

	inputErr   error
	panicInput bool
}

func (d *fakeDevice) set(name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, name)
	return d.setErrs[name]
}

func (d *fakeDevice) SetBaudRate(int) error { return d.set("baud") }
func (d *fakeDevice) SetFraming(int, int, serial.Parity) error {
	return d.set("framing")
}
func (d *fakeDevice) SetFlowControl(serial.FlowControl) error { return d.set("flow") }
func (d *fakeDevice) SetTimeouts(time.Duration, time.Duration) error { return d.set("timeouts") }
func (d *fakeDevice) SetInTransferSize(int) error { return d.set("transfer") }
func (d *fakeDevice) SetDTR(bool) error { return d.set("dtr") }

func (d *fakeDevice) InputWaiting() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.panicInput {
		panic("device exploded")
	}
	if d.inputErr != nil {
		return 0, d.inputErr
	}
	return len(d.inbound), nil
}

func (d *fakeDevice) Read(buf []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := copy(buf, d.inbound)
	d.inbound = d.inbound[n:]
	return n, nil
}

func (d *fakeDevice) Write(data []byte) (int, error) {
	d.mu.Lock()
	d.writes++
	gate := d.gate
	d.mu.Unlock()
	if gate != nil {
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(data)
	if d.maxWrite > 0 && n > d.maxWrite {
		n = d.maxWrite
	}
	d.written = append(d.written, data[:n]...)
	return n, nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

func (d *fakeDevice) feed(b []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inbound = append(d.inbound, b...)
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *fakeDevice) writtenBytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.written...)
}

func (d *fakeDevice) writeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}

func (d *fakeDevice) callList() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

func (d *fakeDevice) setInputErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inputErr = err
}

func (d *fakeDevice) setPanic() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.panicInput = true
}

// fakeDriver opens fakeDevices for known identifiers.
type fakeDriver struct {
	mu sync.Mutex

	devices   []DeviceInfo
	openable  map[string]bool
	portNames map[string]string
	enumErr   error

	// prepare customizes each device before it is returned from Open
	prepare func(*fakeDevice)

	opened map[string][]*fakeDevice
}

func newFakeDriver(openable ...string) *fakeDriver {
	d := &fakeDriver{
		openable:  make(map[string]bool),
		portNames: make(map[string]string),
		opened:    make(map[string][]*fakeDevice),
	}
	for _, id := range openable {
		d.openable[id] = true
	}
	return d
}

func (d *fakeDriver) Enumerate() ([]DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.devices, d.enumErr
}

func (d *fakeDriver) Open(id string) (Device, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.openable[id] {
		return nil, serial.ErrDeviceNotFound
	}
	dev := &fakeDevice{id: id}
	if d.prepare != nil {
		d.prepare(dev)
	}
	d.opened[id] = append(d.opened[id], dev)
	return dev, nil
}

func (d *fakeDriver) PortName(id string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.openable[id] {
		return "", serial.ErrDeviceInUse
	}
	return d.portNames[id], nil
}

// device returns the n-th device opened for id, or nil.
func (d *fakeDriver) device(id string, n int) *fakeDevice {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n >= len(d.opened[id]) {
		return nil
	}
	return d.opened[id][n]
}

func (d *fakeDriver) openCount(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opened[id])
}
