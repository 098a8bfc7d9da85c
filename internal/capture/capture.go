// Package capture records the byte streams of bridge sessions to CBOR files.
//
// Each session writes one file containing a sequence of Chunk records, one
// per transfer, in the order the session moved them.
package capture

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a captured chunk.
type Direction uint8

const (
	// DeviceToNet is data read from the serial device and sent to the client.
	DeviceToNet Direction = 0
	// NetToDevice is data read from the client and written to the device.
	NetToDevice Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DeviceToNet:
		return "device->net"
	case NetToDevice:
		return "net->device"
	default:
		return fmt.Sprintf("Direction(%d)", d)
	}
}

// Chunk is one captured transfer.
type Chunk struct {
	Timestamp time.Time `cbor:"1,keyasint"`
	SessionID string    `cbor:"2,keyasint"`
	DeviceID  string    `cbor:"3,keyasint"`
	Direction Direction `cbor:"4,keyasint"`
	Data      []byte    `cbor:"5,keyasint"`

	// Short marks a transfer the receiving side only partly took;
	// Accepted holds how many bytes it took.
	Short    bool `cbor:"6,keyasint,omitempty"`
	Accepted int  `cbor:"7,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create capture CBOR decoder mode: %v", err))
	}
}

// FileName returns the capture file name used for a session.
func FileName(deviceID, sessionID string, started time.Time) string {
	return fmt.Sprintf("%s-%s-%s.cbor", deviceID, started.UTC().Format("20060102T150405"), sessionID)
}

// Recorder appends chunks to a capture file.
// It is safe for concurrent use.
type Recorder struct {
	mu        sync.Mutex
	file      *os.File
	encoder   *cbor.Encoder
	sessionID string
	deviceID  string
	closed    bool
}

// Create opens a new capture file for a session in dir.
func Create(dir, deviceID, sessionID string, started time.Time) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create capture dir: %w", err)
	}
	path := filepath.Join(dir, FileName(deviceID, sessionID, started))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture file: %w", err)
	}
	return &Recorder{
		file:      f,
		encoder:   encMode.NewEncoder(f),
		sessionID: sessionID,
		deviceID:  deviceID,
	}, nil
}

// Path returns the capture file path.
func (r *Recorder) Path() string {
	return r.file.Name()
}

// Record appends one chunk. accepted is the number of bytes the receiving
// side took; pass len(data) for complete transfers.
func (r *Recorder) Record(dir Direction, data []byte, accepted int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return os.ErrClosed
	}

	chunk := Chunk{
		Timestamp: time.Now(),
		SessionID: r.sessionID,
		DeviceID:  r.deviceID,
		Direction: dir,
		Data:      data,
	}
	if accepted < len(data) {
		chunk.Short = true
		chunk.Accepted = accepted
	}
	return r.encoder.Encode(chunk)
}

// Close closes the capture file. It is safe to call Close multiple times.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}

// Reader iterates over the chunks of a capture file.
type Reader struct {
	file    *os.File
	decoder *cbor.Decoder
}

// Open opens a capture file for reading.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{
		file:    f,
		decoder: decMode.NewDecoder(f),
	}, nil
}

// Next returns the next chunk, or io.EOF at the end of the file.
func (r *Reader) Next() (Chunk, error) {
	var chunk Chunk
	if err := r.decoder.Decode(&chunk); err != nil {
		if err == io.EOF {
			return Chunk{}, io.EOF
		}
		return Chunk{}, fmt.Errorf("decode chunk: %w", err)
	}
	return chunk, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}
