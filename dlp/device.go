// Package dlp drives a DLP-IO8-G USB data acquisition board: TTL marker
// output on one line and digital reads of the scanner trigger and button
// box lines.
package dlp

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.bug.st/serial"
)

// readTimeout bounds a single line read so a silent board cannot stall the
// watcher forever.
const readTimeout = 200 * time.Millisecond

// Port is the subset of serial.Port the device uses.
type Port interface {
	io.ReadWriteCloser
}

type DLPIO8G struct {
	mu   sync.Mutex
	port Port
}

func NewDLPIO8G(device string, baudrate int) (*DLPIO8G, error) {
	mode := &serial.Mode{
		BaudRate: baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", device, err)
	}
	return newDevice(port)
}

func newDevice(port Port) (*DLPIO8G, error) {
	d := &DLPIO8G{port: port}

	// Ping
	if !d.Ping() {
		port.Close()
		return nil, fmt.Errorf("device did not respond to ping correctly")
	}

	// Binary mode
	if _, err := port.Write([]byte{0x5C}); err != nil {
		port.Close()
		return nil, err
	}

	return d, nil
}

func (d *DLPIO8G) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		d.port.Close()
		d.port = nil
	}
}

func (d *DLPIO8G) Ping() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return false
	}
	_, err := d.port.Write([]byte{0x27})
	if err != nil {
		return false
	}

	buf := make([]byte, 1)
	n, err := d.port.Read(buf)
	return err == nil && n == 1 && buf[0] == 'Q'
}

// Set raises the given lines, e.g. "13" for lines 1 and 3.
func (d *DLPIO8G) Set(lines string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return fmt.Errorf("set %s: device closed", lines)
	}
	if _, err := d.port.Write([]byte(lines)); err != nil {
		return fmt.Errorf("set %s: %w", lines, err)
	}
	return nil
}

var unsetCmd = map[byte]byte{'1': 'Q', '2': 'W', '3': 'E', '4': 'R', '5': 'T', '6': 'Y', '7': 'U', '8': 'I'}

// Unset lowers the given lines.
func (d *DLPIO8G) Unset(lines string) error {
	cmd := []byte(lines)
	for i := range cmd {
		if c, ok := unsetCmd[cmd[i]]; ok {
			cmd[i] = c
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return fmt.Errorf("unset %s: device closed", lines)
	}
	if _, err := d.port.Write(cmd); err != nil {
		return fmt.Errorf("unset %s: %w", lines, err)
	}
	return nil
}

// readCmd holds the digital input command for lines 1..8.
var readCmd = [...]byte{'A', 'S', 'D', 'F', 'G', 'H', 'J', 'K'}

// ReadLines samples the digital inputs of lines (1-based) in one exchange.
// In binary mode the board answers each command with a single byte.
func (d *DLPIO8G) ReadLines(lines []int) ([]uint8, error) {
	cmd := make([]byte, len(lines))
	for i, l := range lines {
		if l < 1 || l > len(readCmd) {
			return nil, fmt.Errorf("read lines: line %d out of range", l)
		}
		cmd[i] = readCmd[l-1]
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil, fmt.Errorf("read lines: device closed")
	}
	if _, err := d.port.Write(cmd); err != nil {
		return nil, fmt.Errorf("read lines: %w", err)
	}
	out := make([]uint8, len(lines))
	for got := 0; got < len(out); {
		n, err := d.port.Read(out[got:])
		if err != nil {
			return nil, fmt.Errorf("read lines: %w", err)
		}
		if n == 0 {
			// serial reads return nothing once the timeout expires
			return nil, fmt.Errorf("read lines: got %d of %d bytes: timeout", got, len(out))
		}
		got += n
	}
	return out, nil
}

// Marker pulses one output line for the duration of each stimulus.
type Marker struct {
	dev    *DLPIO8G
	line   string
	logger *slog.Logger
}

func NewMarker(dev *DLPIO8G, line int, logger *slog.Logger) *Marker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Marker{dev: dev, line: fmt.Sprint(line), logger: logger}
}

func (m *Marker) On() {
	if err := m.dev.Set(m.line); err != nil {
		m.logger.Warn("dlp marker on", "line", m.line, "err", err)
	}
}

func (m *Marker) Off() {
	if err := m.dev.Unset(m.line); err != nil {
		m.logger.Warn("dlp marker off", "line", m.line, "err", err)
	}
}
