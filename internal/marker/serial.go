package marker

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// SerialSink drives a trigger box on a (virtual) serial port.
//
// The default write convention is the BrainVision trigger box pulse:
// a zero byte, a pulse-width wait, then the code byte. Hardware that
// expects plain characters instead (e.g. the Maastricht setup) uses
// the utf8 mode, which writes the code as a single encoded rune.
type SerialSink struct {
	port  serial.Port
	pulse time.Duration
	utf8  bool
}

// OpenSerial opens the trigger box at the given device.
func OpenSerial(device string, baudrate int, pulse time.Duration, utf8 bool) (*SerialSink, error) {
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
	return &SerialSink{port: port, pulse: pulse, utf8: utf8}, nil
}

func (s *SerialSink) Write(ev Event) error {
	if s.utf8 {
		_, err := s.port.Write([]byte(string(rune(ev.Code))))
		return err
	}
	if _, err := s.port.Write([]byte{0}); err != nil {
		return err
	}
	time.Sleep(s.pulse)
	_, err := s.port.Write([]byte{byte(ev.Code)})
	return err
}

func (s *SerialSink) Close() error {
	return s.port.Close()
}
