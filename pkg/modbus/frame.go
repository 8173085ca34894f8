// Package modbus implements the RTU subset used by the climate sensor:
// single holding-register reads over an RS-485 line.
package modbus

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Function codes
const (
	FuncCodeReadHoldingRegisters = 0x03
	FuncCodeReadInputRegisters   = 0x04
)

// Frame sizes
const (
	RequestSize  = 8 // addr, func, reg hi/lo, count hi/lo, crc lo/hi
	ResponseSize = 7 // addr, func, byte count, data hi/lo, crc lo/hi
)

var (
	ErrShortFrame = errors.New("modbus: frame too short")
	ErrCRC        = errors.New("modbus: crc mismatch")
	ErrAddress    = errors.New("modbus: unexpected slave address")
	ErrFunction   = errors.New("modbus: unexpected function code")
	ErrByteCount  = errors.New("modbus: unexpected byte count")
	ErrTimeout    = errors.New("modbus: response timeout")
)

// CRC16 computes the Modbus RTU checksum (reflected polynomial 0xA001,
// initial value 0xFFFF).
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&0x0001 != 0 {
				crc = crc>>1 ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

// BuildRequest serializes a read request for count registers starting at reg.
func BuildRequest(address, function byte, reg, count uint16) [RequestSize]byte {
	var f [RequestSize]byte
	f[0] = address
	f[1] = function
	binary.BigEndian.PutUint16(f[2:4], reg)
	binary.BigEndian.PutUint16(f[4:6], count)
	binary.LittleEndian.PutUint16(f[6:8], CRC16(f[:6]))
	return f
}

// ParseRequest validates a request frame and returns its fields.
func ParseRequest(frame []byte) (address, function byte, reg, count uint16, err error) {
	if len(frame) < RequestSize {
		return 0, 0, 0, 0, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}
	if binary.LittleEndian.Uint16(frame[6:8]) != CRC16(frame[:6]) {
		return 0, 0, 0, 0, ErrCRC
	}
	return frame[0], frame[1], binary.BigEndian.Uint16(frame[2:4]), binary.BigEndian.Uint16(frame[4:6]), nil
}

// EncodeResponse serializes a single-register read response.
func EncodeResponse(address, function byte, value uint16) [ResponseSize]byte {
	var f [ResponseSize]byte
	f[0] = address
	f[1] = function
	f[2] = 2
	binary.BigEndian.PutUint16(f[3:5], value)
	binary.LittleEndian.PutUint16(f[5:7], CRC16(f[:5]))
	return f
}

// ParseResponse validates a single-register read response against the
// expected address and function and returns the register value.
func ParseResponse(frame []byte, address, function byte) (uint16, error) {
	if len(frame) < ResponseSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortFrame, len(frame))
	}

	want := CRC16(frame[:5])
	got := binary.LittleEndian.Uint16(frame[5:7])
	if got != want {
		return 0, fmt.Errorf("%w: got 0x%04X, want 0x%04X", ErrCRC, got, want)
	}
	if frame[0] != address {
		return 0, fmt.Errorf("%w: 0x%02X", ErrAddress, frame[0])
	}
	if frame[1] != function {
		return 0, fmt.Errorf("%w: 0x%02X", ErrFunction, frame[1])
	}
	if frame[2] != 2 {
		return 0, fmt.Errorf("%w: %d", ErrByteCount, frame[2])
	}

	return binary.BigEndian.Uint16(frame[3:5]), nil
}
