// Package persistence implements the append-only log behind the "log"
// document store. Records are written as checksummed frames so a torn write
// at the end of the file can be told apart from corruption in the middle.
package persistence

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

const (
	// MagicByte opens every frame.
	MagicByte = 0xA5

	// HeaderSize is magic(1) + kind(1) + length(4) + crc32(4).
	HeaderSize = 10

	// KindRecord marks a frame carrying one record payload.
	KindRecord = 0x01

	// MaxPayload bounds a single record so a damaged length field cannot
	// trigger a huge allocation.
	MaxPayload = 64 << 20
)

var (
	ErrInvalidMagic     = errors.New("persistence: invalid magic byte")
	ErrChecksumMismatch = errors.New("persistence: crc32 checksum mismatch")
	ErrIncompleteFrame  = errors.New("persistence: incomplete frame")
	ErrFrameTooLarge    = errors.New("persistence: frame payload too large")
)

// WriteFrame writes payload as one frame:
//
//	[magic][kind][length LE uint32][crc32 LE uint32][payload]
//
// w should be buffered so header and payload reach the file together.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrFrameTooLarge
	}
	var header [HeaderSize]byte
	header[0] = MagicByte
	header[1] = KindRecord
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads the next frame and returns its payload. A clean end of
// input at a frame boundary is io.EOF; an end inside a frame is
// ErrIncompleteFrame.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, ErrIncompleteFrame
		}
		return nil, err
	}
	if header[0] != MagicByte {
		return nil, ErrInvalidMagic
	}

	length := binary.LittleEndian.Uint32(header[2:6])
	if length > MaxPayload {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, ErrIncompleteFrame
		}
		return nil, err
	}
	if crc32.ChecksumIEEE(payload) != binary.LittleEndian.Uint32(header[6:10]) {
		return nil, ErrChecksumMismatch
	}
	return payload, nil
}
