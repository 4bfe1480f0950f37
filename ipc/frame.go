// Package ipc implements length-prefixed framing of link messages over
// byte streams (serial lines, pipes, TCP).
//
// Each frame is a 4-byte big-endian length followed by a msgpack-encoded
// wire.Message. Datagram transports do not use this package; they carry one
// encoded message per datagram.
package ipc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/justapithecus/skylink/wire"
)

// Frame size constants.
const (
	// MaxFrameSize is the maximum frame size, including length prefix.
	// A msgpack-encoded message with a full payload is well under 512 bytes.
	MaxFrameSize = 1024
	// MaxPayloadSize is the maximum encoded message size (MaxFrameSize - 4 bytes).
	MaxPayloadSize = MaxFrameSize - LengthPrefixSize
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4
)

// FrameErrorKind classifies frame decoding errors.
type FrameErrorKind int

const (
	// FrameErrorPartial indicates a truncated or incomplete frame.
	FrameErrorPartial FrameErrorKind = iota
	// FrameErrorTooLarge indicates a frame exceeding MaxFrameSize.
	FrameErrorTooLarge
	// FrameErrorDecode indicates a msgpack decoding error.
	FrameErrorDecode
)

// FrameError represents a frame decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the stream can no longer be trusted.
// Partial and oversized frames lose synchronization; a decode error only
// spoils the one frame.
func (e *FrameError) IsFatal() bool {
	return e.Kind == FrameErrorPartial || e.Kind == FrameErrorTooLarge
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// FrameDecoder decodes length-prefixed msgpack frames from a stream.
type FrameDecoder struct {
	reader io.Reader
}

// NewFrameDecoder creates a new frame decoder.
func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{reader: r}
}

// ReadFrame reads a single frame from the stream.
// Returns the raw msgpack-encoded message bytes.
//
// Errors:
//   - io.EOF: stream ended cleanly (no more frames)
//   - *FrameError with Kind=FrameErrorPartial: incomplete frame (fatal)
//   - *FrameError with Kind=FrameErrorTooLarge: frame exceeds limit (fatal)
func (d *FrameDecoder) ReadFrame() ([]byte, error) {
	var lengthBuf [LengthPrefixSize]byte
	_, err := io.ReadFull(d.reader, lengthBuf[:])
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read length prefix",
			Err:  err,
		}
	}

	payloadSize := binary.BigEndian.Uint32(lengthBuf[:])
	if payloadSize > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", payloadSize, MaxPayloadSize),
		}
	}

	payload := make([]byte, payloadSize)
	_, err = io.ReadFull(d.reader, payload)
	if err != nil {
		return nil, &FrameError{
			Kind: FrameErrorPartial,
			Msg:  "failed to read payload",
			Err:  err,
		}
	}

	return payload, nil
}

// ReadMessage reads and decodes the next message.
func (d *FrameDecoder) ReadMessage() (wire.Message, error) {
	payload, err := d.ReadFrame()
	if err != nil {
		return wire.Message{}, err
	}
	return DecodeMessage(payload)
}

// DecodeMessage decodes a frame payload as a wire.Message.
func DecodeMessage(payload []byte) (wire.Message, error) {
	msg, err := wire.UnmarshalMessage(payload)
	if err != nil {
		return wire.Message{}, &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode message",
			Err:  err,
		}
	}
	return msg, nil
}

// EncodeFrame prefixes payload with its big-endian length.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return nil, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("payload size %d exceeds maximum %d", len(payload), MaxPayloadSize),
		}
	}
	buf := make([]byte, LengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(buf[:LengthPrefixSize], uint32(len(payload)))
	copy(buf[LengthPrefixSize:], payload)
	return buf, nil
}

// WriteMessage encodes msg and writes it to w as a single frame.
func WriteMessage(w io.Writer, msg *wire.Message) error {
	payload, err := wire.MarshalMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}
	frame, err := EncodeFrame(payload)
	if err != nil {
		return err
	}
	_, err = w.Write(frame)
	return err
}
