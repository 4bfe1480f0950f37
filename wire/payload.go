// Package wire implements the file-transfer frame codec.
//
// A Payload is the fixed 251-byte body of a file-transfer message. All
// multi-byte fields are little-endian and sit at fixed offsets:
//
//	0-1   seq_number
//	2     session
//	3     opcode
//	4     size
//	5     req_opcode
//	6     burst_complete
//	7     padding
//	8-11  offset
//	12-   data (239 bytes)
//
// The package also defines Message, the link envelope that carries a
// Payload between systems (see message.go).
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Layout constants.
const (
	// PayloadLength is the encoded size of a Payload in bytes.
	PayloadLength = 251
	// HeaderLength is the size of the fixed header preceding data.
	HeaderLength = 12
	// MaxDataLength is the capacity of the data field.
	MaxDataLength = PayloadLength - HeaderLength
)

// Payload is the decoded form of a file-transfer payload.
type Payload struct {
	Seq           uint16
	Session       uint8
	Opcode        Opcode
	Size          uint8
	ReqOpcode     Opcode
	BurstComplete uint8
	Padding       uint8
	Offset        uint32
	Data          [MaxDataLength]byte
}

// Encode serializes p into its 251-byte wire form.
func (p *Payload) Encode() [PayloadLength]byte {
	var b [PayloadLength]byte
	binary.LittleEndian.PutUint16(b[0:2], p.Seq)
	b[2] = p.Session
	b[3] = uint8(p.Opcode)
	b[4] = p.Size
	b[5] = uint8(p.ReqOpcode)
	b[6] = p.BurstComplete
	b[7] = p.Padding
	binary.LittleEndian.PutUint32(b[8:12], p.Offset)
	copy(b[HeaderLength:], p.Data[:])
	return b
}

// DecodePayload deserializes a 251-byte wire form. It never fails; field
// validation (size bound, padding) is left to the caller.
func DecodePayload(b [PayloadLength]byte) Payload {
	p := Payload{
		Seq:           binary.LittleEndian.Uint16(b[0:2]),
		Session:       b[2],
		Opcode:        Opcode(b[3]),
		Size:          b[4],
		ReqOpcode:     Opcode(b[5]),
		BurstComplete: b[6],
		Padding:       b[7],
		Offset:        binary.LittleEndian.Uint32(b[8:12]),
	}
	copy(p.Data[:], b[HeaderLength:])
	return p
}

// ParsePayload decodes a payload from a slice.
// Short input is zero-extended, matching how links trim trailing zero
// bytes from fixed-length messages. Input longer than PayloadLength is an error.
func ParsePayload(b []byte) (Payload, error) {
	if len(b) > PayloadLength {
		return Payload{}, fmt.Errorf("payload length %d exceeds %d", len(b), PayloadLength)
	}
	var buf [PayloadLength]byte
	copy(buf[:], b)
	return DecodePayload(buf), nil
}

// Bytes returns the first Size bytes of Data, clamped to MaxDataLength.
func (p *Payload) Bytes() []byte {
	n := int(p.Size)
	if n > MaxDataLength {
		n = MaxDataLength
	}
	return p.Data[:n]
}

// SetBytes copies data into Data and sets Size. It panics if data does not fit.
func (p *Payload) SetBytes(data []byte) {
	if len(data) > MaxDataLength {
		panic(fmt.Sprintf("wire: data length %d exceeds %d", len(data), MaxDataLength))
	}
	copy(p.Data[:], data)
	p.Size = uint8(len(data))
}

// Text returns the entry-th NUL-terminated string stored in Data.
// Entries are packed back to back; entry 0 is the first. A missing
// terminator ends the string at the end of Data.
func (p *Payload) Text(entry int) string {
	data := p.Data[:]
	for range entry {
		i := bytes.IndexByte(data, 0)
		if i < 0 {
			return ""
		}
		data = data[i+1:]
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	return string(data)
}
