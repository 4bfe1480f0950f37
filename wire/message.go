package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgIDFileTransfer is the message id of a file-transfer protocol message.
const MsgIDFileTransfer = 110

// Address identifies a system/component pair on the link.
type Address struct {
	SystemID    uint8 `msgpack:"sysid" json:"system_id" yaml:"system_id"`
	ComponentID uint8 `msgpack:"compid" json:"component_id" yaml:"component_id"`
}

// String returns "sysid/compid".
func (a Address) String() string {
	return fmt.Sprintf("%d/%d", a.SystemID, a.ComponentID)
}

// Message is the link envelope carrying a file-transfer payload.
//
// Sender identifies who transmitted the message. Target fields address the
// receiver; zero is a wildcard.
type Message struct {
	Sender          Address `msgpack:"sender"`
	MsgID           uint32  `msgpack:"msgid"`
	TargetNetwork   uint8   `msgpack:"target_network"`
	TargetSystem    uint8   `msgpack:"target_system"`
	TargetComponent uint8   `msgpack:"target_component"`
	Payload         []byte  `msgpack:"payload"`
}

// NewMessage builds a file-transfer message addressed to target carrying p.
func NewMessage(sender, target Address, p *Payload) Message {
	encoded := p.Encode()
	return Message{
		Sender:          sender,
		MsgID:           MsgIDFileTransfer,
		TargetSystem:    target.SystemID,
		TargetComponent: target.ComponentID,
		Payload:         encoded[:],
	}
}

// Decode returns the file-transfer payload carried by m.
func (m *Message) Decode() (Payload, error) {
	return ParsePayload(m.Payload)
}

// MarshalMessage encodes m with msgpack.
func MarshalMessage(m *Message) ([]byte, error) {
	return msgpack.Marshal(m)
}

// UnmarshalMessage decodes a msgpack-encoded Message.
func UnmarshalMessage(b []byte) (Message, error) {
	var m Message
	if err := msgpack.Unmarshal(b, &m); err != nil {
		return Message{}, err
	}
	return m, nil
}
