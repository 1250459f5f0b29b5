package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrFrameTooShort is returned when a frame ends before a required field.
var ErrFrameTooShort = errors.New("protocol: frame too short")

// hasSequenceField reports whether a frame of this type/flag carries a
// sequence number on the wire.
func hasSequenceField(msgType MsgType, flag MsgTypeFlag) bool {
	switch msgType {
	case MsgTypeFullClientRequest, MsgTypeAudioOnlyClient,
		MsgTypeFullServerResponse, MsgTypeAudioOnlyServer,
		MsgTypeFrontEndResultServer:
	default:
		return false
	}
	return flag == FlagPositiveSeq || flag == FlagNegativeSeq
}

// Marshal encodes a Message into its wire representation.
func Marshal(msg Message) ([]byte, error) {
	if msg.HeaderSizeUnits == 0 {
		return nil, fmt.Errorf("protocol: header size units must be >= 1")
	}

	headerLen := 4 * int(msg.HeaderSizeUnits)
	buf := make([]byte, headerLen, headerLen+len(msg.Payload)+16)
	buf[0] = msg.Version<<4 | msg.HeaderSizeUnits&0x0f
	buf[1] = uint8(msg.Type)<<4 | uint8(msg.Flag)&0x0f
	buf[2] = msg.Serialization<<4 | msg.Compression&0x0f
	// bytes 3..headerLen-1 are reserved, left zero

	if msg.Flag == FlagWithEvent {
		buf = binary.BigEndian.AppendUint32(buf, uint32(msg.Event))
		if !isConnectionEvent(msg.Event) {
			buf = appendSizedString(buf, msg.SessionID)
			buf = appendSizedString(buf, msg.ConnectID)
		}
	}

	if msg.Flag == FlagPositiveSeq || msg.Flag == FlagNegativeSeq {
		buf = binary.BigEndian.AppendUint32(buf, uint32(msg.Sequence))
	}

	if msg.Type == MsgTypeError {
		buf = binary.BigEndian.AppendUint32(buf, uint32(msg.ErrorCode))
	}

	return append(buf, msg.Payload...), nil
}

// Unmarshal decodes a wire frame into a Message. It never panics on
// truncated input; a frame that ends mid-field yields ErrFrameTooShort.
func Unmarshal(data []byte) (Message, error) {
	if len(data) < 3 {
		return Message{}, fmt.Errorf("%w: expected at least 3 bytes, got %d", ErrFrameTooShort, len(data))
	}

	msg := Message{
		Version:         data[0] >> 4,
		HeaderSizeUnits: data[0] & 0x0f,
		Type:            MsgType(data[1] >> 4),
		Flag:            MsgTypeFlag(data[1] & 0x0f),
		Serialization:   data[2] >> 4,
		Compression:     data[2] & 0x0f,
	}

	// Skip the full header, including reserved padding bytes.
	r := &frameReader{data: data}
	if _, err := r.readBytes(4 * int(msg.HeaderSizeUnits)); err != nil {
		return Message{}, err
	}

	if hasSequenceField(msg.Type, msg.Flag) {
		seq, err := r.readUint32BE()
		if err != nil {
			return Message{}, err
		}
		msg.Sequence = int32(seq)
	}

	if msg.Type == MsgTypeError {
		code, err := r.readUint32BE()
		if err != nil {
			return Message{}, err
		}
		msg.ErrorCode = int32(code)
	}

	if msg.Flag == FlagWithEvent {
		ev, err := r.readUint32BE()
		if err != nil {
			return Message{}, err
		}
		msg.Event = EventType(int32(ev))

		if !isConnectionEvent(msg.Event) {
			if msg.SessionID, err = r.readSizedString(); err != nil {
				return Message{}, err
			}
			if msg.ConnectID, err = r.readSizedString(); err != nil {
				return Message{}, err
			}
		}
	}

	msg.Payload = r.rest()
	return msg, nil
}

func appendSizedString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}

// frameReader is a bounds-checked cursor over a frame. Every read that would
// run past the end returns ErrFrameTooShort instead of panicking.
type frameReader struct {
	data   []byte
	offset int
}

func (r *frameReader) readBytes(n int) ([]byte, error) {
	if r.offset+n > len(r.data) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, frame is %d bytes",
			ErrFrameTooShort, n, r.offset, len(r.data))
	}
	b := r.data[r.offset : r.offset+n]
	r.offset += n
	return b, nil
}

func (r *frameReader) readUint32BE() (uint32, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *frameReader) readSizedString() (string, error) {
	n, err := r.readUint32BE()
	if err != nil {
		return "", err
	}
	b, err := r.readBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *frameReader) rest() []byte {
	b := r.data[r.offset:]
	r.offset = len(r.data)
	return b
}
