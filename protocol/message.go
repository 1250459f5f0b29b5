// Package protocol implements the vendor TTS binary wire format: a packed
// bit-field header followed by optional event/session/sequence/error fields
// and a raw payload. All multi-byte integers are big-endian; this is a strict
// interoperability requirement of the vendor service.
package protocol

// MsgType identifies the kind of frame, packed into the high nibble of
// header byte 1.
type MsgType uint8

const (
	MsgTypeInvalid              MsgType = 0
	MsgTypeFullClientRequest    MsgType = 0b1
	MsgTypeAudioOnlyClient      MsgType = 0b10
	MsgTypeFullServerResponse   MsgType = 0b1001
	MsgTypeAudioOnlyServer      MsgType = 0b1011
	MsgTypeFrontEndResultServer MsgType = 0b1100
	MsgTypeError                MsgType = 0b1111
)

// MsgTypeFlag occupies the low nibble of header byte 1 and controls which
// optional fields follow the header.
type MsgTypeFlag uint8

const (
	FlagNoSeq       MsgTypeFlag = 0
	FlagPositiveSeq MsgTypeFlag = 0b1
	FlagLastNoSeq   MsgTypeFlag = 0b10
	FlagNegativeSeq MsgTypeFlag = 0b11
	FlagWithEvent   MsgTypeFlag = 0b100
)

const (
	Version1    uint8 = 1
	HeaderSize4 uint8 = 1 // header length = 4 * this value, in bytes

	SerializationJSON uint8 = 0b1
	CompressionNone   uint8 = 0
)

// EventType enumerates the event ids carried by WithEvent frames.
type EventType int32

const (
	EventNone               EventType = 0
	EventStartConnection    EventType = 1
	EventFinishConnection   EventType = 2
	EventConnectionStarted  EventType = 50
	EventConnectionFailed   EventType = 51
	EventConnectionFinished EventType = 52
	EventStartSession       EventType = 100
	EventCancelSession      EventType = 101
	EventFinishSession      EventType = 102
	EventSessionStarted     EventType = 150
	EventSessionCanceled    EventType = 151
	EventSessionFinished    EventType = 152
	EventSessionFailed      EventType = 153
	EventUsageResponse      EventType = 154
	EventTaskRequest        EventType = 200
	EventUpdateConfig       EventType = 201
	EventAudioMuted         EventType = 250
	EventSayHello           EventType = 300
	EventTTSSentenceStart   EventType = 350
	EventTTSSentenceEnd     EventType = 351
	EventTTSResponse        EventType = 352
	EventTTSEnded           EventType = 359
)

// isConnectionEvent reports whether ev is a connection-lifecycle event, which
// carries no session/connect id on the wire.
func isConnectionEvent(ev EventType) bool {
	switch ev {
	case EventStartConnection, EventFinishConnection,
		EventConnectionStarted, EventConnectionFailed:
		return true
	}
	return false
}

// Message is one protocol frame. Which optional fields are present on the
// wire is determined solely by Type and Flag; callers must supply consistent
// combinations.
type Message struct {
	Version         uint8
	HeaderSizeUnits uint8
	Type            MsgType
	Flag            MsgTypeFlag
	Serialization   uint8
	Compression     uint8

	Event     EventType // present iff Flag == FlagWithEvent
	SessionID string    // present iff WithEvent and Event is not connection-lifecycle
	ConnectID string
	Sequence  int32 // present iff Flag is PositiveSeq or NegativeSeq; negative marks the terminal frame
	ErrorCode int32 // present iff Type == MsgTypeError
	Payload   []byte
}

// NewMessage returns a Message with the standard version/header/serialization
// bits for the given type and flag.
func NewMessage(msgType MsgType, flag MsgTypeFlag) Message {
	return Message{
		Version:         Version1,
		HeaderSizeUnits: HeaderSize4,
		Type:            msgType,
		Flag:            flag,
		Serialization:   SerializationJSON,
		Compression:     CompressionNone,
	}
}

// IsTerminal reports whether the frame is the last audio frame of a stream.
func (m Message) IsTerminal() bool {
	return (m.Flag == FlagPositiveSeq || m.Flag == FlagNegativeSeq) && m.Sequence < 0
}
