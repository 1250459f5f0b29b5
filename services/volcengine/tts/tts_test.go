package volcengine

import (
	"bytes"
	"errors"
	"testing"

	"deskpet/core"
	"deskpet/protocol"

	"github.com/gorilla/websocket"
)

// fakeConn replays a fixed sequence of frames to the receive loop.
type fakeConn struct {
	frames [][]byte
	pos    int
	err    error
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	if f.pos >= len(f.frames) {
		if f.err != nil {
			return 0, nil, f.err
		}
		return 0, nil, errors.New("no more frames")
	}
	frame := f.frames[f.pos]
	f.pos++
	return websocket.BinaryMessage, frame, nil
}

func audioFrame(t *testing.T, seq int32, payload []byte) []byte {
	t.Helper()
	flag := protocol.FlagPositiveSeq
	if seq < 0 {
		flag = protocol.FlagNegativeSeq
	}
	msg := protocol.NewMessage(protocol.MsgTypeAudioOnlyServer, flag)
	msg.Sequence = seq
	msg.Payload = payload
	frame, err := protocol.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal audio frame: %v", err)
	}
	return frame
}

func newTestService() *Service {
	return New(Config{AppID: "app", AccessToken: "tok", VoiceType: "BV001"}, core.NewLogger(nil))
}

func TestCollectAudioStopsAtTerminalFrame(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{
		audioFrame(t, 1, []byte("AAAA")),
		audioFrame(t, -1, []byte("BBBB")),
		audioFrame(t, 2, []byte("never read")),
	}}

	audio, err := newTestService().collectAudio(conn)
	if err != nil {
		t.Fatalf("collectAudio: %v", err)
	}
	if !bytes.Equal(audio, []byte("AAAABBBB")) {
		t.Errorf("audio = %q, want AAAABBBB", audio)
	}
	if conn.pos != 2 {
		t.Errorf("read %d frames, want 2 (must stop at terminal frame)", conn.pos)
	}
}

func TestCollectAudioSkipsFrontEndAndUnknownFrames(t *testing.T) {
	frontEnd := protocol.NewMessage(protocol.MsgTypeFrontEndResultServer, protocol.FlagNoSeq)
	frontEnd.Payload = []byte(`{"words":[]}`)
	frontEndFrame, err := protocol.Marshal(frontEnd)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	unknown := protocol.NewMessage(protocol.MsgTypeFullServerResponse, protocol.FlagNoSeq)
	unknownFrame, err := protocol.Marshal(unknown)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	conn := &fakeConn{frames: [][]byte{
		frontEndFrame,
		unknownFrame,
		audioFrame(t, 1, []byte("xy")),
		audioFrame(t, -2, nil),
	}}

	audio, err := newTestService().collectAudio(conn)
	if err != nil {
		t.Fatalf("collectAudio: %v", err)
	}
	if !bytes.Equal(audio, []byte("xy")) {
		t.Errorf("audio = %q, want xy", audio)
	}
}

func TestCollectAudioErrorFrame(t *testing.T) {
	errMsg := protocol.NewMessage(protocol.MsgTypeError, protocol.FlagNoSeq)
	errMsg.ErrorCode = 55
	errMsg.Payload = []byte("boom")
	errFrame, err := protocol.Marshal(errMsg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	conn := &fakeConn{frames: [][]byte{
		audioFrame(t, 1, []byte("partial")),
		errFrame,
	}}

	audio, err := newTestService().collectAudio(conn)
	if audio != nil {
		t.Errorf("audio = %q, want nil (no partial delivery)", audio)
	}
	var synthErr *core.SynthesisError
	if !errors.As(err, &synthErr) {
		t.Fatalf("err = %v, want *core.SynthesisError", err)
	}
	if synthErr.Code != 55 || synthErr.Message != "boom" {
		t.Errorf("got code=%d msg=%q, want code=55 msg=boom", synthErr.Code, synthErr.Message)
	}
}

func TestCollectAudioEmptyStream(t *testing.T) {
	conn := &fakeConn{frames: [][]byte{audioFrame(t, -1, nil)}}

	_, err := newTestService().collectAudio(conn)
	if !errors.Is(err, core.ErrNoAudio) {
		t.Errorf("err = %v, want ErrNoAudio", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	s := New(Config{AppID: "a", AccessToken: "t", VoiceType: "BV001"}, nil)
	if s.config.Endpoint == "" || s.config.Encoding != "wav" {
		t.Errorf("defaults not applied: %+v", s.config)
	}
	if s.config.SpeedRatio != 1.0 || s.config.VolumeRatio != 1.0 || s.config.PitchRatio != 1.0 {
		t.Errorf("ratio defaults not applied: %+v", s.config)
	}
}

func TestClusterForVoice(t *testing.T) {
	if got := clusterForVoice("S_abc123"); got != "volcano_icl" {
		t.Errorf("clusterForVoice(S_abc123) = %q, want volcano_icl", got)
	}
	if got := clusterForVoice("BV001_streaming"); got != "volcano_tts" {
		t.Errorf("clusterForVoice(BV001_streaming) = %q, want volcano_tts", got)
	}
}
