// Package volcengine implements the duplex WebSocket TTS client for the
// Volcengine binary streaming protocol.
package volcengine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"deskpet/core"
	"deskpet/protocol"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds configuration for the Volcengine WebSocket TTS service.
type Config struct {
	AppID       string  `json:"app_id"`
	AccessToken string  `json:"access_token"`
	Endpoint    string  `json:"endpoint"`
	VoiceType   string  `json:"voice_type"`
	Encoding    string  `json:"encoding"` // wav, mp3 or ogg_opus
	SpeedRatio  float64 `json:"speed_ratio"`
	VolumeRatio float64 `json:"volume_ratio"`
	PitchRatio  float64 `json:"pitch_ratio"`

	HandshakeTimeout time.Duration `json:"-"`
	// ReceiveTimeout bounds each frame read so a stalled stream cannot block
	// the receive loop forever.
	ReceiveTimeout time.Duration `json:"-"`
}

// Service synthesizes speech over the vendor's binary WebSocket protocol.
// One synthesis is in flight at a time; concurrent Speak calls are
// serialized.
type Service struct {
	config Config
	logger *core.Logger
	dialer *websocket.Dialer

	mu sync.Mutex
}

// frameConn is the slice of *websocket.Conn the receive loop needs.
type frameConn interface {
	ReadMessage() (int, []byte, error)
}

// New creates a Volcengine TTS service with the provided config.
func New(config Config, logger *core.Logger) *Service {
	if config.Endpoint == "" {
		config.Endpoint = "wss://openspeech.bytedance.com/api/v1/tts/ws_binary"
	}
	if config.Encoding == "" {
		config.Encoding = "wav"
	}
	if config.SpeedRatio == 0 {
		config.SpeedRatio = 1.0
	}
	if config.VolumeRatio == 0 {
		config.VolumeRatio = 1.0
	}
	if config.PitchRatio == 0 {
		config.PitchRatio = 1.0
	}
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = 10 * time.Second
	}
	if config.ReceiveTimeout == 0 {
		config.ReceiveTimeout = 60 * time.Second
	}

	if logger == nil {
		logger = core.GetLogger()
	}

	return &Service{
		config: config,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: config.HandshakeTimeout},
	}
}

// Speak synthesizes text and returns the complete audio buffer. Cancelling
// ctx closes the connection and discards any collected chunks.
func (s *Service) Speak(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conn, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("volcengine tts: connect: %w", err)
	}
	defer conn.Close()

	// Close the socket when the caller aborts so the read loop unblocks.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	if err := s.sendSynthesisRequest(conn, text); err != nil {
		return nil, fmt.Errorf("volcengine tts: send request: %w", err)
	}

	audio, err := s.collectAudio(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return audio, nil
}

func (s *Service) dial(ctx context.Context) (*websocket.Conn, error) {
	headers := http.Header{}
	headers.Set("Authorization", "Bearer;"+s.config.AccessToken)

	conn, _, err := s.dialer.DialContext(ctx, s.config.Endpoint, headers)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("volcengine tts: connected", "endpoint", s.config.Endpoint)
	return conn, nil
}

// sendSynthesisRequest encodes and writes the FullClientRequest frame.
func (s *Service) sendSynthesisRequest(conn *websocket.Conn, text string) error {
	request := synthesisRequest{
		App: appPayload{
			AppID:   s.config.AppID,
			Token:   s.config.AccessToken,
			Cluster: clusterForVoice(s.config.VoiceType),
		},
		User: userPayload{UID: uuid.NewString()},
		Audio: audioPayload{
			VoiceType:   s.config.VoiceType,
			Encoding:    s.config.Encoding,
			SpeedRatio:  s.config.SpeedRatio,
			VolumeRatio: s.config.VolumeRatio,
			PitchRatio:  s.config.PitchRatio,
		},
		Request: requestPayload{
			ReqID:         uuid.NewString(),
			Text:          text,
			TextType:      "plain",
			Operation:     "submit",
			WithTimestamp: "1",
		},
	}

	payload, err := sonic.Marshal(request)
	if err != nil {
		return fmt.Errorf("marshal request payload: %w", err)
	}

	msg := protocol.NewMessage(protocol.MsgTypeFullClientRequest, protocol.FlagNoSeq)
	msg.Payload = payload
	frame, err := protocol.Marshal(msg)
	if err != nil {
		return err
	}

	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.BinaryMessage, frame)
}

// collectAudio consumes server frames until the terminal frame (negative
// sequence) and returns the reassembled audio buffer.
func (s *Service) collectAudio(conn frameConn) ([]byte, error) {
	var chunks [][]byte
	var total int

	for {
		if wc, ok := conn.(*websocket.Conn); ok {
			wc.SetReadDeadline(time.Now().Add(s.config.ReceiveTimeout))
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("volcengine tts: read frame: %w", err)
		}

		msg, err := protocol.Unmarshal(frame)
		if err != nil {
			return nil, fmt.Errorf("volcengine tts: decode frame: %w", err)
		}

		switch msg.Type {
		case protocol.MsgTypeFrontEndResultServer:
			s.logger.Debug("volcengine tts: front-end result", "bytes", len(msg.Payload))

		case protocol.MsgTypeAudioOnlyServer:
			if len(msg.Payload) > 0 {
				chunks = append(chunks, msg.Payload)
				total += len(msg.Payload)
			}
			if msg.IsTerminal() {
				s.logger.Info("volcengine tts: synthesis complete",
					"chunks", len(chunks), "bytes", total)
				return mergeChunks(chunks, total)
			}

		case protocol.MsgTypeError:
			return nil, &core.SynthesisError{
				Code:    msg.ErrorCode,
				Message: string(msg.Payload),
			}

		default:
			s.logger.Warn("volcengine tts: unexpected frame type", "type", msg.Type)
		}
	}
}

func mergeChunks(chunks [][]byte, total int) ([]byte, error) {
	if len(chunks) == 0 {
		return nil, core.ErrNoAudio
	}
	merged := make([]byte, 0, total)
	for _, c := range chunks {
		merged = append(merged, c...)
	}
	return merged, nil
}

// clusterForVoice selects the vendor cluster: voices with the S_ prefix are
// voice-clone (ICL) voices and live on a separate cluster.
func clusterForVoice(voiceType string) string {
	if strings.HasPrefix(voiceType, "S_") {
		return "volcano_icl"
	}
	return "volcano_tts"
}

type synthesisRequest struct {
	App     appPayload     `json:"app"`
	User    userPayload    `json:"user"`
	Audio   audioPayload   `json:"audio"`
	Request requestPayload `json:"request"`
}

type appPayload struct {
	AppID   string `json:"appid"`
	Token   string `json:"token"`
	Cluster string `json:"cluster"`
}

type userPayload struct {
	UID string `json:"uid"`
}

type audioPayload struct {
	VoiceType   string  `json:"voice_type"`
	Encoding    string  `json:"encoding"`
	SpeedRatio  float64 `json:"speed_ratio"`
	VolumeRatio float64 `json:"volume_ratio"`
	PitchRatio  float64 `json:"pitch_ratio"`
}

type requestPayload struct {
	ReqID         string `json:"reqid"`
	Text          string `json:"text"`
	TextType      string `json:"text_type"`
	Operation     string `json:"operation"`
	WithTimestamp string `json:"with_timestamp"`
}
