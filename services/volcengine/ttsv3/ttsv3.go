// Package volcenginev3 implements the vendor's v3 unidirectional HTTP
// streaming TTS endpoint: a single POST whose response body is a stream of
// newline-delimited JSON records carrying base64 audio fragments.
package volcenginev3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"deskpet/core"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

// defaultDoneCode is the vendor's current end-of-synthesis sentinel. It is
// configurable because the vendor may change it.
const defaultDoneCode = 20000000

// Config holds configuration for the v3 HTTP streaming TTS service.
type Config struct {
	AppID       string  `json:"app_id"`
	AccessToken string  `json:"access_token"`
	ResourceID  string  `json:"resource_id,omitempty"`
	Endpoint    string  `json:"endpoint"`
	VoiceType   string  `json:"voice_type"`
	Format      string  `json:"format"` // mp3, wav or pcm
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float64 `json:"speed_ratio"`
	VolumeRatio float64 `json:"volume_ratio"`
	DoneCode    int     `json:"done_code,omitempty"`

	Timeout time.Duration `json:"-"`
}

// Service synthesizes speech via the v3 unidirectional streaming API.
type Service struct {
	config Config
	logger *core.Logger
	client *http.Client

	mu sync.Mutex
}

// New creates a v3 TTS service with the provided config.
func New(config Config, logger *core.Logger) *Service {
	if config.Endpoint == "" {
		config.Endpoint = "https://openspeech.bytedance.com/api/v3/tts/unidirectional"
	}
	if config.Format == "" {
		config.Format = "mp3"
	}
	if config.SampleRate == 0 {
		config.SampleRate = 24000
	}
	if config.SpeedRatio == 0 {
		config.SpeedRatio = 1.0
	}
	if config.VolumeRatio == 0 {
		config.VolumeRatio = 1.0
	}
	if config.DoneCode == 0 {
		config.DoneCode = defaultDoneCode
	}
	if config.Timeout == 0 {
		config.Timeout = 2 * time.Minute
	}

	if logger == nil {
		logger = core.GetLogger()
	}

	return &Service{
		config: config,
		logger: logger,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Speak synthesizes text and returns the complete audio buffer.
//
// The request is a single HTTP POST; once it is on the wire the vendor will
// finish synthesizing server-side regardless of ctx, so cancellation only
// stops reading the response, it does not abort billing for the call.
func (s *Service) Speak(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, errors.New("text cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := s.buildRequestBody(text)
	if err != nil {
		return nil, fmt.Errorf("volcengine tts v3: build request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("volcengine tts v3: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-App-Id", s.config.AppID)
	req.Header.Set("X-Api-Access-Key", s.config.AccessToken)
	if s.config.ResourceID != "" {
		req.Header.Set("X-Api-Resource-Id", s.config.ResourceID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("volcengine tts v3: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("volcengine tts v3: unexpected status %d: %s", resp.StatusCode, detail)
	}

	return s.collectAudio(resp.Body)
}

// collectAudio reads newline-delimited JSON records until the terminal
// success code and concatenates the base64-decoded audio fragments.
func (s *Service) collectAudio(body io.Reader) ([]byte, error) {
	var chunks [][]byte
	var total int

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var record streamRecord
		if err := sonic.Unmarshal(line, &record); err != nil {
			s.logger.Warn("volcengine tts v3: skipping unparseable line", "error", err)
			continue
		}

		switch {
		case record.Code == 0 && record.Data != "":
			chunk, err := base64.StdEncoding.DecodeString(record.Data)
			if err != nil {
				return nil, fmt.Errorf("volcengine tts v3: decode audio fragment: %w", err)
			}
			chunks = append(chunks, chunk)
			total += len(chunk)

		case record.Code == 0 && len(record.Sentence) > 0:
			// sentence boundary metadata, not needed for reassembly

		case record.Code == s.config.DoneCode:
			return mergeChunks(chunks, total)

		case record.Code > 0:
			return nil, &core.SynthesisError{
				Code:    int32(record.Code),
				Message: record.Message,
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("volcengine tts v3: read stream: %w", err)
	}

	// Stream ended without the terminal marker; deliver what arrived.
	s.logger.Warn("volcengine tts v3: stream ended without done code")
	return mergeChunks(chunks, total)
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

func (s *Service) buildRequestBody(text string) ([]byte, error) {
	additions, err := sonic.Marshal(map[string]any{
		"explicit_language":       "zh",
		"disable_markdown_filter": true,
	})
	if err != nil {
		return nil, err
	}

	return sonic.Marshal(v3Request{
		User: v3User{UID: uuid.NewString()},
		ReqParams: v3ReqParams{
			Text:    text,
			Speaker: s.config.VoiceType,
			AudioParams: v3AudioParams{
				Format:      s.config.Format,
				SampleRate:  s.config.SampleRate,
				SpeedRatio:  s.config.SpeedRatio,
				VolumeRatio: s.config.VolumeRatio,
			},
			Additions: string(additions),
		},
	})
}

type streamRecord struct {
	Code     int             `json:"code"`
	Data     string          `json:"data,omitempty"`
	Sentence json.RawMessage `json:"sentence,omitempty"`
	Message  string          `json:"message,omitempty"`
}

type v3Request struct {
	User      v3User      `json:"user"`
	ReqParams v3ReqParams `json:"req_params"`
}

type v3User struct {
	UID string `json:"uid"`
}

type v3ReqParams struct {
	Text        string        `json:"text"`
	Speaker     string        `json:"speaker"`
	AudioParams v3AudioParams `json:"audio_params"`
	Additions   string        `json:"additions,omitempty"`
}

type v3AudioParams struct {
	Format      string  `json:"format"`
	SampleRate  int     `json:"sample_rate"`
	SpeedRatio  float64 `json:"speed_ratio"`
	VolumeRatio float64 `json:"volume_ratio"`
}
