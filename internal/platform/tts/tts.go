// Package tts synthesizes speech through the ElevenLabs API with a
// content-addressed disk cache. Without an API key it produces a silent
// placeholder MP3 so the rest of the system keeps working in development.
package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
)

const defaultBaseURL = "https://api.elevenlabs.io/v1"

// Service synthesizes speech and caches the resulting MP3 files on disk.
type Service struct {
	apiKey   string
	voiceID  string
	cacheDir string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// New creates a Service writing cached audio under cacheDir. The directory is
// created if missing.
func New(apiKey, voiceID, cacheDir string, logger zerolog.Logger) (*Service, error) {
	if cacheDir == "" {
		return nil, fmt.Errorf("tts cache dir is required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create tts cache dir: %w", err)
	}

	return &Service{
		apiKey:   apiKey,
		voiceID:  voiceID,
		cacheDir: cacheDir,
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger,
	}, nil
}

// CacheKey returns the cache filename for a voice/text pair.
func CacheKey(voiceID, text string) string {
	sum := sha256.Sum256([]byte(voiceID + "|" + text))
	return hex.EncodeToString(sum[:]) + ".mp3"
}

// Synthesize returns the path of an MP3 for the given text, generating and
// caching it on first use. The second return value reports a cache hit.
func (s *Service) Synthesize(ctx context.Context, text, voiceID string) (string, bool, error) {
	if text == "" {
		return "", false, fmt.Errorf("text is required")
	}
	if voiceID == "" {
		voiceID = s.voiceID
	}

	path := filepath.Join(s.cacheDir, CacheKey(voiceID, text))
	if _, err := os.Stat(path); err == nil {
		return path, true, nil
	}

	audio, err := s.generate(ctx, text, voiceID)
	if err != nil {
		return "", false, err
	}

	// Write through a temp file so a partial write never serves as a cache hit.
	tmp, err := os.CreateTemp(s.cacheDir, "tts-*.tmp")
	if err != nil {
		return "", false, fmt.Errorf("create temp audio file: %w", err)
	}
	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", false, fmt.Errorf("write audio: %w", err)
	}
	tmp.Close()
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", false, fmt.Errorf("store audio: %w", err)
	}

	return path, false, nil
}

func (s *Service) generate(ctx context.Context, text, voiceID string) ([]byte, error) {
	if s.apiKey == "" {
		return mockMP3(), nil
	}

	body, err := json.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": "eleven_monolingual_v1",
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", s.baseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call elevenlabs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.logger.Warn().Int("status", resp.StatusCode).Msg("elevenlabs request failed, using placeholder audio")
		return mockMP3(), nil
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read elevenlabs response: %w", err)
	}
	return audio, nil
}

// mockMP3 returns a minimal placeholder: an ID3 tag marker followed by
// 1024 zero bytes. Players treat it as a silent clip.
func mockMP3() []byte {
	buf := make([]byte, 3+1024)
	copy(buf, []byte{0x49, 0x44, 0x33})
	return buf
}

// Stats describes the cache contents.
type Stats struct {
	Files      int   `json:"files"`
	TotalBytes int64 `json:"total_bytes"`
}

// CacheStats walks the cache directory and reports file count and size.
func (s *Service) CacheStats() (Stats, error) {
	var stats Stats
	entries, err := os.ReadDir(s.cacheDir)
	if err != nil {
		return stats, fmt.Errorf("read tts cache dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".mp3" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		stats.Files++
		stats.TotalBytes += info.Size()
	}
	return stats, nil
}
