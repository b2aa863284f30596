// Package transcribe produces transcripts for YouTube videos. Native
// captions are tried first; videos without captions fall back to audio
// download plus the Whisper API.
package transcribe

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/phoenixlabs/renderd/internal/config"
	"github.com/phoenixlabs/renderd/internal/types"
)

// Service runs transcriptions. It shells out to yt-dlp for everything
// YouTube-side, so the binary must be on PATH (or configured).
type Service struct {
	cfg     *config.Config
	whisper *whisperClient
}

// New creates a transcription service.
func New(cfg *config.Config) *Service {
	return &Service{
		cfg:     cfg,
		whisper: newWhisperClient(cfg.OpenAIAPIKey),
	}
}

// Transcribe fetches a transcript for a single video url.
func (s *Service) Transcribe(ctx context.Context, rawURL string) (*types.TranscribeResult, error) {
	if rawURL == "" {
		return nil, types.ErrURLRequired
	}
	if _, err := extractVideoID(rawURL); err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "transcribe-*")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrTranscribeFailed, err)
	}
	defer os.RemoveAll(tempDir)

	meta, err := s.videoMetadata(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrTranscribeFailed, err)
	}
	log.Info().Str("title", meta.Title).Msg("Transcribing video")

	// Captions first: no audio download, no API cost.
	if transcript, err := s.fetchCaptions(ctx, rawURL, tempDir); err == nil {
		transcript.Title = meta.Title
		transcript.Source = "captions"
		return transcript, nil
	} else {
		log.Info().Err(err).Msg("Captions unavailable, falling back to Whisper")
	}

	audioPath, err := s.downloadAudio(ctx, rawURL, tempDir)
	if err != nil {
		return nil, fmt.Errorf("%w: audio download: %v", types.ErrTranscribeFailed, err)
	}

	transcript, err := s.whisper.transcribe(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrTranscribeFailed, err)
	}
	transcript.Title = meta.Title
	transcript.Source = "whisper"
	return transcript, nil
}

// extractVideoID pulls the 11-character video id out of the usual
// YouTube url shapes: watch?v=, youtu.be/, /embed/, /v/.
func extractVideoID(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrNotYouTubeURL, err)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")

	var id string
	switch host {
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	case "youtube.com", "m.youtube.com", "music.youtube.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/v/"):
			id = strings.TrimPrefix(u.Path, "/v/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	default:
		return "", types.ErrNotYouTubeURL
	}

	id = strings.SplitN(id, "/", 2)[0]
	if len(id) != 11 {
		return "", types.ErrNotYouTubeURL
	}
	return id, nil
}
