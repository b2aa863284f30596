package transcribe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/ysmood/gson"

	"github.com/phoenixlabs/renderd/internal/types"
)

// videoMeta is the subset of yt-dlp metadata we carry.
type videoMeta struct {
	Title    string
	Channel  string
	Duration int
}

// videoMetadata fetches video metadata with yt-dlp --dump-json.
// The mweb player client is the one yt-dlp documents as least likely
// to trip bot checks.
func (s *Service) videoMetadata(ctx context.Context, url string) (*videoMeta, error) {
	args := []string{
		"--dump-json",
		"--no-playlist",
		"--skip-download",
		"--extractor-args", "youtube:player_client=mweb",
		url,
	}

	cmd := exec.CommandContext(ctx, s.cfg.YTDLPPath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("yt-dlp metadata fetch failed: %w", err)
	}

	info := gson.NewFrom(string(output))
	meta := &videoMeta{
		Title:    info.Get("title").Str(),
		Channel:  info.Get("uploader").Str(),
		Duration: info.Get("duration").Int(),
	}
	if meta.Title == "" {
		return nil, fmt.Errorf("yt-dlp returned no title")
	}
	return meta, nil
}

// fetchCaptions downloads native or auto-generated subtitles as VTT
// and parses them into a transcript.
func (s *Service) fetchCaptions(ctx context.Context, url, tempDir string) (*types.TranscribeResult, error) {
	outTemplate := filepath.Join(tempDir, "captions.%(ext)s")
	args := []string{
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", "en.*",
		"--sub-format", "vtt",
		"--skip-download",
		"--no-playlist",
		"--extractor-args", "youtube:player_client=mweb",
		"-o", outTemplate,
		url,
	}

	cmd := exec.CommandContext(ctx, s.cfg.YTDLPPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("yt-dlp subtitle fetch failed: %w, output: %s", err, output)
	}

	matches, err := filepath.Glob(filepath.Join(tempDir, "captions.*.vtt"))
	if err != nil || len(matches) == 0 {
		return nil, types.ErrNoCaptions
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle file: %w", err)
	}

	transcript, err := ParseVTT(data)
	if err != nil {
		return nil, err
	}
	if len(transcript.Segments) == 0 {
		return nil, types.ErrNoCaptions
	}

	log.Debug().
		Int("segments", len(transcript.Segments)).
		Str("file", filepath.Base(matches[0])).
		Msg("Parsed caption file")
	return transcript, nil
}

// downloadAudio extracts the audio track as mp3 for Whisper.
func (s *Service) downloadAudio(ctx context.Context, url, tempDir string) (string, error) {
	outputPath := filepath.Join(tempDir, "audio.mp3")
	args := []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", "mp3",
		"-o", outputPath,
		"--no-playlist",
		"--extractor-args", "youtube:player_client=mweb",
		url,
	}

	cmd := exec.CommandContext(ctx, s.cfg.YTDLPPath, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("yt-dlp audio download failed: %w, output: %s", err, output)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("audio file was not created: %w", err)
	}
	return outputPath, nil
}
