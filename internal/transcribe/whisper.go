package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/phoenixlabs/renderd/internal/types"
)

const whisperEndpoint = "https://api.openai.com/v1/audio/transcriptions"

// whisperClient calls the OpenAI Whisper transcription API.
type whisperClient struct {
	apiKey string
	client *http.Client
}

func newWhisperClient(apiKey string) *whisperClient {
	return &whisperClient{
		apiKey: apiKey,
		// Long videos take minutes to transcribe.
		client: &http.Client{Timeout: 5 * time.Minute},
	}
}

// transcribe uploads an audio file and returns the timed transcript.
func (c *whisperClient) transcribe(ctx context.Context, audioPath string) (*types.TranscribeResult, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("failed to copy audio data: %w", err)
	}

	for _, field := range [][2]string{
		{"model", "whisper-1"},
		{"response_format", "verbose_json"},
		{"timestamp_granularities[]", "segment"},
	} {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, fmt.Errorf("failed to write field %s: %w", field[0], err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize upload body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, whisperEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read whisper response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("whisper API returned status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Text     string `json:"text"`
		Language string `json:"language"`
		Segments []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to parse whisper response: %w", err)
	}

	segments := make([]types.TranscriptSegment, len(result.Segments))
	for i, seg := range result.Segments {
		segments[i] = types.TranscriptSegment{Start: seg.Start, End: seg.End, Text: seg.Text}
	}

	return &types.TranscribeResult{
		Language: result.Language,
		Text:     result.Text,
		Segments: segments,
	}, nil
}
