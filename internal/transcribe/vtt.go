package transcribe

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phoenixlabs/renderd/internal/types"
)

var vttTagRe = regexp.MustCompile(`<[^>]+>`)

// ParseVTT parses a WebVTT subtitle document into a transcript.
// Cue identifiers, header metadata, and inline formatting tags are
// dropped; consecutive duplicate cues (common in auto-generated
// captions) are collapsed.
func ParseVTT(data []byte) (*types.TranscribeResult, error) {
	lines := strings.Split(string(data), "\n")
	if len(lines) == 0 || !strings.HasPrefix(strings.TrimSpace(lines[0]), "WEBVTT") {
		return nil, fmt.Errorf("not a WebVTT document")
	}

	var segments []types.TranscriptSegment
	var fullText strings.Builder
	lastText := ""

	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])

		if line == "" || strings.HasPrefix(line, "WEBVTT") ||
			strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") ||
			strings.HasPrefix(line, "NOTE") || strings.HasPrefix(line, "STYLE") {
			continue
		}

		if !strings.Contains(line, "-->") {
			continue
		}

		parts := strings.SplitN(line, "-->", 2)
		start := parseVTTTime(strings.TrimSpace(parts[0]))
		// Cue settings may trail the end timestamp.
		endField := strings.Fields(strings.TrimSpace(parts[1]))
		if len(endField) == 0 {
			continue
		}
		end := parseVTTTime(endField[0])

		var textLines []string
		for i+1 < len(lines) && strings.TrimSpace(lines[i+1]) != "" {
			i++
			textLines = append(textLines, strings.TrimSpace(lines[i]))
		}
		if len(textLines) == 0 {
			continue
		}

		text := vttTagRe.ReplaceAllString(strings.Join(textLines, " "), "")
		text = strings.TrimSpace(text)
		if text == "" || text == lastText {
			continue
		}
		lastText = text

		segments = append(segments, types.TranscriptSegment{
			Start: start,
			End:   end,
			Text:  text,
		})
		fullText.WriteString(text)
		fullText.WriteString(" ")
	}

	return &types.TranscribeResult{
		Language: "en",
		Text:     strings.TrimSpace(fullText.String()),
		Segments: segments,
	}, nil
}

// parseVTTTime converts a 00:00:00.000 or 00:00.000 timestamp to seconds.
func parseVTTTime(timestamp string) float64 {
	parts := strings.Split(timestamp, ":")

	var hours, minutes, seconds float64
	switch len(parts) {
	case 3:
		fmt.Sscanf(parts[0], "%f", &hours)
		fmt.Sscanf(parts[1], "%f", &minutes)
		fmt.Sscanf(parts[2], "%f", &seconds)
	case 2:
		fmt.Sscanf(parts[0], "%f", &minutes)
		fmt.Sscanf(parts[1], "%f", &seconds)
	}

	return hours*3600 + minutes*60 + seconds
}
