package types

// TranscribeRequest asks for a transcript of a single YouTube video.
type TranscribeRequest struct {
	URL string `json:"url"`
}

// TranscriptSegment is one timed chunk of a transcript.
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscribeResult is a completed transcript.
type TranscribeResult struct {
	Title    string              `json:"title"`
	Language string              `json:"language,omitempty"`
	Source   string              `json:"source"` // "captions" or "whisper"
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments,omitempty"`
}

// TranscribeResponse is the envelope for the transcribe endpoint.
type TranscribeResponse struct {
	OK     bool              `json:"ok"`
	Result *TranscribeResult `json:"result,omitempty"`
	Error  string            `json:"error,omitempty"`
}
