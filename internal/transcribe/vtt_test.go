package transcribe

import (
	"testing"
)

const sampleVTT = `WEBVTT
Kind: captions
Language: en

00:00:01.000 --> 00:00:03.500
Hello and <c.colorE5E5E5>welcome</c>

00:00:03.500 --> 00:00:06.000 align:start position:0%
to the show

00:00:06.000 --> 00:00:08.000
to the show

00:00:08.000 --> 00:00:10.250
let's get started
`

func TestParseVTT(t *testing.T) {
	result, err := ParseVTT([]byte(sampleVTT))
	if err != nil {
		t.Fatalf("ParseVTT failed: %v", err)
	}

	if len(result.Segments) != 3 {
		t.Fatalf("Expected 3 segments (duplicate collapsed), got %d: %+v", len(result.Segments), result.Segments)
	}

	first := result.Segments[0]
	if first.Start != 1.0 || first.End != 3.5 {
		t.Errorf("Expected first segment 1.0-3.5, got %v-%v", first.Start, first.End)
	}
	if first.Text != "Hello and welcome" {
		t.Errorf("Expected formatting tags stripped, got %q", first.Text)
	}

	if result.Segments[1].Text != "to the show" {
		t.Errorf("Unexpected second segment: %q", result.Segments[1].Text)
	}

	want := "Hello and welcome to the show let's get started"
	if result.Text != want {
		t.Errorf("Full text mismatch:\n got: %q\nwant: %q", result.Text, want)
	}
}

func TestParseVTTRejectsNonVTT(t *testing.T) {
	if _, err := ParseVTT([]byte("just some text")); err == nil {
		t.Error("Expected error for non-VTT input")
	}
}

func TestParseVTTEmptyBody(t *testing.T) {
	result, err := ParseVTT([]byte("WEBVTT\n"))
	if err != nil {
		t.Fatalf("ParseVTT failed: %v", err)
	}
	if len(result.Segments) != 0 {
		t.Errorf("Expected no segments, got %d", len(result.Segments))
	}
}

func TestParseVTTTime(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"00:00:01.000", 1.0},
		{"00:01:30.500", 90.5},
		{"01:00:00.000", 3600.0},
		{"02:15.250", 135.25},
	}
	for _, tc := range cases {
		if got := parseVTTTime(tc.in); got != tc.want {
			t.Errorf("parseVTTTime(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
