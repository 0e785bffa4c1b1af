package export

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"kikitori/ai"
	"kikitori/models"
	"kikitori/session"
)

func sampleResult() *session.TranscriptionResult {
	return &session.TranscriptionResult{
		ID:        "res-1",
		SessionID: "sess-1",
		CreatedAt: time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC),
		Text:      "こんにちは。今日は良い天気です。",
		RawText:   "えーとこんにちは 今日は良い天気です",
		Language:  "ja",
		Segments: []ai.Segment{
			{Start: 0.0, End: 2.1, Text: "こんにちは。"},
			{Start: 2.5, End: 65.0, Text: "今日は良い天気です。"},
		},
		Tier:          models.TierBase,
		Enhanced:      true,
		AudioEnhanced: true,
		Duration:      65.4,
		NoSpeechProb:  0.1,
		Confidence:    0.9,
		QualityScore:  100,
		CharCount:     16,
		WordCount:     2,
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{5.9, "00:05"},
		{59, "00:59"},
		{60, "01:00"},
		{65.4, "01:05"},
		{600, "10:00"},
		{3599, "59:59"},
	}
	for _, tt := range tests {
		if got := FormatTime(tt.seconds); got != tt.want {
			t.Errorf("FormatTime(%v) = %q, want %q", tt.seconds, got, tt.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"txt", "JSON", " report "} {
		if _, err := ParseFormat(s); err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseFormat("pdf"); err == nil {
		t.Error("unknown format must fail")
	}
}

func TestPlainText(t *testing.T) {
	if got := PlainText(sampleResult()); got != "こんにちは。今日は良い天気です。" {
		t.Errorf("PlainText = %q", got)
	}
}

func TestJSON(t *testing.T) {
	data, err := JSON(sampleResult())
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}

	// Не-ASCII без \u экранирования
	if !strings.Contains(string(data), "こんにちは") {
		t.Error("non-ASCII text must not be escaped")
	}

	var payload struct {
		ModelTier  string  `json:"modelTier"`
		Confidence float64 `json:"confidence"`
		Segments   []struct {
			Start float64 `json:"start"`
			End   float64 `json:"end"`
			Text  string  `json:"text"`
		} `json:"segments"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if payload.ModelTier != "base" {
		t.Errorf("modelTier = %v", payload.ModelTier)
	}
	if payload.Confidence != 0.9 {
		t.Errorf("confidence = %v", payload.Confidence)
	}

	// Сегменты выгружаются без потерь: время и текст в точности исходные
	original := sampleResult().Segments
	if len(payload.Segments) != len(original) {
		t.Fatalf("got %d segments, want %d", len(payload.Segments), len(original))
	}
	for i, seg := range payload.Segments {
		if seg.Start != original[i].Start || seg.End != original[i].End || seg.Text != original[i].Text {
			t.Errorf("segment %d = %+v, want %+v", i, seg, original[i])
		}
	}
}

func TestReport(t *testing.T) {
	report := Report(sampleResult())

	for _, want := range []string{
		"==== Transcription Report ====",
		"Date:       2026-03-14 15:09:26",
		"Model:      base",
		"Duration:   01:05",
		"Quality:    100/100",
		"Audio:      enhanced",
		"Text:       corrected",
		"こんにちは。今日は良い天気です。",
		"  1. [00:00 - 00:02] こんにちは。",
		"  2. [00:02 - 01:05] 今日は良い天気です。",
		"Segments:   2",
		"Characters: 16",
		"Avg word length: 8.0",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q\n%s", want, report)
		}
	}
}

func TestReportFlagsIndependent(t *testing.T) {
	// Улучшение сигнала и правка текста - независимые признаки
	result := sampleResult()
	result.AudioEnhanced = false
	result.Enhanced = true

	report := Report(result)
	if !strings.Contains(report, "Audio:      original") {
		t.Error("audio line must reflect signal enhancement only")
	}
	if !strings.Contains(report, "Text:       corrected") {
		t.Error("text line must reflect post-processing only")
	}
}

func TestReportWarnings(t *testing.T) {
	result := sampleResult()
	result.Warnings = []string{"no speech detected"}
	if !strings.Contains(Report(result), "Warning: no speech detected") {
		t.Error("warnings must appear in report")
	}
}

func TestRender(t *testing.T) {
	result := sampleResult()

	for _, format := range []Format{FormatText, FormatJSON, FormatReport} {
		data, err := Render(result, format)
		if err != nil {
			t.Errorf("Render(%s) failed: %v", format, err)
		}
		if len(data) == 0 {
			t.Errorf("Render(%s) returned empty output", format)
		}
	}

	if _, err := Render(result, Format("xml")); err == nil {
		t.Error("unknown format must fail")
	}
}

func TestAvgWordLengthZeroWords(t *testing.T) {
	result := sampleResult()
	result.WordCount = 0
	result.CharCount = 7
	if !strings.Contains(Report(result), "Avg word length: 7.0") {
		t.Error("zero word count must not divide by zero")
	}
}
