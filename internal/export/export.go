// Package export форматирует результаты транскрипции для выгрузки
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"kikitori/session"
)

// Format поддерживаемые форматы выгрузки
type Format string

const (
	FormatText   Format = "txt"
	FormatJSON   Format = "json"
	FormatReport Format = "report"
)

// ParseFormat валидирует строковое значение формата
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText:
		return FormatText, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatReport:
		return FormatReport, nil
	default:
		return "", fmt.Errorf("unknown export format: %q", s)
	}
}

// Render выгружает результат в указанном формате
func Render(result *session.TranscriptionResult, format Format) ([]byte, error) {
	switch format {
	case FormatText:
		return []byte(PlainText(result)), nil
	case FormatJSON:
		return JSON(result)
	case FormatReport:
		return []byte(Report(result)), nil
	default:
		return nil, fmt.Errorf("unknown export format: %q", format)
	}
}

// FormatTime форматирует секунды как MM:SS
func FormatTime(seconds float64) string {
	total := int(seconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// PlainText возвращает только обработанный текст
func PlainText(result *session.TranscriptionResult) string {
	return result.Text
}

// jsonSegment сегмент в выгрузке JSON
type jsonSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// jsonExport структура выгрузки JSON
type jsonExport struct {
	ID            string        `json:"id"`
	CreatedAt     string        `json:"createdAt"`
	Language      string        `json:"language"`
	ModelTier     string        `json:"modelTier"`
	Text          string        `json:"text"`
	RawText       string        `json:"rawText"`
	Duration      float64       `json:"duration"`
	Confidence    float64       `json:"confidence"`
	QualityScore  float64       `json:"qualityScore"`
	CharCount     int           `json:"charCount"`
	WordCount     int           `json:"wordCount"`
	Enhanced      bool          `json:"enhanced"`
	AudioEnhanced bool          `json:"audioEnhanced"`
	Segments      []jsonSegment `json:"segments"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// JSON выгружает результат в JSON с отступами.
// Не-ASCII символы сохраняются как есть, без \u экранирования.
func JSON(result *session.TranscriptionResult) ([]byte, error) {
	segments := make([]jsonSegment, 0, len(result.Segments))
	for _, seg := range result.Segments {
		segments = append(segments, jsonSegment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}

	payload := jsonExport{
		ID:            result.ID,
		CreatedAt:     result.CreatedAt.Format(time.RFC3339),
		Language:      result.Language,
		ModelTier:     string(result.Tier),
		Text:          result.Text,
		RawText:       result.RawText,
		Duration:      result.Duration,
		Confidence:    result.Confidence,
		QualityScore:  result.QualityScore,
		CharCount:     result.CharCount,
		WordCount:     result.WordCount,
		Enhanced:      result.Enhanced,
		AudioEnhanced: result.AudioEnhanced,
		Segments:      segments,
		Warnings:      result.Warnings,
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(payload); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Report строит сводный текстовый отчёт:
// заголовок с метаданными, пронумерованные сегменты с таймкодами и итоги
func Report(result *session.TranscriptionResult) string {
	var sb strings.Builder

	sb.WriteString("==== Transcription Report ====\n")
	fmt.Fprintf(&sb, "Date:       %s\n", result.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Model:      %s\n", result.Tier)
	fmt.Fprintf(&sb, "Language:   %s\n", result.Language)
	fmt.Fprintf(&sb, "Duration:   %s\n", FormatTime(result.Duration))
	fmt.Fprintf(&sb, "Confidence: %.2f\n", result.Confidence)
	fmt.Fprintf(&sb, "Quality:    %.0f/100\n", result.QualityScore)
	if result.AudioEnhanced {
		sb.WriteString("Audio:      enhanced\n")
	} else {
		sb.WriteString("Audio:      original\n")
	}
	if result.Enhanced {
		sb.WriteString("Text:       corrected\n")
	} else {
		sb.WriteString("Text:       as recognized\n")
	}
	sb.WriteString("\n")

	sb.WriteString("---- Text ----\n")
	sb.WriteString(result.Text)
	sb.WriteString("\n\n")

	if len(result.Segments) > 0 {
		sb.WriteString("---- Segments ----\n")
		for i, seg := range result.Segments {
			fmt.Fprintf(&sb, "%3d. [%s - %s] %s\n",
				i+1, FormatTime(seg.Start), FormatTime(seg.End), seg.Text)
		}
		sb.WriteString("\n")
	}

	sb.WriteString("---- Statistics ----\n")
	fmt.Fprintf(&sb, "Segments:   %d\n", len(result.Segments))
	fmt.Fprintf(&sb, "Characters: %d\n", result.CharCount)
	fmt.Fprintf(&sb, "Words:      %d\n", result.WordCount)
	fmt.Fprintf(&sb, "Avg word length: %.1f\n", avgWordLength(result.CharCount, result.WordCount))

	for _, warning := range result.Warnings {
		fmt.Fprintf(&sb, "Warning: %s\n", warning)
	}

	return sb.String()
}

// avgWordLength средняя длина слова, защита от деления на ноль
func avgWordLength(charCount, wordCount int) float64 {
	if wordCount < 1 {
		wordCount = 1
	}
	return float64(charCount) / float64(wordCount)
}
