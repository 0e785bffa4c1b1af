// Package ai предоставляет эвристическую оценку качества транскрипции
package ai

import (
	"strings"
	"unicode/utf8"
)

// Пороги бонусов оценки качества
const (
	qualityMinChars = 10 // минимум символов для бонуса за длину
	qualityMinWords = 3  // минимум слов для бонуса за количество слов
)

// sentencePunctuation символы конца предложения (японские и латинские)
const sentencePunctuation = "。．.！!？?"

// QualityScore вычисляет совещательную оценку качества [0,100].
// База - вероятность наличия речи, бонусы - простые признаки формы текста.
// Оценка нигде не блокирует и не перезапускает запрос.
func QualityScore(noSpeechProb float64, text string) float64 {
	score := 100 * (1 - noSpeechProb)

	if utf8.RuneCountInString(text) > qualityMinChars {
		score += 10
	}
	if strings.ContainsAny(text, sentencePunctuation) {
		score += 5
	}
	if len(strings.Fields(text)) > qualityMinWords {
		score += 5
	}

	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
