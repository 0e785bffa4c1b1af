package ai

import "testing"

func TestPostProcessorApply(t *testing.T) {
	p := NewPostProcessor()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "filler with full-width space",
			input:    "えと　それで",
			expected: "それで",
		},
		{
			name:     "filler variants removed",
			input:    "えーとこれはあのーテストです",
			expected: "これはテストです。",
		},
		{
			name:     "colloquial to neutral",
			input:    "っていうやっぱり",
			expected: "というやはり",
		},
		{
			name:     "comma inserted after clause marker",
			input:    "行きますがまだです",
			expected: "行きますが、まだです。",
		},
		{
			name:     "no double comma after marker",
			input:    "行きますが、まだです",
			expected: "行きますが、まだです。",
		},
		{
			name:     "whitespace collapsed",
			input:    "これは  　テスト",
			expected: "これは テスト",
		},
		{
			name:     "spaces around punctuation removed",
			input:    "はい 。 そうです",
			expected: "はい。そうです。",
		},
		{
			name:     "duplicate punctuation collapsed",
			input:    "はい。。。そうです、、",
			expected: "はい。そうです、",
		},
		{
			name:     "comma before period collapsed",
			input:    "そうです、。",
			expected: "そうです。",
		},
		{
			name:     "polite ending gets period",
			input:    "ありがとうございました",
			expected: "ありがとうございました。",
		},
		{
			name:     "existing period not duplicated",
			input:    "ありがとうございました。",
			expected: "ありがとうございました。",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "leading and trailing space trimmed",
			input:    "  こんにちは  ",
			expected: "こんにちは",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Apply(tt.input)
			if got != tt.expected {
				t.Errorf("Apply(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

// Повторное применение не должно менять текст: правила идемпотентны как набор
func TestPostProcessorIdempotence(t *testing.T) {
	p := NewPostProcessor()

	inputs := []string{
		"えと　それで",
		"えーとこれはあのーテストです",
		"行きますがまだです",
		"のでので",
		"はい。。。そうです、、",
		"っていうっていう",
		"ありがとうございました",
		// Удаление паразита может состыковать символы в новый паразит
		"えええとーと",
		"ええええとと",
		"",
		"これは  　テスト です ね",
	}

	for _, input := range inputs {
		once := p.Apply(input)
		twice := p.Apply(once)
		if once != twice {
			t.Errorf("Apply not idempotent for %q: first=%q, second=%q", input, once, twice)
		}
	}
}

func TestPostProcessorCustomRules(t *testing.T) {
	p := NewPostProcessorWithRules(nil)
	if got := p.Apply("  えと そのまま  "); got != "えと そのまま" {
		t.Errorf("empty rule set must only trim: got %q", got)
	}
}

func TestPostProcessorRuleOrder(t *testing.T) {
	p := NewPostProcessor()
	// Вставка запятой должна видеть выход замены っていう -> という,
	// а не исходный текст
	got := p.Apply("雨ですがっていう話")
	if got != "雨ですが、という話" {
		t.Errorf("rule ordering broken: got %q", got)
	}
}
