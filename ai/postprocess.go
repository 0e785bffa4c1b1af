// Package ai предоставляет PostProcessor для очистки распознанного текста
package ai

import (
	"regexp"
	"strings"
)

// Rule одно правило перезаписи текста.
// Правила применяются строго по порядку: правило k работает с выходом
// правила k-1, а не с исходным текстом. Порядок - часть контракта.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// PostProcessor применяет упорядоченный набор правил коррекции.
// Контракт идемпотентности: Apply(Apply(x)) == Apply(x) для любого входа.
// Правила, нарушающие его - дефект набора, а не допустимое поведение.
type PostProcessor struct {
	rules []Rule
}

// defaultRules набор правил для японского текста из Whisper.
// RE2 не поддерживает lookahead, поэтому правила вставки пунктуации
// захватывают следующий символ и возвращают его в замене.
var defaultRules = []Rule{
	// Слова-паразиты: убираем вместе с хвостовой паузой/пунктуацией.
	// Длинные варианты идут первыми, чтобы не оставлять обрезки.
	{regexp.MustCompile(`(?:えーっと|ええっと|ええと|えーと|えっと|えとー|えと|あのー|あのう|うーんと)[、。 　]?`), ""},

	// Разговорные формы приводим к нейтральным
	{regexp.MustCompile(`っていう`), `という`},
	{regexp.MustCompile(`やっぱり|やっぱ`), `やはり`},

	// Пробелы (включая полноширинные) схлопываем в один
	{regexp.MustCompile(`[ \t　]+`), ` `},

	// Эвристическая вставка запятой после маркеров границы клаузы
	{regexp.MustCompile(`(ですが|ますが|ので|けれど|けど)([^、。！？!?])`), `$1、$2`},

	// Пробелы вокруг пунктуации не нужны
	{regexp.MustCompile(` ?([、。！？]) ?`), `$1`},

	// Дубли пунктуации
	{regexp.MustCompile(`、{2,}`), `、`},
	{regexp.MustCompile(`。{2,}`), `。`},
	{regexp.MustCompile(`、。`), `。`},

	// Нормализация конца предложения: вежливые формы получают точку
	{regexp.MustCompile(`(でした|ました|ません|ですね|ますね|です|ます)$`), `$1。`},
}

// NewPostProcessor создаёт процессор со стандартным набором правил
func NewPostProcessor() *PostProcessor {
	return &PostProcessor{rules: defaultRules}
}

// NewPostProcessorWithRules создаёт процессор с произвольным набором правил
func NewPostProcessorWithRules(rules []Rule) *PostProcessor {
	return &PostProcessor{rules: rules}
}

// Сколько раз одно правило может примениться до фиксации результата.
// Удаление паразита может состыковать символы в новый паразит,
// поэтому одного прохода правила недостаточно.
const maxRulePasses = 8

// Apply прогоняет текст через все правила по порядку.
// Каждое правило доводится до неподвижной точки.
// Никогда не возвращает ошибку: несовпавшие паттерны - no-op.
func (p *PostProcessor) Apply(text string) string {
	for _, rule := range p.rules {
		for pass := 0; pass < maxRulePasses; pass++ {
			next := rule.Pattern.ReplaceAllString(text, rule.Replacement)
			if next == text {
				break
			}
			text = next
		}
	}
	return strings.TrimSpace(text)
}

// Rules возвращает набор правил (для тестов и диагностики)
func (p *PostProcessor) Rules() []Rule {
	return p.rules
}
