package models

// Policy определяет какие размерные классы запрещены в данном развёртывании.
// Проверка выполняется до любой попытки загрузки модели.
type Policy struct {
	excluded map[Tier]bool
}

// NewPolicy создаёт политику с перечисленными запрещёнными классами
func NewPolicy(excluded ...Tier) *Policy {
	m := make(map[Tier]bool, len(excluded))
	for _, tier := range excluded {
		m[tier] = true
	}
	return &Policy{excluded: m}
}

// DefaultPolicy запрещает large: на CPU-only развёртываниях она
// не укладывается в память типовой машины
func DefaultPolicy() *Policy {
	return NewPolicy(TierLarge)
}

// Allowed проверяет разрешён ли размерный класс
func (p *Policy) Allowed(tier Tier) bool {
	if p == nil {
		return true
	}
	return !p.excluded[tier]
}

// ExcludedTiers возвращает список запрещённых классов
func (p *Policy) ExcludedTiers() []Tier {
	if p == nil {
		return nil
	}
	var result []Tier
	for _, tier := range AllTiers() {
		if p.excluded[tier] {
			result = append(result, tier)
		}
	}
	return result
}
