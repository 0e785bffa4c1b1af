package ai

import (
	"fmt"

	"kikitori/models"
)

// UnsupportedTierError запрошен запрещённый политикой размерный класс.
// Возвращается до любой попытки загрузки, текущая модель не затрагивается.
type UnsupportedTierError struct {
	Tier models.Tier
}

func (e *UnsupportedTierError) Error() string {
	return fmt.Sprintf("model tier %q is excluded by policy", e.Tier)
}

// ModelLoadError не удалось инстанцировать движок для размерного класса.
// После этой ошибки сессия остаётся без загруженной модели.
type ModelLoadError struct {
	Tier models.Tier
	Err  error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load model tier %q: %v", e.Tier, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// TranscriptionError инференс движка завершился ошибкой, запрос не выполнен
type TranscriptionError struct {
	Err error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("transcription failed: %v", e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
