package api

import (
	"kikitori/models"
	"kikitori/session"
)

// Message структура сообщения WebSocket и gRPC стрима
type Message struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`

	// Параметры запросов
	SessionID      string `json:"sessionId,omitempty"`
	ResultID       string `json:"resultId,omitempty"`
	Language       string `json:"language,omitempty"`
	Tier           string `json:"tier,omitempty"`
	Format         string `json:"format,omitempty"`
	Extension      string `json:"extension,omitempty"`
	Audio          string `json:"audio,omitempty"` // base64
	WordTimestamps bool   `json:"wordTimestamps,omitempty"`

	// Ответы
	Session  *SessionInfo                   `json:"session,omitempty"`
	Sessions []*SessionInfo                 `json:"sessions,omitempty"`
	Result   *session.TranscriptionResult   `json:"result,omitempty"`
	Results  []*session.TranscriptionResult `json:"results,omitempty"`
	Models   []TierState                    `json:"models,omitempty"`

	// Прогресс
	Stage    string  `json:"stage,omitempty"`
	Progress float64 `json:"progress,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// TierState метаданные размерного класса плюс локальное состояние
type TierState struct {
	models.TierInfo
	Downloaded bool `json:"downloaded"`
	Allowed    bool `json:"allowed"`
}

// SessionInfo краткая информация о сессии для API
type SessionInfo struct {
	ID           string `json:"id"`
	CreatedAt    string `json:"createdAt"`
	Language     string `json:"language"`
	ResultsCount int    `json:"resultsCount"`
	LoadedTier   string `json:"loadedTier,omitempty"`
}

func sessionInfo(s *session.Session) *SessionInfo {
	info := &SessionInfo{
		ID:           s.ID,
		CreatedAt:    s.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		Language:     s.Language,
		ResultsCount: len(s.Results()),
	}
	if handle := s.Engines().Handle(); handle != nil {
		info.LoadedTier = string(handle.Tier)
	}
	return info
}
