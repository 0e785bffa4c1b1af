// Package history хранит результаты транскрипции в SQLite
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"kikitori/ai"
	"kikitori/models"
	"kikitori/session"
)

// ErrNotFound результат с таким ID отсутствует
var ErrNotFound = errors.New("result not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS results (
	id             TEXT PRIMARY KEY,
	session_id     TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	text           TEXT NOT NULL,
	raw_text       TEXT NOT NULL,
	language       TEXT NOT NULL,
	model_tier     TEXT NOT NULL,
	enhanced       INTEGER NOT NULL,
	audio_enhanced INTEGER NOT NULL,
	duration       REAL NOT NULL,
	no_speech      REAL NOT NULL,
	confidence     REAL NOT NULL,
	quality_score  REAL NOT NULL,
	char_count     INTEGER NOT NULL,
	word_count     INTEGER NOT NULL,
	segments       TEXT NOT NULL,
	warnings       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_created ON results (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_session ON results (session_id);
`

// Store персистентная история результатов поверх SQLite
type Store struct {
	db   *sql.DB
	path string
}

// Open открывает (создавая при необходимости) базу истории
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close закрывает соединение с базой
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save сохраняет результат
func (s *Store) Save(ctx context.Context, result *session.TranscriptionResult) error {
	segments, err := json.Marshal(result.Segments)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	warnings, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO results (
			id, session_id, created_at, text, raw_text, language, model_tier,
			enhanced, audio_enhanced, duration, no_speech, confidence, quality_score,
			char_count, word_count, segments, warnings
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.ID, result.SessionID, result.CreatedAt.UTC().Format(time.RFC3339Nano),
		result.Text, result.RawText, result.Language, string(result.Tier),
		boolToInt(result.Enhanced), boolToInt(result.AudioEnhanced),
		result.Duration, result.NoSpeechProb,
		result.Confidence, result.QualityScore,
		result.CharCount, result.WordCount, string(segments), string(warnings),
	)
	if err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	return nil
}

// Get возвращает результат по ID
func (s *Store) Get(ctx context.Context, id string) (*session.TranscriptionResult, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	result, err := scanResult(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return result, err
}

// List возвращает последние результаты, новые первыми
func (s *Store) List(ctx context.Context, limit int) ([]*session.TranscriptionResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, selectColumns+" ORDER BY created_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []*session.TranscriptionResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// ListBySession возвращает результаты одной сессии
func (s *Store) ListBySession(ctx context.Context, sessionID string) ([]*session.TranscriptionResult, error) {
	rows, err := s.db.QueryContext(ctx,
		selectColumns+" WHERE session_id = ? ORDER BY created_at DESC", sessionID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var results []*session.TranscriptionResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, rows.Err()
}

// Delete удаляет результат по ID
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM results WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

const selectColumns = `
	SELECT id, session_id, created_at, text, raw_text, language, model_tier,
	       enhanced, audio_enhanced, duration, no_speech, confidence, quality_score,
	       char_count, word_count, segments, warnings
	FROM results`

// rowScanner общий интерфейс *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanResult(row rowScanner) (*session.TranscriptionResult, error) {
	var (
		result        session.TranscriptionResult
		createdAt     string
		tier          string
		enhanced      int
		audioEnhanced int
		segmentsJSON  string
		warningsJSON  string
	)

	err := row.Scan(
		&result.ID, &result.SessionID, &createdAt, &result.Text, &result.RawText,
		&result.Language, &tier, &enhanced, &audioEnhanced,
		&result.Duration, &result.NoSpeechProb,
		&result.Confidence, &result.QualityScore,
		&result.CharCount, &result.WordCount, &segmentsJSON, &warningsJSON,
	)
	if err != nil {
		return nil, err
	}

	result.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	result.Tier = models.Tier(tier)
	result.Enhanced = enhanced != 0
	result.AudioEnhanced = audioEnhanced != 0

	var segments []ai.Segment
	if err := json.Unmarshal([]byte(segmentsJSON), &segments); err != nil {
		return nil, fmt.Errorf("unmarshal segments: %w", err)
	}
	result.Segments = segments

	var warnings []string
	if err := json.Unmarshal([]byte(warningsJSON), &warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	result.Warnings = warnings

	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
