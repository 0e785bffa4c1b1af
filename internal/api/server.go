// Package api предоставляет HTTP, WebSocket и gRPC интерфейсы демона
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"kikitori/internal/config"
	"kikitori/internal/export"
	"kikitori/internal/history"
	"kikitori/internal/service"
	"kikitori/models"
	"kikitori/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Максимальный размер загружаемого аудио
const maxUploadBytes = 256 << 20 // 256 MB

type Server struct {
	Config   *config.Config
	Sessions *session.Manager
	ModelMgr *models.Manager
	Service  *service.TranscriptionService
	History  *history.Store

	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

func NewServer(
	cfg *config.Config,
	sessions *session.Manager,
	modelMgr *models.Manager,
	svc *service.TranscriptionService,
	store *history.Store,
) *Server {
	s := &Server{
		Config:   cfg,
		Sessions: sessions,
		ModelMgr: modelMgr,
		Service:  svc,
		History:  store,
		clients:  make(map[*websocket.Conn]bool),
	}
	s.setupCallbacks()
	return s
}

// Start запускает HTTP и gRPC серверы. Блокируется до падения HTTP.
func (s *Server) Start() {
	go s.startGRPCServer()

	mux := s.Handler()
	log.Printf("Backend listening on :%s", s.Config.Server.Port)
	if err := http.ListenAndServe(":"+s.Config.Server.Port, mux); err != nil {
		log.Fatal("ListenAndServe:", err)
	}
}

// Handler возвращает HTTP роутер (отдельно от Start для тестов)
func (s *Server) Handler() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/transcribe", s.handleTranscribe)
	mux.HandleFunc("/api/models", s.handleModels)
	mux.HandleFunc("/api/models/", s.handleModelDownload)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionByID)
	mux.HandleFunc("/api/results/", s.handleResultExport)
	return mux
}

func (s *Server) setupCallbacks() {
	// Прогресс скачивания моделей
	s.ModelMgr.SetProgressCallback(func(tier models.Tier, progress float64, err error) {
		errStr := ""
		if err != nil {
			errStr = err.Error()
		}
		s.broadcast(Message{
			Type:     "model_progress",
			Tier:     string(tier),
			Progress: progress,
			Error:    errStr,
		})
	})

	// Этапы конвейера транскрипции
	s.Service.OnProgress = func(sessionID string, stage service.Stage) {
		s.broadcast(Message{
			Type:      "transcription_progress",
			SessionID: sessionID,
			Stage:     string(stage),
		})
	}
}

// broadcast рассылает сообщение всем подключённым WebSocket клиентам.
// Глобальный мьютекс сериализует записи: WriteJSON не потокобезопасен.
func (s *Server) broadcast(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.clients) == 0 {
		return
	}

	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Write error: %v", err)
			conn.Close()
			delete(s.clients, conn)
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("Upgrade:", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	send := func(msg Message) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("Write error: %v", err)
		}
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			log.Println("Read:", err)
			break
		}
		s.processMessage(r.Context(), send, msg)
	}
}

// processMessage обрабатывает сообщение WebSocket или gRPC стрима.
// Оба транспорта используют одну структуру Message и одну логику.
func (s *Server) processMessage(ctx context.Context, send func(Message), msg Message) {
	switch msg.Type {
	case "get_models":
		send(Message{Type: "models_list", Models: s.tierStates()})

	case "download_model":
		tier, err := models.ParseTier(msg.Tier)
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		go func() {
			if err := s.ModelMgr.EnsureTier(ctx, tier); err != nil {
				s.broadcast(Message{Type: "model_progress", Tier: string(tier), Error: err.Error()})
			}
		}()
		send(Message{Type: "download_started", Tier: msg.Tier})

	case "create_session":
		sess := s.Sessions.Create(msg.Language)
		send(Message{Type: "session_created", Session: sessionInfo(sess)})

	case "list_sessions":
		sessions := s.Sessions.List()
		infos := make([]*SessionInfo, len(sessions))
		for i, sess := range sessions {
			infos[i] = sessionInfo(sess)
		}
		send(Message{Type: "sessions_list", Sessions: infos})

	case "delete_session":
		if err := s.Sessions.Delete(msg.SessionID); err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		send(Message{Type: "session_deleted", SessionID: msg.SessionID})

	case "transcribe":
		data, err := base64.StdEncoding.DecodeString(msg.Audio)
		if err != nil {
			send(Message{Type: "error", Error: "invalid base64 audio payload"})
			return
		}
		result, err := s.transcribe(ctx, msg.SessionID, data, msg.Extension, msg.Tier, msg.Language, msg.WordTimestamps, session.SourceUploaded)
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		send(Message{Type: "transcription_result", Result: result})

	case "get_results":
		sess, err := s.Sessions.Get(msg.SessionID)
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		send(Message{Type: "results_list", SessionID: sess.ID, Results: sess.Results()})

	case "export":
		format, err := export.ParseFormat(msg.Format)
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		result, err := s.findResult(ctx, msg.ResultID)
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		rendered, err := export.Render(result, format)
		if err != nil {
			send(Message{Type: "error", Error: err.Error()})
			return
		}
		send(Message{Type: "export_result", ResultID: msg.ResultID, Format: msg.Format, Data: string(rendered)})

	default:
		send(Message{Type: "error", Error: fmt.Sprintf("unknown message type: %q", msg.Type)})
	}
}

// transcribe общий путь транскрипции для всех транспортов.
// Пустой sessionID создаёт одноразовую сессию.
func (s *Server) transcribe(ctx context.Context, sessionID string, data []byte, ext, tier, language string, wordTimestamps bool, source session.AssetSource) (*session.TranscriptionResult, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty audio payload")
	}

	if sessionID == "" {
		sessionID = s.Sessions.Create(language).ID
	}

	resolvedTier := s.Config.DefaultTier()
	if tier != "" {
		parsed, err := models.ParseTier(tier)
		if err != nil {
			return nil, err
		}
		resolvedTier = parsed
	}

	if language == "" {
		language = s.Config.Transcribe.Language
	}

	// Файлы модели должны быть на диске до загрузки движка
	if err := s.ModelMgr.EnsureTier(ctx, resolvedTier); err != nil {
		return nil, err
	}

	return s.Service.Transcribe(ctx, service.TranscribeRequest{
		SessionID:      sessionID,
		Asset:          session.NewAudioAsset(data, ext, source),
		Tier:           resolvedTier,
		Language:       language,
		WordTimestamps: wordTimestamps,
	})
}

// findResult ищет результат в живых сессиях, затем в истории
func (s *Server) findResult(ctx context.Context, resultID string) (*session.TranscriptionResult, error) {
	for _, sess := range s.Sessions.List() {
		if result, ok := sess.Result(resultID); ok {
			return result, nil
		}
	}
	if s.History != nil {
		return s.History.Get(ctx, resultID)
	}
	return nil, fmt.Errorf("result not found: %s", resultID)
}

func (s *Server) tierStates() []TierState {
	policy := s.Config.Policy()
	states := make([]TierState, 0, len(models.Registry))
	for _, info := range models.Registry {
		states = append(states, TierState{
			TierInfo:   info,
			Downloaded: s.ModelMgr.IsTierDownloaded(info.Tier),
			Allowed:    policy.Allowed(info.Tier),
		})
	}
	return states
}

// ===== HTTP handlers =====

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleTranscribe POST /api/transcribe
// Аудио передаётся multipart полем "audio" или сырым телом запроса.
func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var (
		data []byte
		ext  string
		err  error
	)

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		file, header, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("audio file is required: %w", err))
			return
		}
		defer file.Close()

		data, err = io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		ext = strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	} else {
		data, err = io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	query := r.URL.Query()
	if q := query.Get("ext"); q != "" {
		ext = q
	}

	result, err := s.transcribe(
		r.Context(),
		query.Get("session"),
		data,
		ext,
		query.Get("tier"),
		query.Get("language"),
		query.Get("word_timestamps") != "false",
		session.SourceUploaded,
	)
	if err != nil {
		writeError(w, transcribeErrorStatus(err), err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleModels GET /api/models
func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.tierStates())
}

// handleModelDownload POST /api/models/{tier}/download
func (s *Server) handleModelDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/models/")
	tierName := strings.TrimSuffix(path, "/download")
	tier, err := models.ParseTier(tierName)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	go func() {
		if err := s.ModelMgr.EnsureTier(context.Background(), tier); err != nil {
			log.Printf("Model download failed: %v", err)
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"tier": string(tier), "status": "downloading"})
}

// handleSessions GET|POST /api/sessions
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		sessions := s.Sessions.List()
		infos := make([]*SessionInfo, len(sessions))
		for i, sess := range sessions {
			infos[i] = sessionInfo(sess)
		}
		writeJSON(w, http.StatusOK, infos)

	case http.MethodPost:
		var req struct {
			Language string `json:"language"`
		}
		if r.Body != nil {
			// Тело опционально, ошибки разбора игнорируем
			_ = json.NewDecoder(r.Body).Decode(&req)
		}
		sess := s.Sessions.Create(req.Language)
		writeJSON(w, http.StatusCreated, sessionInfo(sess))

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleSessionByID GET|DELETE /api/sessions/{id}
func (s *Server) handleSessionByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		sess, err := s.Sessions.Get(id)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"session": sessionInfo(sess),
			"results": sess.Results(),
		})

	case http.MethodDelete:
		if err := s.Sessions.Delete(id); err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleResultExport GET /api/results/{id}/export?format=txt|json|report
func (s *Server) handleResultExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/results/")
	resultID := strings.TrimSuffix(path, "/export")
	if resultID == "" || !strings.HasSuffix(path, "/export") {
		http.NotFound(w, r)
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.findResult(r.Context(), resultID)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}

	rendered, err := export.Render(result, format)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	switch format {
	case export.FormatJSON:
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	w.Write(rendered)
}
