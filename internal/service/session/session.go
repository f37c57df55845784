package session

import (
	"ChatImageStudio/internal/metrics"
	"ChatImageStudio/internal/service/image"
	"ChatImageStudio/internal/service/transcript"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session — состояние одного пользователя. Взаимодействие внутри сессии последовательное:
// обработчик держит Lock на время запроса к провайдеру.
type Session struct {
	ID         string
	Transcript *transcript.Transcript
	// Images — скачанные картинки последней генерации (вариант download)
	Images []image.Fetched

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// ResetTranscript начинает диалог заново с одним системным сообщением.
func (s *Session) ResetTranscript() { s.Transcript = transcript.New() }

// Store — потокобезопасное хранилище сессий в памяти. Между перезапусками ничего не сохраняется.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewStore(m *metrics.Metrics) *Store {
	return &Store{sessions: make(map[string]*Session), metrics: m, now: time.Now}
}

// GetOrCreate возвращает сессию по id либо создаёт новую с инициализированным диалогом.
func (st *Store) GetOrCreate(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if s, ok := st.sessions[id]; ok && id != "" {
		s.lastSeen = st.now()
		return s, false
	}
	s := &Session{
		ID:         uuid.NewString(),
		Transcript: transcript.New(),
		lastSeen:   st.now(),
	}
	st.sessions[s.ID] = s
	st.metrics.SetActiveSessions(len(st.sessions))
	return s, true
}

func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, ok := st.sessions[id]
	if ok {
		s.lastSeen = st.now()
	}
	return s, ok
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.metrics.SetActiveSessions(len(st.sessions))
	st.mu.Unlock()
}

func (st *Store) Len() int {
	st.mu.Lock()
	l := len(st.sessions)
	st.mu.Unlock()
	return l
}

// EvictIdle удаляет сессии, неактивные дольше ttl. Возвращает число удалённых.
func (st *Store) EvictIdle(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	deadline := st.now().Add(-ttl)
	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, s := range st.sessions {
		if s.lastSeen.Before(deadline) {
			delete(st.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		st.metrics.SetActiveSessions(len(st.sessions))
	}
	return removed
}
