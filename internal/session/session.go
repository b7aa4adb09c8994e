package session

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"taeu.kr/portal/internal/credential"
	"taeu.kr/portal/internal/storage/store"
)

const CookieName = "portal_session"

// Session은 브라우저 하나. ID 가 local_storage 의 scope 가 된다
type Session struct {
	ID          string
	Credentials *credential.Store
}

type sessionContextKey struct{}

func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionContextKey{}).(*Session)
	return s, ok
}

type Manager struct {
	store  *store.Store
	ttl    time.Duration
	secure bool
}

func NewManager(st *store.Store, ttl time.Duration, secure bool) *Manager {
	return &Manager{
		store:  st,
		ttl:    ttl,
		secure: secure,
	}
}

// Middleware는 세션 쿠키를 확인하고 없거나 잘못됐으면 새로 발급한다
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := sessionID(r)
		if !ok {
			id = uuid.NewString()
			http.SetCookie(w, m.cookie(r, id))
			log.Debug().Str("session_id", id).Msg("[Session] issued new session")
		}

		sess := &Session{
			ID:          id,
			Credentials: credential.NewStore(m.store.Scope(id)),
		}
		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
	})
}

// RunPurge는 ctx 가 끝날 때까지 interval 마다 ttl 보다 오래된 세션을 지운다
func (m *Manager) RunPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Purge(ctx, now)
		}
	}
}

func (m *Manager) Purge(ctx context.Context, now time.Time) {
	purged, err := m.store.Purge(ctx, now.Add(-m.ttl))
	if err != nil {
		log.Error().Err(err).Msg("[Session] failed to purge expired sessions")
		return
	}
	if purged > 0 {
		log.Info().Int64("rows", purged).Msg("[Session] purged expired sessions")
	}
}

func (m *Manager) cookie(r *http.Request, id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl / time.Second),
	}
}

func sessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return "", false
	}
	return id.String(), true
}
