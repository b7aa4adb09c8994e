package status

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"taeu.kr/portal/internal/api"
	"taeu.kr/portal/internal/platform/web"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
	statusDegraded  = "degraded"

	checkTimeout = 3 * time.Second
)

type ComponentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

type StatusResponse struct {
	Status     string                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
	Port       string                     `json:"port"`
}

type Handler struct {
	db       *sql.DB
	upstream *api.Client
	port     string
}

// upstream은 토큰 없이 호출하는 API 클라이언트
func NewHandler(db *sql.DB, upstream *api.Client, port string) *Handler {
	return &Handler{
		db:       db,
		upstream: upstream,
		port:     port,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /healthz", web.Handler(h.handleStatus))
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) *web.Error {
	if r.Method != http.MethodGet {
		return &web.Error{
			Code:    http.StatusMethodNotAllowed,
			Message: "Method not allowed",
		}
	}

	components := map[string]ComponentStatus{
		"database": h.checkDatabase(r.Context()),
		"api":      h.checkAPI(r.Context()),
	}

	resp := StatusResponse{
		Status:     statusHealthy,
		Components: components,
		Port:       h.port,
	}
	code := http.StatusOK
	for _, c := range components {
		if c.Status != statusHealthy {
			resp.Status = statusDegraded
			code = http.StatusServiceUnavailable
		}
	}

	web.WriteJSON(w, code, resp)
	return nil
}

func (h *Handler) checkDatabase(ctx context.Context) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return ComponentStatus{
			Status:  statusUnhealthy,
			Message: "DB 연결 실패",
		}
	}

	return ComponentStatus{
		Status:  statusHealthy,
		Message: "정상",
	}
}

func (h *Handler) checkAPI(ctx context.Context) ComponentStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	health, err := h.upstream.Health(ctx)
	if err != nil {
		return ComponentStatus{
			Status:  statusUnhealthy,
			Message: "API 서버 응답 없음",
		}
	}

	status := statusHealthy
	if health.Status != statusHealthy {
		status = statusUnhealthy
	}
	return ComponentStatus{
		Status:  status,
		Message: health.Service,
		Version: health.Version,
	}
}
