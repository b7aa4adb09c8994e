package portal

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"
	"taeu.kr/portal/internal/api"
	"taeu.kr/portal/internal/auth"
	"taeu.kr/portal/internal/gateway"
	"taeu.kr/portal/internal/platform/web"
	"taeu.kr/portal/internal/router"
	"taeu.kr/portal/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	pageLogin    = "login"
	pageRegister = "register"
	pageHome     = "home"
	pageError    = "error"
)

type Handler struct {
	router    *router.Router
	apiConfig gateway.Config
	client    *http.Client
	pages     map[string]*template.Template
}

func NewHandler(r *router.Router, apiConfig gateway.Config) (*Handler, error) {
	if apiConfig.LoginRoute == "" {
		apiConfig.LoginRoute = router.RouteLogin
	}

	pages := make(map[string]*template.Template)
	for _, name := range []string{pageLogin, pageRegister, pageHome, pageError} {
		tmpl, err := template.New(name).Funcs(templateFuncs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = tmpl
	}

	return &Handler{
		router:    r,
		apiConfig: apiConfig,
		client:    gateway.NewHTTPClient(apiConfig.Timeout),
		pages:     pages,
	}, nil
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /login", h.page(h.handleLoginPage))
	mux.Handle("POST /login", h.page(h.handleLogin))
	mux.Handle("GET /register", h.page(h.handleRegisterPage))
	mux.Handle("POST /register", h.page(h.handleRegister))
	mux.Handle("GET /{$}", h.page(h.handleHome))
	mux.Handle("GET /", h.page(h.handleHome))

	mux.Handle("POST /logout", h.action(false, h.handleLogout))
	mux.Handle("POST /refresh", h.action(true, h.handleRefresh))
	mux.Handle("POST /profile", h.action(true, h.handleUpdateProfile))
	mux.Handle("POST /password", h.action(true, h.handleChangePassword))
}

// request는 요청 하나 동안 쓰는 세션, 게이트웨이, 서비스 묶음
type request struct {
	session *session.Session
	nav     *router.Redirector
	api     *api.Client
	auth    *auth.Service
	from    router.Location
	to      router.Location
	title   string
}

type pageFunc func(w http.ResponseWriter, r *http.Request, req *request) *web.Error

func (h *Handler) newRequest(r *http.Request) (*request, *web.Error) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		return nil, &web.Error{Code: http.StatusInternalServerError, Message: "Session unavailable"}
	}

	nav := router.NewRedirector(h.router)
	gw := gateway.New(h.apiConfig, sess.Credentials, nav, gateway.WithHTTPClient(h.client))
	client := api.NewClient(gw)

	return &request{
		session: sess,
		nav:     nav,
		api:     client,
		auth:    auth.NewService(client, sess.Credentials),
		from:    h.referrer(r),
	}, nil
}

// page는 라우터 가드를 거친 뒤 화면 핸들러를 실행한다
func (h *Handler) page(fn pageFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, webErr := h.newRequest(r)
		if webErr != nil {
			h.renderError(w, r, webErr)
			return
		}

		to, err := h.router.Resolve(r.URL.RequestURI())
		if err != nil {
			h.renderError(w, r, &web.Error{Code: http.StatusNotFound, Message: "Page not found", Err: err})
			return
		}

		decision, err := h.router.Guard(r.Context(), req.session.Credentials, req.from, to)
		if err != nil {
			h.renderError(w, r, &web.Error{Code: http.StatusInternalServerError, Message: "Failed to check session", Err: err})
			return
		}
		if decision.Outcome == router.Redirected {
			http.Redirect(w, r, decision.Target.FullPath(), redirectStatus(r))
			return
		}

		// catch-all 이나 끝 슬래시로 들어온 경우 주소를 정규화
		if to.Path != r.URL.Path {
			http.Redirect(w, r, to.FullPath(), redirectStatus(r))
			return
		}

		req.to = to
		req.title = h.router.Title(to)
		if webErr := fn(w, r, req); webErr != nil {
			h.fail(w, r, req, webErr)
			return
		}
		h.router.AfterEach(req.from, to)
	})
}

// action은 폼 전송 처리. 끝나면 홈으로 돌려보낸다 (PRG)
func (h *Handler) action(requireAuth bool, fn pageFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req, webErr := h.newRequest(r)
		if webErr != nil {
			h.renderError(w, r, webErr)
			return
		}

		if requireAuth {
			authed, err := req.session.Credentials.IsAuthenticated(r.Context())
			if err != nil {
				h.renderError(w, r, &web.Error{Code: http.StatusInternalServerError, Message: "Failed to check session", Err: err})
				return
			}
			if !authed {
				h.redirect(w, r, router.RouteLogin, url.Values{router.RedirectQueryKey: {"/"}})
				return
			}
		}

		if err := r.ParseForm(); err != nil {
			h.renderError(w, r, &web.Error{Code: http.StatusBadRequest, Message: "Invalid form", Err: err})
			return
		}

		home, _ := h.router.Target(router.RouteHome, nil)
		req.to = home
		req.title = h.router.Title(home)
		if webErr := fn(w, r, req); webErr != nil {
			h.fail(w, r, req, webErr)
		}
	})
}

// fail은 게이트웨이가 이동을 요청했으면 그쪽으로 보내고, 아니면 에러 화면
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, req *request, webErr *web.Error) {
	if target, ok := req.nav.Pending(); ok {
		log.Info().
			Str("path", r.URL.Path).
			Str("target", target).
			Msg("[Portal] following redirect requested during request")
		http.Redirect(w, r, target, http.StatusSeeOther)
		return
	}
	h.renderError(w, r, webErr)
}

func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, route string, params url.Values) {
	href, err := h.router.Href(route, params)
	if err != nil {
		h.renderError(w, r, &web.Error{Code: http.StatusInternalServerError, Message: "Unknown route", Err: err})
		return
	}
	http.Redirect(w, r, href, http.StatusSeeOther)
}

// referrer는 같은 호스트의 Referer 를 이전 위치로 본다. 없으면 시작 위치
func (h *Handler) referrer(r *http.Request) router.Location {
	ref, err := url.Parse(r.Referer())
	if err != nil || ref.Path == "" || (ref.Host != "" && ref.Host != r.Host) {
		return router.Location{}
	}
	loc, err := h.router.Resolve(ref.RequestURI())
	if err != nil {
		return router.Location{Path: ref.Path}
	}
	return loc
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data *pageData) {
	tmpl, ok := h.pages[name]
	if !ok {
		log.Error().Str("page", name).Msg("[Portal] unknown page template")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Error().Err(err).Str("page", name).Msg("[Portal] failed to render page")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debug().Err(err).Str("page", name).Msg("[Portal] failed to write page")
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, webErr *web.Error) {
	web.LogError(r, webErr)
	h.render(w, webErr.Code, pageError, &pageData{
		Title:   h.router.Title(router.Location{}),
		Status:  webErr.Code,
		Message: webErr.Message,
	})
}

func redirectStatus(r *http.Request) int {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return http.StatusFound
	}
	return http.StatusSeeOther
}
