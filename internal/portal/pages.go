package portal

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"taeu.kr/portal/internal/api"
	"taeu.kr/portal/internal/auth"
	"taeu.kr/portal/internal/gateway"
	"taeu.kr/portal/internal/platform/web"
	"taeu.kr/portal/internal/router"
)

const noticeQueryKey = "notice"

var notices = map[string]string{
	"registered":       "Registration successful, please log in.",
	"logged_out":       "You have been logged out.",
	"refreshed":        "Session refreshed.",
	"profile_updated":  "Profile updated.",
	"password_changed": "Password changed.",
}

var templateFuncs = template.FuncMap{
	"datetime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04:05")
	},
	"expired": func(info *auth.TokenInfo) bool {
		return info != nil && info.Expired(time.Now())
	},
}

type pageData struct {
	Title    string
	Errors   []string
	Notice   string
	Redirect string
	Form     map[string]string

	User   *api.User
	Token  *auth.TokenInfo
	Health *api.HealthStatus

	Status  int
	Message string
}

func (h *Handler) data(r *http.Request, req *request) *pageData {
	return &pageData{
		Title:  req.title,
		Notice: notices[r.URL.Query().Get(noticeQueryKey)],
		Form:   map[string]string{},
	}
}

func (h *Handler) handleLoginPage(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	data := h.data(r, req)
	data.Redirect = req.to.Query.Get(router.RedirectQueryKey)
	h.render(w, http.StatusOK, pageLogin, data)
	return nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	if err := r.ParseForm(); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid form", Err: err}
	}

	username := strings.TrimSpace(r.PostFormValue("username"))
	password := r.PostFormValue("password")

	data := h.data(r, req)
	data.Redirect = r.PostFormValue(router.RedirectQueryKey)
	data.Form["username"] = username

	if username == "" || password == "" {
		data.Errors = []string{"Please enter username and password."}
		h.render(w, http.StatusBadRequest, pageLogin, data)
		return nil
	}

	// 로그인 실패 401 은 게이트웨이가 로그인 화면 이동을 요청하지만 이미 로그인 화면이므로 직접 그린다
	if _, err := req.auth.Login(r.Context(), username, password); err != nil {
		log.Warn().Err(err).Str("username", username).Msg("[Portal] login failed")
		data.Errors = errorMessages(err)
		h.render(w, formErrorStatus(err), pageLogin, data)
		return nil
	}

	http.Redirect(w, r, h.router.SafeRedirect(data.Redirect), http.StatusSeeOther)
	return nil
}

func (h *Handler) handleRegisterPage(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	h.render(w, http.StatusOK, pageRegister, h.data(r, req))
	return nil
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	if err := r.ParseForm(); err != nil {
		return &web.Error{Code: http.StatusBadRequest, Message: "Invalid form", Err: err}
	}

	form := api.RegisterRequest{
		Username:  strings.TrimSpace(r.PostFormValue("username")),
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		FirstName: strings.TrimSpace(r.PostFormValue("first_name")),
		LastName:  strings.TrimSpace(r.PostFormValue("last_name")),
		Password:  r.PostFormValue("password"),
		Password2: r.PostFormValue("password2"),
	}

	data := h.data(r, req)
	data.Form["username"] = form.Username
	data.Form["email"] = form.Email
	data.Form["first_name"] = form.FirstName
	data.Form["last_name"] = form.LastName

	resp, err := req.auth.Register(r.Context(), form)
	if err != nil {
		log.Warn().Err(err).Str("username", form.Username).Msg("[Portal] registration failed")
		data.Errors = errorMessages(err)
		h.render(w, formErrorStatus(err), pageRegister, data)
		return nil
	}

	if resp.Access != "" {
		h.redirect(w, r, router.RouteHome, nil)
		return nil
	}
	h.redirect(w, r, router.RouteLogin, url.Values{noticeQueryKey: {"registered"}})
	return nil
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	return h.renderHome(w, r, req, http.StatusOK, h.data(r, req))
}

func (h *Handler) renderHome(w http.ResponseWriter, r *http.Request, req *request, status int, data *pageData) *web.Error {
	ctx := r.Context()

	user, err := req.auth.CurrentUser(ctx)
	if err != nil {
		return apiError(err, "Failed to load profile")
	}
	data.User = user

	if info, err := req.auth.TokenInfo(ctx); err == nil {
		data.Token = info
	} else {
		log.Debug().Err(err).Msg("[Portal] access token is not a readable JWT")
	}

	if health, err := req.api.Health(ctx); err == nil {
		data.Health = health
	} else {
		log.Warn().Err(err).Msg("[Portal] API health check failed")
	}

	h.render(w, status, pageHome, data)
	return nil
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	if err := req.auth.Logout(r.Context()); err != nil {
		return &web.Error{Code: http.StatusInternalServerError, Message: "Failed to log out", Err: err}
	}
	h.redirect(w, r, router.RouteLogin, url.Values{noticeQueryKey: {"logged_out"}})
	return nil
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	if _, err := req.auth.Refresh(r.Context()); err != nil {
		if gateway.IsUnauthorized(err) {
			return apiError(err, "Failed to refresh session")
		}
		data := h.data(r, req)
		data.Errors = errorMessages(err)
		return h.renderHome(w, r, req, formErrorStatus(err), data)
	}
	h.redirect(w, r, router.RouteHome, url.Values{noticeQueryKey: {"refreshed"}})
	return nil
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	email := strings.TrimSpace(r.PostFormValue("email"))
	firstName := strings.TrimSpace(r.PostFormValue("first_name"))
	lastName := strings.TrimSpace(r.PostFormValue("last_name"))

	if _, err := req.auth.UpdateProfile(r.Context(), api.UpdateProfileRequest{
		Email:     &email,
		FirstName: &firstName,
		LastName:  &lastName,
	}); err != nil {
		if gateway.IsUnauthorized(err) {
			return apiError(err, "Failed to update profile")
		}
		data := h.data(r, req)
		data.Errors = errorMessages(err)
		return h.renderHome(w, r, req, formErrorStatus(err), data)
	}
	h.redirect(w, r, router.RouteHome, url.Values{noticeQueryKey: {"profile_updated"}})
	return nil
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request, req *request) *web.Error {
	if err := req.auth.ChangePassword(r.Context(), api.ChangePasswordRequest{
		OldPassword:  r.PostFormValue("old_password"),
		NewPassword:  r.PostFormValue("new_password"),
		NewPassword2: r.PostFormValue("new_password2"),
	}); err != nil {
		if gateway.IsUnauthorized(err) {
			return apiError(err, "Failed to change password")
		}
		data := h.data(r, req)
		data.Errors = errorMessages(err)
		return h.renderHome(w, r, req, formErrorStatus(err), data)
	}
	h.redirect(w, r, router.RouteHome, url.Values{noticeQueryKey: {"password_changed"}})
	return nil
}

// errorMessages는 화면에 보여줄 오류 문구
func errorMessages(err error) []string {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return []string{"Invalid username or password."}
	case errors.Is(err, auth.ErrNoRefreshToken):
		return []string{"No refresh token stored, please log in again."}
	case errors.Is(err, gateway.ErrNetwork):
		return []string{"Network error, please check your connection."}
	}

	if se, ok := gateway.AsStatusError(err); ok {
		if fields := se.FieldMessages(); len(fields) > 0 {
			return fields
		}
		return []string{se.Message}
	}
	return []string{"Something went wrong, please try again."}
}

func formErrorStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNoRefreshToken):
		return http.StatusBadRequest
	case errors.Is(err, gateway.ErrNetwork):
		return http.StatusBadGateway
	}
	if se, ok := gateway.AsStatusError(err); ok && se.StatusCode < http.StatusInternalServerError {
		return se.StatusCode
	}
	return http.StatusBadGateway
}

// apiError는 API 호출 실패를 화면 에러로 바꾼다
func apiError(err error, message string) *web.Error {
	if errors.Is(err, gateway.ErrNetwork) {
		return &web.Error{Code: http.StatusBadGateway, Message: "Cannot reach the API server", Err: err}
	}
	if se, ok := gateway.AsStatusError(err); ok {
		code := se.StatusCode
		if code >= http.StatusInternalServerError {
			code = http.StatusBadGateway
		}
		return &web.Error{Code: code, Message: message, Err: err}
	}
	return &web.Error{Code: http.StatusInternalServerError, Message: message, Err: err}
}
