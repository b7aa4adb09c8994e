// Package apitest는 테스트용 원격 인증 API 서버
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"taeu.kr/portal/internal/api"
)

const (
	BasePath = "/api"
	secret   = "apitest-secret"
)

type account struct {
	user     api.User
	password string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	accounts map[string]*account
	access   map[string]string
	refresh  map[string]string
	nextID   int64
	calls    map[string]int
	failures map[string]int
	// IssueRefresh가 false 면 로그인 응답에 refresh 를 싣지 않는다
	IssueRefresh bool
	// RegisterIssuesTokens가 true 면 회원가입 응답에 토큰을 싣는다
	RegisterIssuesTokens bool
}

func NewServer() *Server {
	s := &Server{
		accounts:     map[string]*account{},
		access:       map[string]string{},
		refresh:      map[string]string{},
		calls:        map[string]int{},
		failures:     map[string]int{},
		IssueRefresh: true,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+BasePath+"/token/{$}", s.handleToken)
	mux.HandleFunc("POST "+BasePath+"/token/refresh/{$}", s.handleRefresh)
	mux.HandleFunc("POST "+BasePath+"/register/{$}", s.handleRegister)
	mux.HandleFunc("GET "+BasePath+"/profile/{$}", s.handleProfile)
	mux.HandleFunc("PUT "+BasePath+"/profile/{$}", s.handleUpdateProfile)
	mux.HandleFunc("POST "+BasePath+"/change-password/{$}", s.handleChangePassword)
	mux.HandleFunc("POST "+BasePath+"/logout/{$}", s.handleLogout)
	mux.HandleFunc("GET "+BasePath+"/health/{$}", s.handleHealth)

	s.Server = httptest.NewServer(s.record(mux))
	return s
}

// BaseURL은 gateway.Config.BaseURL 로 쓸 주소
func (s *Server) BaseURL() string {
	return s.URL + BasePath
}

func (s *Server) AddUser(username, password string) api.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, username+"@example.com", password, "", "")
}

// ExpireAccessTokens는 발급된 access token 을 모두 무효화한다
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = map[string]string{}
}

// FailNext는 path 에 대한 다음 요청 하나를 status 로 실패시킨다
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// Calls는 "METHOD /path" 별 호출 횟수
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+BasePath+path]
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.Method+" "+r.URL.Path]++
		status, fail := s.failures[strings.TrimPrefix(r.URL.Path, BasePath)]
		if fail {
			delete(s.failures, strings.TrimPrefix(r.URL.Path, BasePath))
		}
		s.mu.Unlock()

		if fail {
			writeJSON(w, status, map[string]string{"detail": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) addUserLocked(username, email, password, first, last string) api.User {
	s.nextID++
	now := time.Now().UTC().Truncate(time.Second)
	user := api.User{
		ID:        s.nextID,
		Username:  username,
		Email:     email,
		FirstName: first,
		LastName:  last,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.accounts[username] = &account{user: user, password: password}
	return user
}

func (s *Server) issueLocked(username, tokenType string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"token_type": tokenType,
		"username":   username,
		"user_id":    s.accounts[username].user.ID,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	if tokenType == "access" {
		s.access[signed] = username
	} else {
		s.refresh[signed] = username
	}
	return signed
}

func (s *Server) authenticate(r *http.Request) (*account, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.access[token]
	if !ok {
		return nil, false
	}
	acc, ok := s.accounts[username]
	return acc, ok
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[req.Username]
	if !ok || acc.password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}

	pair := api.TokenPair{Access: s.issueLocked(req.Username, "access", 5*time.Minute)}
	if s.IssueRefresh {
		pair.Refresh = s.issueLocked(req.Username, "refresh", 24*time.Hour)
	}
	writeJSON(w, http.StatusOK, pair)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Refresh == "" {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"refresh": {"This field is required."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.refresh[req.Refresh]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired", "code": "token_not_valid"})
		return
	}
	writeJSON(w, http.StatusOK, api.TokenPair{Access: s.issueLocked(username, "access", 5*time.Minute)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fields := map[string][]string{}
	if req.Username == "" {
		fields["username"] = append(fields["username"], "This field is required.")
	} else if _, exists := s.accounts[req.Username]; exists {
		fields["username"] = append(fields["username"], "A user with that username already exists.")
	}
	if req.Email == "" {
		fields["email"] = append(fields["email"], "This field is required.")
	}
	if len(req.Password) < 6 {
		fields["password"] = append(fields["password"], "This password is too short.")
	} else if req.Password != req.Password2 {
		fields["password"] = append(fields["password"], "Password fields didn't match.")
	}
	if len(fields) > 0 {
		writeJSON(w, http.StatusBadRequest, fields)
		return
	}

	user := s.addUserLocked(req.Username, req.Email, req.Password, req.FirstName, req.LastName)
	resp := api.RegisterResponse{Message: "registered", User: user}
	if s.RegisterIssuesTokens {
		resp.Access = s.issueLocked(req.Username, "access", 5*time.Minute)
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.authenticate(r)
	if !ok {
		writeTokenInvalid(w)
		return
	}
	s.mu.Lock()
	user := acc.user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.authenticate(r)
	if !ok {
		writeTokenInvalid(w)
		return
	}

	var req api.UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}

	s.mu.Lock()
	if req.Email != nil {
		acc.user.Email = *req.Email
	}
	if req.FirstName != nil {
		acc.user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		acc.user.LastName = *req.LastName
	}
	acc.user.UpdatedAt = time.Now().UTC().Truncate(time.Second)
	user := acc.user
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, api.ProfileUpdateResponse{Message: "updated", User: user})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	acc, ok := s.authenticate(r)
	if !ok {
		writeTokenInvalid(w)
		return
	}

	var req api.ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.password != req.OldPassword {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"old_password": {"Old password is incorrect."}})
		return
	}
	if req.NewPassword != req.NewPassword2 {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"new_password": {"Password fields didn't match."}})
		return
	}
	acc.password = req.NewPassword
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "password changed"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(r); !ok {
		writeTokenInvalid(w)
		return
	}
	writeJSON(w, http.StatusOK, api.MessageResponse{Message: "logged out"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthStatus{
		Status:  "healthy",
		Service: "authentication-api",
		Version: "1.0.0",
	})
}

func writeTokenInvalid(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, map[string]string{
		"detail": "Given token not valid for any token type",
		"code":   "token_not_valid",
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
