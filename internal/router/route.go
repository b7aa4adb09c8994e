package router

import (
	"net/url"
	"strings"
)

const (
	RouteLogin    = "Login"
	RouteRegister = "Register"
	RouteHome     = "Home"

	RedirectQueryKey = "redirect"
)

type Meta struct {
	Title        string
	RequiresAuth bool
}

// Route는 경로 하나. Path 가 "*" 이면 나머지 모든 경로에 매칭된다
type Route struct {
	Name     string
	Path     string
	Meta     Meta
	Redirect string
}

// Location은 해석된 이동 대상
type Location struct {
	Name  string
	Path  string
	Query url.Values
	Meta  Meta
}

// FullPath는 쿼리를 포함한 경로
func (l Location) FullPath() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

// DefaultRoutes는 로그인, 회원가입, 홈, 그리고 나머지를 홈으로 보내는 catch-all
func DefaultRoutes() []Route {
	return []Route{
		{Name: RouteLogin, Path: "/login", Meta: Meta{Title: "Login"}},
		{Name: RouteRegister, Path: "/register", Meta: Meta{Title: "Register"}},
		{Name: RouteHome, Path: "/", Meta: Meta{Title: "Home", RequiresAuth: true}},
		{Path: "*", Redirect: "/"},
	}
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}
