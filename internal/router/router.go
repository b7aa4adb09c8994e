package router

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

const maxRedirects = 8

var (
	ErrNoRoute       = errors.New("no matching route")
	ErrRedirectLoop  = errors.New("route redirect loop")
	ErrUnknownTarget = errors.New("unknown route")
)

// Authenticator는 가드가 인증 여부를 묻는 대상 (credential.Store)
type Authenticator interface {
	IsAuthenticated(ctx context.Context) (bool, error)
}

type Outcome int

const (
	Allowed Outcome = iota
	Redirected
)

func (o Outcome) String() string {
	if o == Redirected {
		return "redirected"
	}
	return "allowed"
}

// Decision은 가드 판정 결과. Redirected 일 때 Target 으로 보낸다
type Decision struct {
	Outcome Outcome
	Target  Location
}

type Router struct {
	routes   []Route
	byName   map[string]Route
	appTitle string
}

func New(appTitle string, routes []Route) *Router {
	r := &Router{
		routes:   routes,
		byName:   map[string]Route{},
		appTitle: strings.TrimSpace(appTitle),
	}
	for _, route := range routes {
		if route.Name != "" {
			r.byName[route.Name] = route
		}
	}
	return r
}

func (r *Router) Routes() []Route {
	return r.routes
}

// Resolve는 rawURL 을 라우트로 해석한다. Redirect 라우트는 따라간다
func (r *Router) Resolve(rawURL string) (Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, fmt.Errorf("parse %q: %w", rawURL, err)
	}

	path := normalizePath(u.Path)
	query := u.Query()
	for i := 0; i < maxRedirects; i++ {
		route, ok := r.match(path)
		if !ok {
			return Location{}, fmt.Errorf("%w: %s", ErrNoRoute, path)
		}
		if route.Redirect == "" {
			return r.location(route, path, query), nil
		}

		target, err := url.Parse(route.Redirect)
		if err != nil {
			return Location{}, fmt.Errorf("parse redirect %q: %w", route.Redirect, err)
		}
		path = normalizePath(target.Path)
		query = target.Query()
	}
	return Location{}, fmt.Errorf("%w: %s", ErrRedirectLoop, rawURL)
}

// Href는 라우트 이름 또는 경로로 이동 URL 을 만든다
func (r *Router) Href(route string, params url.Values) (string, error) {
	loc, err := r.Target(route, params)
	if err != nil {
		return "", err
	}
	return loc.FullPath(), nil
}

// Target은 라우트 이름 또는 경로를 Location 으로 만든다
func (r *Router) Target(route string, params url.Values) (Location, error) {
	if named, ok := r.byName[route]; ok {
		return r.location(named, named.Path, params), nil
	}
	if strings.HasPrefix(route, "/") {
		loc, err := r.Resolve(route)
		if err != nil {
			return Location{}, err
		}
		if len(params) > 0 {
			loc.Query = mergeQuery(loc.Query, params)
		}
		return loc, nil
	}
	return Location{}, fmt.Errorf("%w: %s", ErrUnknownTarget, route)
}

// Guard는 from 에서 to 로의 이동을 판정한다.
//  1. 인증이 필요한데 로그인 안 됨 → 로그인 (redirect 쿼리에 원래 경로)
//  2. 로그인/회원가입인데 이미 로그인 → 홈
//  3. 그 외 허용
func (r *Router) Guard(ctx context.Context, auth Authenticator, from, to Location) (Decision, error) {
	authenticated, err := auth.IsAuthenticated(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("check authentication: %w", err)
	}

	if to.Meta.RequiresAuth && !authenticated {
		log.Info().Str("from", from.Path).Str("to", to.FullPath()).Msg("[Router] login required, redirecting to login")
		target, err := r.Target(RouteLogin, url.Values{RedirectQueryKey: {to.FullPath()}})
		if err != nil {
			return Decision{}, err
		}
		return Decision{Outcome: Redirected, Target: target}, nil
	}

	if (to.Name == RouteLogin || to.Name == RouteRegister) && authenticated {
		log.Info().Str("from", from.Path).Str("to", to.FullPath()).Msg("[Router] already logged in, redirecting to home")
		target, err := r.Target(RouteHome, nil)
		if err != nil {
			return Decision{}, err
		}
		return Decision{Outcome: Redirected, Target: target}, nil
	}

	return Decision{Outcome: Allowed, Target: to}, nil
}

// Title은 페이지 제목. 라우트 제목이 없으면 앱 제목만 쓴다
func (r *Router) Title(to Location) string {
	if to.Meta.Title == "" {
		return r.appTitle
	}
	if r.appTitle == "" {
		return to.Meta.Title
	}
	return to.Meta.Title + " - " + r.appTitle
}

// AfterEach는 이동이 끝난 뒤 남기는 추적 로그
func (r *Router) AfterEach(from, to Location) {
	log.Info().Str("from", from.Path).Str("to", to.Path).Msgf("[Router] navigated: %s -> %s", from.Path, to.Path)
}

// SafeRedirect는 로그인 후 돌아갈 경로를 고른다. 외부 URL 은 무시하고 홈으로 보낸다
func (r *Router) SafeRedirect(raw string) string {
	home, _ := r.Href(RouteHome, nil)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return home
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return home
	}
	loc, err := r.Resolve(raw)
	if err != nil {
		return home
	}
	if loc.Name == RouteLogin || loc.Name == RouteRegister {
		return home
	}
	return loc.FullPath()
}

func (r *Router) match(path string) (Route, bool) {
	var wildcard *Route
	for i := range r.routes {
		route := r.routes[i]
		if route.Path == "*" {
			if wildcard == nil {
				wildcard = &r.routes[i]
			}
			continue
		}
		if normalizePath(route.Path) == path {
			return route, true
		}
	}
	if wildcard != nil {
		return *wildcard, true
	}
	return Route{}, false
}

func (r *Router) location(route Route, path string, query url.Values) Location {
	if route.Path != "*" {
		path = normalizePath(route.Path)
	}
	if len(query) == 0 {
		query = nil
	}
	return Location{
		Name:  route.Name,
		Path:  path,
		Query: query,
		Meta:  route.Meta,
	}
}

func mergeQuery(base, extra url.Values) url.Values {
	merged := url.Values{}
	for key, values := range base {
		merged[key] = append([]string(nil), values...)
	}
	for key, values := range extra {
		merged[key] = append([]string(nil), values...)
	}
	return merged
}
