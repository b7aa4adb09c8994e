package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	DefaultBaseURL    = "/api"
	DefaultTimeout    = 10 * time.Second
	DefaultLoginRoute = "/login"

	maxResponseBytes = 1 << 20
)

// Navigator는 게이트웨이가 화면 이동을 요청할 때 쓰는 최소 인터페이스
type Navigator interface {
	RedirectTo(route string, params url.Values)
}

// Credentials는 게이트웨이가 필요로 하는 credential.Store 의 일부
type Credentials interface {
	AccessToken(ctx context.Context) (string, error)
	RemoveTokens(ctx context.Context) error
	RemoveTokensIfCurrent(ctx context.Context, access string) (bool, error)
}

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	LoginRoute string
}

type Option func(*Gateway)

// WithHTTPClient는 요청마다 게이트웨이를 만들 때 커넥션 풀을 공유하기 위해 쓴다
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		if client != nil {
			g.client = client
		}
	}
}

// Gateway는 원격 API 호출을 감싼다: Bearer 토큰 첨부, 응답 본문 추출, 401 처리.
// 재시도와 토큰 자동 갱신은 하지 않는다.
type Gateway struct {
	baseURL    string
	loginRoute string
	client     *http.Client
	creds      Credentials
	nav        Navigator
}

func New(cfg Config, creds Credentials, nav Navigator, opts ...Option) *Gateway {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	loginRoute := strings.TrimSpace(cfg.LoginRoute)
	if loginRoute == "" {
		loginRoute = DefaultLoginRoute
	}

	if nav == nil {
		nav = nopNavigator{}
	}

	g := &Gateway{
		baseURL:    baseURL,
		loginRoute: loginRoute,
		client:     NewHTTPClient(cfg.Timeout),
		creds:      creds,
		nav:        nav,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewHTTPClient는 고정 타임아웃을 가진 클라이언트를 만든다
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (g *Gateway) Get(ctx context.Context, path string, out any) error {
	return g.Do(ctx, http.MethodGet, path, nil, out)
}

func (g *Gateway) Post(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPost, path, body, out)
}

func (g *Gateway) Put(ctx context.Context, path string, body, out any) error {
	return g.Do(ctx, http.MethodPut, path, body, out)
}

// Do는 요청을 보내고 성공 시 응답 본문을 out 에 디코딩한다.
// 실패 시 *StatusError, *NetworkError, *RequestError 중 하나를 돌려준다.
func (g *Gateway) Do(ctx context.Context, method, path string, body, out any) error {
	token, err := g.creds.AccessToken(ctx)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("[Gateway] failed to read access token")
		return &RequestError{Err: err}
	}

	req, err := g.newRequest(ctx, method, path, body, token)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("[Gateway] request configuration error")
		return &RequestError{Err: err}
	}

	resp, err := g.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("[Gateway] network error, check the connection")
		return &NetworkError{Method: method, Path: path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error().Err(err).Str("method", method).Str("path", path).Msg("[Gateway] failed to read response")
		return &NetworkError{Method: method, Path: path, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return g.handleStatus(ctx, method, path, token, resp.StatusCode, data)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (g *Gateway) newRequest(ctx context.Context, method, path string, body any, token string) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.url(path), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (g *Gateway) url(path string) string {
	return g.baseURL + "/" + strings.TrimLeft(path, "/")
}

func (g *Gateway) handleStatus(ctx context.Context, method, path, token string, status int, body []byte) error {
	statusErr := newStatusError(method, path, status, body)

	event := log.Warn()
	if statusErr.Kind == KindServerError {
		event = log.Error()
	}
	event = event.Str("method", method).Str("path", path).Int("status", status)

	switch statusErr.Kind {
	case KindUnauthorized:
		event.Msg("[Gateway] unauthorized, login required")
		g.handleUnauthorized(ctx, token)
	case KindForbidden:
		event.Msg("[Gateway] access forbidden")
	case KindNotFound:
		event.Msg("[Gateway] requested resource does not exist")
	case KindServerError:
		event.Msg("[Gateway] server error")
	default:
		event.Msgf("[Gateway] request failed: %s", statusErr.Message)
	}

	return statusErr
}

// handleUnauthorized는 자격 증명을 지우고 로그인 화면으로 보낸다.
// 토큰을 실어 보낸 요청은 그 토큰이 아직 저장돼 있을 때만 처리하므로
// 같은 토큰으로 동시에 실패한 요청들은 한 번만 지우고 한 번만 이동한다.
func (g *Gateway) handleUnauthorized(ctx context.Context, token string) {
	if token != "" {
		removed, err := g.creds.RemoveTokensIfCurrent(ctx, token)
		if err == nil && !removed {
			log.Debug().Msg("[Gateway] credentials already cleared or replaced, skipping redirect")
			return
		}
		if err == nil {
			g.nav.RedirectTo(g.loginRoute, nil)
			return
		}
		log.Error().Err(err).Msg("[Gateway] conditional credential wipe failed, clearing unconditionally")
	}

	if err := g.creds.RemoveTokens(ctx); err != nil {
		log.Error().Err(err).Msg("[Gateway] failed to clear credentials")
	}
	g.nav.RedirectTo(g.loginRoute, nil)
}

type nopNavigator struct{}

func (nopNavigator) RedirectTo(route string, _ url.Values) {
	log.Debug().Str("route", route).Msg("[Gateway] no navigator configured, redirect dropped")
}
