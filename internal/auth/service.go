package auth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"taeu.kr/portal/internal/api"
	"taeu.kr/portal/internal/credential"
	"taeu.kr/portal/internal/gateway"
)

// Service는 로그인/가입/갱신/로그아웃 흐름을 API 와 credential.Store 사이에서 조율한다
type Service struct {
	client *api.Client
	creds  *credential.Store
}

func NewService(client *api.Client, creds *credential.Store) *Service {
	return &Service{
		client: client,
		creds:  creds,
	}
}

// Login은 토큰을 저장하고 프로필을 캐시한다. 프로필 조회 실패는 로그인 실패가 아니다
func (s *Service) Login(ctx context.Context, username, password string) (*api.User, error) {
	pair, err := s.client.Login(ctx, api.LoginRequest{Username: username, Password: password})
	if err != nil {
		if gateway.IsUnauthorized(err) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
		}
		return nil, err
	}
	if pair.Access == "" {
		return nil, ErrMissingAccessToken
	}

	if err := s.creds.SetTokens(ctx, pair.Access, pair.Refresh); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	if info, err := PeekClaims(pair.Access); err == nil {
		log.Info().Str("username", username).Time("expires_at", info.ExpiresAt).Msg("[Auth] logged in")
	} else {
		log.Info().Str("username", username).Msg("[Auth] logged in")
	}

	user, err := s.client.Profile(ctx)
	if err != nil {
		log.Warn().Err(err).Str("username", username).Msg("[Auth] failed to fetch profile after login")
		return nil, nil
	}
	if err := s.creds.SetUserInfo(ctx, user); err != nil {
		log.Warn().Err(err).Msg("[Auth] failed to cache user info")
	}
	return user, nil
}

// Register는 계정을 만든다. 응답에 토큰이 있으면 바로 로그인 상태가 된다
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	resp, err := s.client.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	if resp.Access == "" {
		log.Info().Str("username", resp.User.Username).Msg("[Auth] registered")
		return resp, nil
	}

	if err := s.creds.SetTokens(ctx, resp.Access, resp.Refresh); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	if err := s.creds.SetUserInfo(ctx, resp.User); err != nil {
		log.Warn().Err(err).Msg("[Auth] failed to cache user info")
	}
	log.Info().Str("username", resp.User.Username).Msg("[Auth] registered and logged in")
	return resp, nil
}

// Refresh는 저장된 refresh token 으로 access token 을 한 번 갱신한다
func (s *Service) Refresh(ctx context.Context) (string, error) {
	refresh, err := s.creds.RefreshToken(ctx)
	if err != nil {
		return "", err
	}
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	pair, err := s.client.Refresh(ctx, refresh)
	if err != nil {
		return "", err
	}
	if pair.Access == "" {
		return "", ErrMissingAccessToken
	}

	if err := s.creds.SetTokens(ctx, pair.Access, pair.Refresh); err != nil {
		return "", fmt.Errorf("store tokens: %w", err)
	}
	return pair.Access, nil
}

// Logout은 서버에 알린 뒤 결과와 관계없이 자격 증명을 지운다
func (s *Service) Logout(ctx context.Context) error {
	authed, err := s.creds.IsAuthenticated(ctx)
	if err != nil {
		return err
	}

	if authed {
		if _, err := s.client.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("[Auth] logout request failed, clearing local credentials anyway")
		}
	}

	if err := s.creds.RemoveTokens(ctx); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	log.Info().Msg("[Auth] logged out")
	return nil
}

// CurrentUser는 캐시된 프로필을 돌려주고, 없으면 서버에서 가져와 캐시한다
func (s *Service) CurrentUser(ctx context.Context) (*api.User, error) {
	var cached api.User
	ok, err := s.creds.UserInfo(ctx, &cached)
	if err != nil {
		return nil, err
	}
	if ok {
		return &cached, nil
	}

	user, err := s.client.Profile(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.creds.SetUserInfo(ctx, user); err != nil {
		log.Warn().Err(err).Msg("[Auth] failed to cache user info")
	}
	return user, nil
}

func (s *Service) UpdateProfile(ctx context.Context, req api.UpdateProfileRequest) (*api.User, error) {
	resp, err := s.client.UpdateProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.creds.SetUserInfo(ctx, resp.User); err != nil {
		log.Warn().Err(err).Msg("[Auth] failed to cache user info")
	}
	return &resp.User, nil
}

func (s *Service) ChangePassword(ctx context.Context, req api.ChangePasswordRequest) error {
	_, err := s.client.ChangePassword(ctx, req)
	return err
}

// TokenInfo는 현재 access token 의 클레임 (표시용)
func (s *Service) TokenInfo(ctx context.Context) (*TokenInfo, error) {
	token, err := s.creds.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrMalformedToken
	}
	return PeekClaims(token)
}
