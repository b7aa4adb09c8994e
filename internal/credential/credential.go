package credential

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"taeu.kr/portal/internal/storage"
)

const (
	AccessTokenKey  = "access_token"
	RefreshTokenKey = "refresh_token"
	UserInfoKey     = "user_info"
)

// Store는 access token, refresh token, 사용자 정보 세 슬롯을 관리한다.
// 인증 여부는 access token 존재만으로 판단한다.
type Store struct {
	storage storage.Storage
}

func NewStore(s storage.Storage) *Store {
	return &Store{storage: s}
}

func (s *Store) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, AccessTokenKey)
}

func (s *Store) SetAccessToken(ctx context.Context, token string) error {
	return s.storage.SetItem(ctx, AccessTokenKey, token)
}

func (s *Store) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, RefreshTokenKey)
}

func (s *Store) SetRefreshToken(ctx context.Context, token string) error {
	return s.storage.SetItem(ctx, RefreshTokenKey, token)
}

// SetTokens는 access 는 항상 덮어쓰고 refresh 는 값이 있을 때만 쓴다.
// 기존 refresh token 을 지우려면 RemoveTokens 를 호출해야 한다.
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	if err := s.SetAccessToken(ctx, access); err != nil {
		return err
	}
	if refresh != "" {
		return s.SetRefreshToken(ctx, refresh)
	}
	return nil
}

func (s *Store) RemoveTokens(ctx context.Context) error {
	return s.storage.RemoveItems(ctx, AccessTokenKey, RefreshTokenKey, UserInfoKey)
}

// RemoveTokensIfCurrent는 access 가 아직 저장된 토큰일 때만 세 슬롯을 지운다
func (s *Store) RemoveTokensIfCurrent(ctx context.Context, access string) (bool, error) {
	return s.storage.RemoveItemsIf(ctx, AccessTokenKey, access, RefreshTokenKey, UserInfoKey)
}

func (s *Store) IsAuthenticated(ctx context.Context) (bool, error) {
	token, err := s.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return token != "", nil
}

// UserInfo는 저장된 사용자 정보를 dst 로 디코딩한다.
// 값이 없거나 JSON 이 깨져 있으면 false 를 돌려준다.
func (s *Store) UserInfo(ctx context.Context, dst any) (bool, error) {
	raw, err := s.get(ctx, UserInfoKey)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, nil
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		log.Warn().Err(err).Msg("[Credential] stored user info is not valid JSON, treating as absent")
		return false, nil
	}
	return true, nil
}

func (s *Store) SetUserInfo(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode user info: %w", err)
	}
	return s.storage.SetItem(ctx, UserInfoKey, string(data))
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	value, ok, err := s.storage.GetItem(ctx, key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", nil
	}
	return value, nil
}
