package storage

import "context"

// Storage는 브라우저 세션 하나에 묶인 문자열 key-value 저장소
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItems(ctx context.Context, keys ...string) error
	// RemoveItemsIf는 guardKey 의 값이 guardValue 일 때만 keys 를 지운다.
	// 지웠으면 true.
	RemoveItemsIf(ctx context.Context, guardKey, guardValue string, keys ...string) (bool, error)
}
