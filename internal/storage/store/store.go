package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

const tableName = "local_storage"

// Store는 local_storage 테이블 전체. 세션별 접근은 Scope 로 한다
type Store struct {
	db  *sql.DB
	qb  sq.StatementBuilderType
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	return &Store{
		db:  db,
		qb:  sq.StatementBuilder.PlaceholderFormat(sq.Question),
		now: time.Now,
	}
}

// Scope는 세션 id 하나에 묶인 storage.Storage 를 돌려준다
func (s *Store) Scope(id string) *Scope {
	return &Scope{store: s, id: id}
}

// Purge는 before 이후로 한 번도 쓰이지 않은 scope 를 통째로 지운다
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	stale := s.qb.
		Select("scope").
		From(tableName).
		GroupBy("scope").
		Having(sq.Lt{"MAX(updated_at)": before.Unix()})

	staleSQL, staleArgs, err := stale.ToSql()
	if err != nil {
		return 0, err
	}

	query, args, err := s.qb.
		Delete(tableName).
		Where(sq.Expr("scope IN ("+staleSQL+")", staleArgs...)).
		ToSql()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type Scope struct {
	store *Store
	id    string
}

func (s *Scope) ID() string {
	return s.id
}

func (s *Scope) GetItem(ctx context.Context, key string) (string, bool, error) {
	query, args, err := s.store.qb.
		Select("value").
		From(tableName).
		Where(sq.Eq{"scope": s.id, "key": key}).
		ToSql()
	if err != nil {
		return "", false, err
	}

	var value string
	if err := s.store.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get item %q: %w", key, err)
	}
	return value, true, nil
}

func (s *Scope) SetItem(ctx context.Context, key, value string) error {
	query, args, err := s.store.qb.
		Insert(tableName).
		Columns("scope", "key", "value", "updated_at").
		Values(s.id, key, value, s.store.now().Unix()).
		Suffix("ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("set item %q: %w", key, err)
	}
	return nil
}

func (s *Scope) RemoveItems(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	query, args, err := s.store.qb.
		Delete(tableName).
		Where(sq.Eq{"scope": s.id, "key": keys}).
		ToSql()
	if err != nil {
		return err
	}

	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove items %s: %w", strings.Join(keys, ","), err)
	}
	return nil
}

func (s *Scope) RemoveItemsIf(ctx context.Context, guardKey, guardValue string, keys ...string) (bool, error) {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// guard 행을 먼저 지워서 경쟁하는 호출 중 하나만 통과시킨다
	guardQuery, guardArgs, err := s.store.qb.
		Delete(tableName).
		Where(sq.Eq{"scope": s.id, "key": guardKey, "value": guardValue}).
		ToSql()
	if err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, guardQuery, guardArgs...)
	if err != nil {
		return false, fmt.Errorf("remove guard item %q: %w", guardKey, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if affected == 0 {
		return false, nil
	}

	if len(keys) > 0 {
		query, args, err := s.store.qb.
			Delete(tableName).
			Where(sq.Eq{"scope": s.id, "key": keys}).
			ToSql()
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return false, fmt.Errorf("remove items %s: %w", strings.Join(keys, ","), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
