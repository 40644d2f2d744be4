package repository

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// 唯一索引名（见 migrations/000001_init.up.sql）
const (
	ConstraintUsernameLive = "users_username_live_uniq"
	ConstraintGameNickLive = "users_game_nick_live_uniq"
	ConstraintSingleRoot   = "users_single_root"
)

// IsUniqueViolation 判断是否为唯一约束冲突（并发插入时的最终判定）
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}
	return false
}

// ConstraintName 返回冲突的约束/索引名，非数据库错误返回空串
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}
