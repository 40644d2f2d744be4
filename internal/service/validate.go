package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"moh-portal/internal/model"
	"moh-portal/internal/repository"
	pkgerrors "moh-portal/pkg/errors"
)

// gameNickPattern Имя_Фамилия，仅英文字母
var gameNickPattern = regexp.MustCompile(`^[A-Za-z]+_[A-Za-z]+$`)

// ── 字段校验（所有创建 / 修改路径共用） ──

func validateUsername(username string) error {
	if username == "" {
		return pkgerrors.Validation("Логин обязателен")
	}
	if n := utf8.RuneCountInString(username); n < 3 || n > 50 {
		return pkgerrors.Validation("Логин должен содержать от 3 до 50 символов")
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return pkgerrors.Validation("Пароль обязателен")
	}
	if utf8.RuneCountInString(password) < 6 {
		return pkgerrors.Validation("Пароль должен содержать не менее 6 символов")
	}
	return nil
}

// ValidateGameNick 校验游戏昵称格式
func ValidateGameNick(nick string) error {
	if nick == "" {
		return pkgerrors.Validation("Игровой ник обязателен")
	}
	if n := len(nick); n < 5 || n > 50 {
		return pkgerrors.Validation("Игровой ник должен содержать от 5 до 50 символов")
	}
	if !gameNickPattern.MatchString(nick) {
		return pkgerrors.Validation("Игровой ник должен быть в формате Имя_Фамилия (только английские буквы)")
	}
	return nil
}

func validateRole(role string) error {
	if !model.IsValidRole(role) {
		return pkgerrors.Validation("Недопустимая роль")
	}
	return nil
}

func validateCity(city string) error {
	if !model.IsValidCity(city) {
		return pkgerrors.Validation("Недопустимый город")
	}
	return nil
}

// validateNewAccount 创建账号（自助申请与管理员创建）的全部字段校验
func validateNewAccount(username, nick, password, role, city string) error {
	if err := validateUsername(username); err != nil {
		return err
	}
	if err := ValidateGameNick(nick); err != nil {
		return err
	}
	if err := validatePassword(password); err != nil {
		return err
	}
	if err := validateRole(role); err != nil {
		return err
	}
	return validateCity(city)
}

// ── 唯一性 ──

// duplicateError 按冲突记录的状态给出文案与错误码
func duplicateError(field, value, status string) error {
	switch status {
	case model.StatusInactive:
		return pkgerrors.Newf(http.StatusBadRequest, pkgerrors.CodeDeactivated, "%s «%s» уже занят деактивированным аккаунтом", field, value)
	case model.StatusRequest:
		return pkgerrors.Newf(http.StatusBadRequest, pkgerrors.CodePending, "%s «%s» уже занят заявкой, ожидающей рассмотрения", field, value)
	default:
		return pkgerrors.Newf(http.StatusBadRequest, pkgerrors.CodeDuplicate, "%s «%s» уже занят", field, value)
	}
}

// checkDuplicates 预检查仅用于给出友好文案，最终以数据库唯一索引为准
func checkDuplicates(ctx context.Context, users repository.UserRepository, username, nick, excludeID string) error {
	if username != "" {
		u, err := users.FindLatestByUsername(ctx, username, excludeID)
		if err == nil {
			return duplicateError("Логин", username, u.Status)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("检查用户名唯一性失败: %w", err)
		}
	}
	if nick != "" {
		u, err := users.FindLatestByGameNick(ctx, nick, excludeID)
		if err == nil {
			return duplicateError("Игровой ник", nick, u.Status)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("检查游戏昵称唯一性失败: %w", err)
		}
	}
	return nil
}

// mapUniqueViolation 唯一索引冲突转为业务错误；非冲突返回 nil
func mapUniqueViolation(err error, username, nick string) error {
	if !repository.IsUniqueViolation(err) {
		return nil
	}
	switch repository.ConstraintName(err) {
	case repository.ConstraintUsernameLive:
		return duplicateError("Логин", username, model.StatusActive)
	case repository.ConstraintGameNickLive:
		return duplicateError("Игровой ник", nick, model.StatusActive)
	case repository.ConstraintSingleRoot:
		return ErrRootProtected
	default:
		return pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeDuplicate, "Запись уже существует")
	}
}

func trim(s string) string { return strings.TrimSpace(s) }
