package service

import (
	"net/http"

	pkgerrors "moh-portal/pkg/errors"
)

// ── 通用业务错误 ──

var (
	ErrUnauthorized     = pkgerrors.New(http.StatusUnauthorized, pkgerrors.CodeUnauthorized, "Требуется авторизация")
	ErrSessionUserGone  = pkgerrors.New(http.StatusUnauthorized, pkgerrors.CodeUnauthorized, "Пользователь сессии не найден, войдите снова")
	ErrAccountInactive  = pkgerrors.New(http.StatusForbidden, pkgerrors.CodeDeactivated, "Аккаунт деактивирован")
	ErrAccountPending   = pkgerrors.New(http.StatusForbidden, pkgerrors.CodePending, "Заявка на аккаунт ещё не одобрена")
	ErrUserNotFound     = pkgerrors.NotFound("Пользователь не найден")
	ErrNothingToUpdate  = pkgerrors.Validation("Нет изменений для сохранения")
	ErrRateLimitBackend = pkgerrors.New(http.StatusServiceUnavailable, pkgerrors.CodeRateLimited, "Проверка лимита запросов недоступна, попробуйте позже")
)

// ── 认证 ──

var (
	ErrMissingCredentials = pkgerrors.Validation("Введите имя пользователя и пароль")
	ErrInvalidCredentials = pkgerrors.New(http.StatusUnauthorized, pkgerrors.CodeUnauthorized, "Неверное имя пользователя или пароль")
	ErrSigningKey         = pkgerrors.New(http.StatusInternalServerError, pkgerrors.CodeInternal, "Ключ подписи сессии не настроен")

	ErrIPDeactivated = pkgerrors.New(http.StatusForbidden, pkgerrors.CodeDeactivated, "С этого IP-адреса уже зарегистрирован деактивированный аккаунт")
	ErrIPPending     = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodePending, "С этого IP-адреса уже подана заявка, ожидающая рассмотрения")
	ErrIPActive      = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeDuplicate, "С этого IP-адреса уже зарегистрирован активный аккаунт")
)

// ── 用户状态流转 ──

var (
	ErrNotPending     = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeConflict, "Заявка уже обработана")
	ErrNotInactive    = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeConflict, "Пользователь не деактивирован")
	ErrNotActive      = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeConflict, "Пользователь уже деактивирован или ожидает одобрения")
	ErrSameRole       = pkgerrors.Validation("Пользователь уже имеет эту роль")
	ErrSameCity       = pkgerrors.Validation("Пользователь уже относится к этому городу")
	ErrRootProtected  = pkgerrors.Forbidden("Аккаунт root защищён от изменений")
	ErrRequestRole    = pkgerrors.Validation("Недопустимая роль для заявки")
	ErrUnknownPatchOp = pkgerrors.Validation("Неизвестное действие")
)

// ── 撤销 ──

var (
	ErrLogNotFound       = pkgerrors.NotFound("Запись журнала не найдена")
	ErrUndoForeign       = pkgerrors.Forbidden("Можно отменять только собственные действия")
	ErrAlreadyUndone     = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeAlreadyUndone, "Действие уже отменено")
	ErrNotUndoable       = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeNotUndoable, "Это действие нельзя отменить")
	ErrUndoPassword      = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeNotUndoable, "Изменение пароля нельзя отменить")
	ErrUndoNoPrevRole    = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeNotUndoable, "Предыдущая роль не сохранена, отмена невозможна")
	ErrUndoNoFields      = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeNotUndoable, "В записи нет полей, которые можно восстановить")
	ErrUndoTargetMissing = pkgerrors.NotFound("Пользователь, к которому относится запись, не найден")
)
