package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code 结构化错误码，前端按此字段分类而不是匹配错误文本
type Code string

const (
	CodeValidation    Code = "VALIDATION"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeDuplicate     Code = "DUPLICATE"
	CodeDeactivated   Code = "DEACTIVATED"
	CodePending       Code = "PENDING"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeUpstream      Code = "UPSTREAM"
	CodeAlreadyUndone Code = "ALREADY_UNDONE"
	CodeNotUndoable   Code = "NOT_UNDOABLE"
	CodeConflict      Code = "CONFLICT"
	CodeInternal      Code = "INTERNAL"
)

// AppError 带 HTTP 状态与错误码的业务错误
type AppError struct {
	Status  int
	Code    Code
	Message string
	Details string
}

func (e *AppError) Error() string { return e.Message }

// Is 同状态同错误码同文案即视为相同错误，便于 errors.Is 比对哨兵值
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Status == t.Status && e.Code == t.Code && e.Message == t.Message
}

// WithDetails 返回附带诊断信息的副本
func (e *AppError) WithDetails(details string) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// New 创建业务错误
func New(status int, code Code, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

// Newf 创建带格式化文案的业务错误
func Newf(status int, code Code, format string, args ...interface{}) *AppError {
	return &AppError{Status: status, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation 400
func Validation(message string) *AppError {
	return New(http.StatusBadRequest, CodeValidation, message)
}

// Forbidden 403
func Forbidden(message string) *AppError {
	return New(http.StatusForbidden, CodeForbidden, message)
}

// NotFound 404
func NotFound(message string) *AppError {
	return New(http.StatusNotFound, CodeNotFound, message)
}

// As 提取 AppError；非业务错误返回 nil
func As(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// ErrInternal 通用服务器错误
var ErrInternal = New(http.StatusInternalServerError, CodeInternal, "Внутренняя ошибка сервера")
