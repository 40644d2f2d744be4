package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func observed(level gormlogger.LogLevel) (gormlogger.Interface, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return newGormLogger(zap.New(core), level), logs
}

func sqlFunc() (string, int64) { return "SELECT 1", 1 }

func TestGormLogger_Trace(t *testing.T) {
	tests := []struct {
		name    string
		level   gormlogger.LogLevel
		elapsed time.Duration
		err     error
		want    zapcore.Level
		logged  bool
	}{
		{"执行失败", gormlogger.Warn, 0, errors.New("boom"), zapcore.ErrorLevel, true},
		{"记录不存在不算错误", gormlogger.Warn, 0, gorm.ErrRecordNotFound, 0, false},
		{"慢查询", gormlogger.Warn, time.Second, nil, zapcore.WarnLevel, true},
		{"普通查询 warn 级别不记录", gormlogger.Warn, 0, nil, 0, false},
		{"普通查询 info 级别记录", gormlogger.Info, 0, nil, zapcore.DebugLevel, true},
		{"静默", gormlogger.Silent, time.Second, errors.New("boom"), 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, logs := observed(tt.level)
			l.Trace(context.Background(), time.Now().Add(-tt.elapsed), sqlFunc, tt.err)

			if !tt.logged {
				if logs.Len() != 0 {
					t.Fatalf("不应记录日志，实际 %d 条", logs.Len())
				}
				return
			}
			if logs.Len() != 1 {
				t.Fatalf("期望 1 条日志，实际 %d 条", logs.Len())
			}
			entry := logs.All()[0]
			if entry.Level != tt.want {
				t.Errorf("日志级别期望 %v，实际 %v", tt.want, entry.Level)
			}
			if entry.ContextMap()["sql"] != "SELECT 1" {
				t.Errorf("应记录 SQL，实际 %v", entry.ContextMap())
			}
		})
	}
}

func TestGormLogger_LogModeCopies(t *testing.T) {
	base, logs := observed(gormlogger.Error)
	verbose := base.LogMode(gormlogger.Info)

	base.Info(context.Background(), "hidden %d", 1)
	verbose.Info(context.Background(), "shown %d", 2)

	if logs.Len() != 1 || logs.All()[0].Message != "shown 2" {
		t.Errorf("LogMode 应返回独立副本，实际 %v", logs.All())
	}
}
