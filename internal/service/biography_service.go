package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"moh-portal/config"
	"moh-portal/internal/authz"
	"moh-portal/internal/biography"
	"moh-portal/internal/dto"
	"moh-portal/internal/repository"
	pkgerrors "moh-portal/pkg/errors"
	"moh-portal/pkg/llm"
)

const (
	maxBiographyLength = 20000
	// rawSnippetLength 无法解析的模型输出回传给前端的最大长度
	rawSnippetLength = 300
)

var (
	ErrBiographyEmpty   = pkgerrors.Validation("Текст биографии обязателен")
	ErrBiographyTooLong = pkgerrors.Validation("Текст биографии слишком длинный (максимум 20000 символов)")
	ErrBiographyDate    = pkgerrors.Validation("Неверный формат даты, ожидается ГГГГ-ММ-ДД")
	ErrLLMNotConfigured = pkgerrors.New(http.StatusInternalServerError, pkgerrors.CodeInternal, "API-ключ сервиса проверки не настроен")
	ErrBiographyLimit   = pkgerrors.New(http.StatusTooManyRequests, pkgerrors.CodeRateLimited, "Слишком много проверок, попробуйте через минуту")
	ErrModelOutput      = pkgerrors.New(http.StatusBadGateway, pkgerrors.CodeUpstream, "Не удалось разобрать ответ модели")
	ErrModelUnavailable = pkgerrors.New(http.StatusBadGateway, pkgerrors.CodeUpstream, "Сервис проверки недоступен")
)

var biographyCacheTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moh_biography_cache_total",
		Help: "传记校验缓存命中情况",
	},
	[]string{"result"},
)

// Completer LLM 补全接口，由 pkg/llm.Client 实现
type Completer interface {
	CompleteJSON(ctx context.Context, messages []llm.Message) (string, error)
}

// RateLimiter 滑动窗口限流接口，由 pkg/redis.Client 实现
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// BiographyService 传记校验
type BiographyService interface {
	Validate(ctx context.Context, caller Caller, req *dto.BiographyValidateRequest) (*biography.Result, error)
}

type biographyService struct {
	cfg     *config.Config
	repo    *repository.Repository
	llm     Completer
	limiter RateLimiter
	cache   *expirable.LRU[string, *biography.Result]
	logger  *zap.Logger
	now     func() time.Time
}

// NewBiographyService 创建 BiographyService 实例；limiter 为 nil 时不限流
func NewBiographyService(cfg *config.Config, repo *repository.Repository, completer Completer, limiter RateLimiter, logger *zap.Logger) BiographyService {
	size := cfg.LLM.CacheSize
	if size <= 0 {
		size = 256
	}
	return &biographyService{
		cfg:     cfg,
		repo:    repo,
		llm:     completer,
		limiter: limiter,
		cache:   expirable.NewLRU[string, *biography.Result](size, nil, cfg.LLM.CacheTTL),
		logger:  logger,
		now:     time.Now,
	}
}

func (s *biographyService) Validate(ctx context.Context, caller Caller, req *dto.BiographyValidateRequest) (*biography.Result, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, authz.ValidateBiography, authz.Target{}); err != nil {
		return nil, err
	}

	// 1. 输入
	text := trim(req.Text)
	if text == "" {
		return nil, ErrBiographyEmpty
	}
	if utf8.RuneCountInString(text) > maxBiographyLength {
		return nil, ErrBiographyTooLong
	}
	currentDate, err := s.currentDate(req.CurrentDate)
	if err != nil {
		return nil, err
	}

	// 2. 限流
	if err := s.checkRateLimit(ctx, actor.ID); err != nil {
		return nil, err
	}

	// 3. 缓存
	key := cacheKey(text, currentDate)
	if cached, ok := s.cache.Get(key); ok {
		biographyCacheTotal.WithLabelValues("hit").Inc()
		cp := *cached
		return &cp, nil
	}
	biographyCacheTotal.WithLabelValues("miss").Inc()

	// 4. 规范化 → 提示词 → 模型
	normalized := biography.Normalize(text)
	system, user := biography.BuildPrompt(normalized, currentDate)
	raw, err := s.llm.CompleteJSON(ctx, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return nil, s.mapLLMError(err)
	}

	// 5. 解析并做确定性修正
	res, err := biography.ParseResult(raw)
	if err != nil {
		s.logger.Warn("模型输出无法解析", zap.Error(err), zap.Int("raw_len", len(raw)))
		return nil, ErrModelOutput.WithDetails(snippet(raw, rawSnippetLength))
	}
	res = biography.PostProcess(res, normalized, currentDate)

	s.cache.Add(key, res)
	cp := *res
	return &cp, nil
}

func (s *biographyService) currentDate(v string) (time.Time, error) {
	if v == "" {
		y, m, d := s.now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, ErrBiographyDate
	}
	return t, nil
}

// checkRateLimit 每用户每分钟上限；后端出错时按配置放行或拒绝
func (s *biographyService) checkRateLimit(ctx context.Context, userID string) error {
	if s.limiter == nil {
		return nil
	}
	limit := s.cfg.RateLimit.BiographyPerMinute
	if limit <= 0 {
		return nil
	}
	allowed, err := s.limiter.CheckRateLimit(ctx, "biography:"+userID, limit, time.Minute)
	if err != nil {
		if s.cfg.RateLimit.FailOpen {
			s.logger.Warn("传记校验限流检查失败，按配置放行", zap.String("user_id", userID), zap.Error(err))
			return nil
		}
		s.logger.Error("传记校验限流检查失败", zap.String("user_id", userID), zap.Error(err))
		return ErrRateLimitBackend
	}
	if !allowed {
		return ErrBiographyLimit
	}
	return nil
}

// mapLLMError 无效请求/模型下线 → 400，其余上游错误 → 502
func (s *biographyService) mapLLMError(err error) error {
	if errors.Is(err, llm.ErrNoAPIKey) {
		return ErrLLMNotConfigured
	}
	var apiErr *llm.APIError
	if errors.As(err, &apiErr) {
		s.logger.Warn("LLM 返回错误",
			zap.Int("status", apiErr.StatusCode),
			zap.String("type", apiErr.Type),
			zap.String("code", apiErr.Code),
		)
		if apiErr.IsClientError() {
			return pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeUpstream, "Запрос к модели отклонён").
				WithDetails(snippet(apiErr.Message, rawSnippetLength))
		}
		return pkgerrors.Newf(http.StatusBadGateway, pkgerrors.CodeUpstream, "Ошибка сервиса проверки (HTTP %d)", apiErr.StatusCode).
			WithDetails(snippet(apiErr.Message, rawSnippetLength))
	}
	s.logger.Error("调用 LLM 失败", zap.Error(err))
	return ErrModelUnavailable
}

func cacheKey(text string, date time.Time) string {
	sum := sha256.Sum256([]byte(date.Format("2006-01-02") + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// snippet 按字符截断
func snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
