package service

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"moh-portal/config"
	"moh-portal/internal/model"
	"moh-portal/internal/repository"
	"moh-portal/pkg/imagehost"
	"moh-portal/pkg/llm"
	"moh-portal/pkg/session"
)

var mockEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ── Mock UserRepository ──

type mockUserRepo struct {
	users []*model.User
	seq   int
	// hideLookups 模拟预检查与插入之间的并发窗口：预检查查不到，插入时由唯一索引拦截
	hideLookups bool
	ipErr       error
	updateErr   error
}

func newMockUserRepo() *mockUserRepo { return &mockUserRepo{} }

func (m *mockUserRepo) live(u *model.User) bool {
	for _, s := range model.LiveStatuses {
		if u.Status == s {
			return true
		}
	}
	return false
}

func (m *mockUserRepo) Create(_ context.Context, user *model.User) error {
	for _, u := range m.users {
		if !m.live(u) {
			continue
		}
		if strings.EqualFold(u.Username, user.Username) {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: repository.ConstraintUsernameLive}
		}
		if strings.EqualFold(u.GameNick, user.GameNick) {
			return &pgconn.PgError{Code: pgerrcode.UniqueViolation, ConstraintName: repository.ConstraintGameNickLive}
		}
	}
	m.seq++
	if user.ID == "" {
		user.ID = fmt.Sprintf("00000000-0000-4000-8000-%012d", m.seq)
	}
	user.CreatedAt = mockEpoch.Add(time.Duration(m.seq) * time.Minute)
	user.UpdatedAt = user.CreatedAt
	m.users = append(m.users, user)
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) findLatest(match func(*model.User) bool, excludeID string) (*model.User, error) {
	if m.hideLookups {
		return nil, gorm.ErrRecordNotFound
	}
	var best *model.User
	for _, u := range m.users {
		if !m.live(u) || u.ID == excludeID || !match(u) {
			continue
		}
		if best == nil || u.CreatedAt.After(best.CreatedAt) {
			best = u
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (m *mockUserRepo) FindLatestByUsername(_ context.Context, username, excludeID string) (*model.User, error) {
	return m.findLatest(func(u *model.User) bool { return strings.EqualFold(u.Username, username) }, excludeID)
}

func (m *mockUserRepo) FindLatestByGameNick(_ context.Context, nick, excludeID string) (*model.User, error) {
	return m.findLatest(func(u *model.User) bool { return strings.EqualFold(u.GameNick, nick) }, excludeID)
}

func (m *mockUserRepo) FindLatestByIP(_ context.Context, ip string) (*model.User, error) {
	if m.ipErr != nil {
		return nil, m.ipErr
	}
	return m.findLatest(func(u *model.User) bool { return u.IPAddress != nil && *u.IPAddress == ip }, "")
}

func (m *mockUserRepo) List(_ context.Context, f *repository.UserListFilters, offset, limit int) ([]model.User, int64, error) {
	var out []model.User
	for _, u := range m.users {
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.City != "" && u.City != f.City {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(u.Username+" "+u.GameNick), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *u)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.User{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockUserRepo) Updates(_ context.Context, id string, fields map[string]interface{}) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	for _, u := range m.users {
		if u.ID != id {
			continue
		}
		for k, v := range fields {
			switch k {
			case "username":
				u.Username = v.(string)
			case "game_nick":
				u.GameNick = v.(string)
			case "password_hash":
				u.PasswordHash = v.(string)
			case "role":
				u.Role = v.(string)
			case "status":
				u.Status = v.(string)
			case "city":
				u.City = v.(string)
			case "avatar_url":
				u.AvatarURL = strPtr(v)
			case "avatar_public_id":
				u.AvatarPublicID = strPtr(v)
			case "avatar_moderation_status":
				u.AvatarModerationStatus = strPtr(v)
			case "avatar_uploaded_at":
				if t, ok := v.(time.Time); ok {
					u.AvatarUploadedAt = &t
				} else {
					u.AvatarUploadedAt = nil
				}
			}
		}
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	for i, u := range m.users {
		if u.ID == id {
			m.users = append(m.users[:i], m.users[i+1:]...)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockUserRepo) get(id string) *model.User {
	for _, u := range m.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

func strPtr(v interface{}) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

// ── Mock ActionLogRepository ──

type mockActionLogRepo struct {
	logs      []*model.ActionLog
	createErr error
	markErr   error
}

func newMockActionLogRepo() *mockActionLogRepo { return &mockActionLogRepo{} }

func (m *mockActionLogRepo) Create(_ context.Context, log *model.ActionLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	log.ID = int64(len(m.logs) + 1)
	log.CreatedAt = mockEpoch.Add(time.Duration(log.ID) * time.Second)
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockActionLogRepo) GetByID(_ context.Context, id int64) (*model.ActionLog, error) {
	for _, l := range m.logs {
		if l.ID == id {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockActionLogRepo) List(_ context.Context, f *repository.ActionLogFilters, offset, limit int) ([]model.ActionLog, int64, error) {
	var out []model.ActionLog
	for i := len(m.logs) - 1; i >= 0; i-- {
		l := m.logs[i]
		if f.UserID != "" && (l.UserID == nil || *l.UserID != f.UserID) {
			continue
		}
		if f.ActionType != "" && l.ActionType != f.ActionType {
			continue
		}
		if f.TargetID != "" && l.TargetID != f.TargetID {
			continue
		}
		if f.Undone != nil && l.Undone != *f.Undone {
			continue
		}
		out = append(out, *l)
	}
	total := int64(len(out))
	if offset >= len(out) {
		return []model.ActionLog{}, total, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], total, nil
}

func (m *mockActionLogRepo) MarkUndone(_ context.Context, id int64, byID, byNick string, at time.Time) (bool, error) {
	if m.markErr != nil {
		return false, m.markErr
	}
	for _, l := range m.logs {
		if l.ID == id && !l.Undone {
			l.Undone = true
			l.UndoneAt = &at
			l.UndoneByID = &byID
			l.UndoneByNick = &byNick
			return true, nil
		}
	}
	return false, nil
}

func (m *mockActionLogRepo) last() *model.ActionLog {
	if len(m.logs) == 0 {
		return nil
	}
	return m.logs[len(m.logs)-1]
}

func (m *mockActionLogRepo) byType(actionType string) []*model.ActionLog {
	var out []*model.ActionLog
	for _, l := range m.logs {
		if l.ActionType == actionType {
			out = append(out, l)
		}
	}
	return out
}

// ── Mock PromotionRepository ──

type mockPromotionRepo struct {
	items  map[int64]*model.PromotionSystemItem
	seq    int64
	listed int
}

func newMockPromotionRepo() *mockPromotionRepo {
	return &mockPromotionRepo{items: make(map[int64]*model.PromotionSystemItem)}
}

func (m *mockPromotionRepo) List(_ context.Context, category string) ([]model.PromotionSystemItem, error) {
	m.listed++
	var out []model.PromotionSystemItem
	for _, it := range m.items {
		if it.Category == category {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SectionSort != out[j].SectionSort {
			return out[i].SectionSort < out[j].SectionSort
		}
		if out[i].TaskSort != out[j].TaskSort {
			return out[i].TaskSort < out[j].TaskSort
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *mockPromotionRepo) GetByID(_ context.Context, id int64) (*model.PromotionSystemItem, error) {
	if it, ok := m.items[id]; ok {
		cp := *it
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockPromotionRepo) section(category, key string) []*model.PromotionSystemItem {
	var out []*model.PromotionSystemItem
	for _, it := range m.items {
		if it.Category == category && it.SectionKey == key {
			out = append(out, it)
		}
	}
	return out
}

func (m *mockPromotionRepo) FirstInSection(_ context.Context, category, key string) (*model.PromotionSystemItem, error) {
	sec := m.section(category, key)
	if len(sec) == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *sec[0]
	return &cp, nil
}

func (m *mockPromotionRepo) MaxTaskSort(_ context.Context, category, key string) (int, error) {
	max := 0
	for _, it := range m.section(category, key) {
		if it.TaskSort > max {
			max = it.TaskSort
		}
	}
	return max, nil
}

func (m *mockPromotionRepo) MaxSectionSort(_ context.Context, category string) (int, error) {
	max := 0
	for _, it := range m.items {
		if it.Category == category && it.SectionSort > max {
			max = it.SectionSort
		}
	}
	return max, nil
}

func (m *mockPromotionRepo) Create(_ context.Context, item *model.PromotionSystemItem) error {
	m.seq++
	item.ID = m.seq
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockPromotionRepo) Update(_ context.Context, item *model.PromotionSystemItem) error {
	cp := *item
	m.items[item.ID] = &cp
	return nil
}

func (m *mockPromotionRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockPromotionRepo) UpdateSection(_ context.Context, category, key string, fields map[string]interface{}) (int64, error) {
	sec := m.section(category, key)
	for _, it := range sec {
		if v, ok := fields["section_title"].(string); ok {
			it.SectionTitle = v
		}
		if v, ok := fields["section_sort"].(int); ok {
			it.SectionSort = v
		}
	}
	return int64(len(sec)), nil
}

func (m *mockPromotionRepo) DeleteSection(_ context.Context, category, key string) (int64, error) {
	sec := m.section(category, key)
	for _, it := range sec {
		delete(m.items, it.ID)
	}
	return int64(len(sec)), nil
}

func (m *mockPromotionRepo) ReorderTasks(_ context.Context, category, key string, ids []int64, updatedBy string, at time.Time) error {
	for _, id := range ids {
		it, ok := m.items[id]
		if !ok || it.Category != category || it.SectionKey != key {
			return gorm.ErrRecordNotFound
		}
	}
	for i, id := range ids {
		m.items[id].TaskSort = i + 1
		m.items[id].UpdatedBy = &updatedBy
		m.items[id].UpdatedAt = at
	}
	return nil
}

// ── Mock AvatarLimitRepository ──

type mockAvatarLimitRepo struct {
	rows   map[string]time.Time
	getErr error
}

func newMockAvatarLimitRepo() *mockAvatarLimitRepo {
	return &mockAvatarLimitRepo{rows: make(map[string]time.Time)}
}

func (m *mockAvatarLimitRepo) Get(_ context.Context, userID string) (*model.AvatarUploadLimit, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	t, ok := m.rows[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &model.AvatarUploadLimit{UserID: userID, LastUploadAt: t}, nil
}

func (m *mockAvatarLimitRepo) Touch(_ context.Context, userID string, at time.Time) error {
	m.rows[userID] = at
	return nil
}

// ── 外部协作方 ──

type fakeLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	f.calls++
	return f.allowed, f.err
}

type fakeCompleter struct {
	out   string
	err   error
	calls int
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, _ []llm.Message) (string, error) {
	f.calls++
	return f.out, f.err
}

type fakeImageHost struct {
	uploadErr  error
	destroyErr error
	uploads    int
	destroyed  []string
	version    int64
}

func (f *fakeImageHost) PublicIDFor(userID string) string { return "avatars/" + userID }

func (f *fakeImageHost) Upload(_ context.Context, p imagehost.UploadParams) (*imagehost.UploadResult, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	if _, err := io.Copy(io.Discard, p.Data); err != nil {
		return nil, err
	}
	f.uploads++
	f.version++
	return &imagehost.UploadResult{
		SecureURL: fmt.Sprintf("https://img.test/%s.png?v=%d", p.PublicID, f.version),
		PublicID:  p.PublicID,
		Version:   f.version,
	}, nil
}

func (f *fakeImageHost) Destroy(_ context.Context, publicID string) error {
	if f.destroyErr != nil {
		return f.destroyErr
	}
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

// ── 测试环境 ──

const testPassword = "secret123"

type testEnv struct {
	cfg       *config.Config
	users     *mockUserRepo
	logs      *mockActionLogRepo
	promos    *mockPromotionRepo
	limits    *mockAvatarLimitRepo
	repo      *repository.Repository
	codec     *session.Codec
	limiter   *fakeLimiter
	completer *fakeCompleter
	images    *fakeImageHost
	svc       *Service
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			SessionSecret:   "test-session-secret-0123456789",
			SessionDuration: 7 * 24 * time.Hour,
			BcryptCost:      bcrypt.MinCost,
		},
		LLM: config.LLMConfig{CacheSize: 16, CacheTTL: time.Hour},
		RateLimit: config.RateLimitConfig{
			FailOpen:           true,
			BiographyPerMinute: 10,
			AvatarInterval:     5 * time.Minute,
			AuthPerMinute:      20,
		},
	}
}

func newTestEnv() *testEnv {
	env := &testEnv{
		cfg:       testConfig(),
		users:     newMockUserRepo(),
		logs:      newMockActionLogRepo(),
		promos:    newMockPromotionRepo(),
		limits:    newMockAvatarLimitRepo(),
		limiter:   &fakeLimiter{allowed: true},
		completer: &fakeCompleter{},
		images:    &fakeImageHost{},
	}
	env.repo = &repository.Repository{
		User:        env.users,
		ActionLog:   env.logs,
		Promotion:   env.promos,
		AvatarLimit: env.limits,
	}
	env.rebuild()
	return env
}

// rebuild 修改 cfg 后重新装配服务
func (e *testEnv) rebuild() {
	e.codec = session.NewCodec(&e.cfg.Auth)
	e.svc = NewService(e.cfg, e.repo, Deps{
		Codec:   e.codec,
		LLM:     e.completer,
		Images:  e.images,
		Limiter: e.limiter,
	}, zap.NewNop())
}

// seedUser 直接写入一个用户（密码为 testPassword）
func (e *testEnv) seedUser(username, nick, role, status, city string) *model.User {
	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	u := &model.User{
		Username:     username,
		GameNick:     nick,
		PasswordHash: string(hash),
		Role:         role,
		Status:       status,
		City:         city,
	}
	if err := e.users.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func callerOf(u *model.User) Caller {
	return Caller{
		Identity: session.Identity{
			ID:       u.ID,
			Username: u.Username,
			Role:     u.Role,
			GameNick: u.GameNick,
			City:     u.City,
		},
		IP:        "10.0.0.1",
		UserAgent: "go-test",
	}
}
