package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"moh-portal/internal/authz"
	"moh-portal/internal/dto"
	"moh-portal/internal/model"
	"moh-portal/internal/repository"
	pkgerrors "moh-portal/pkg/errors"
)

const (
	targetTypeUser      = "user"
	targetTypePromotion = "promotion_system"

	// maxExportRows 单次导出的日志上限
	maxExportRows = 10000
)

var undoTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "moh_undo_total",
		Help: "成功撤销的操作次数（按原操作类型）",
	},
	[]string{"action_type"},
)

// undoableTypes 服务端实现了反向操作的类型；create/delete 不可撤销
var undoableTypes = map[string]bool{
	model.ActionDeactivate: true,
	model.ActionRestore:    true,
	model.ActionRoleChange: true,
	model.ActionUpdate:     true,
}

// reversibleFields update 记录中可按 previous_state 回写的字段
var reversibleFields = []string{"username", "game_nick", "city", "status"}

// AuditEntry 一条待写入的审计记录
type AuditEntry struct {
	ActorID    string
	ActorNick  string
	ActionType string
	Action     string
	TargetType string
	TargetID   string
	TargetName string
	Details    string
	Previous   interface{}
	New        interface{}
	Metadata   interface{}
	IP         string
	UserAgent  string
}

// newAudit 以当前操作者与请求来源预填审计记录
func newAudit(actor authz.Actor, caller Caller, actionType, action string) *AuditEntry {
	return &AuditEntry{
		ActorID:    actor.ID,
		ActorNick:  actor.GameNick,
		ActionType: actionType,
		Action:     action,
		IP:         caller.IP,
		UserAgent:  caller.UserAgent,
	}
}

// onUser 设置用户类目标
func (e *AuditEntry) onUser(u *model.User) *AuditEntry {
	e.TargetType = targetTypeUser
	e.TargetID = u.ID
	e.TargetName = u.GameNick
	return e
}

// ActionLogService 审计日志与撤销
type ActionLogService interface {
	// Record 尽力写入，失败只记录日志，不影响主流程
	Record(ctx context.Context, entry *AuditEntry)
	List(ctx context.Context, caller Caller, req *dto.ActionLogListRequest) ([]model.ActionLog, int64, error)
	Export(ctx context.Context, caller Caller, req *dto.ActionLogListRequest) (*bytes.Buffer, string, error)
	Undo(ctx context.Context, caller Caller, logID int64) (*dto.UndoResponse, error)
}

type actionLogService struct {
	repo   *repository.Repository
	logger *zap.Logger
	now    func() time.Time
}

// NewActionLogService 创建 ActionLogService 实例
func NewActionLogService(repo *repository.Repository, logger *zap.Logger) ActionLogService {
	return &actionLogService{repo: repo, logger: logger, now: time.Now}
}

// ────────────────────── Record ──────────────────────

func (s *actionLogService) Record(ctx context.Context, e *AuditEntry) {
	entry := &model.ActionLog{
		GameNick:      e.ActorNick,
		Action:        e.Action,
		ActionType:    e.ActionType,
		TargetType:    e.TargetType,
		TargetID:      e.TargetID,
		TargetName:    e.TargetName,
		Details:       e.Details,
		PreviousState: s.toJSON(e.Previous),
		NewState:      s.toJSON(e.New),
		Metadata:      s.toJSON(e.Metadata),
		IPAddress:     e.IP,
		UserAgent:     e.UserAgent,
	}
	if e.ActorID != "" {
		id := e.ActorID
		entry.UserID = &id
	}
	if entry.Metadata == nil {
		entry.Metadata = datatypes.JSON("{}")
	}

	if err := s.repo.ActionLog.Create(ctx, entry); err != nil {
		s.logger.Warn("写入审计日志失败",
			zap.String("action_type", e.ActionType),
			zap.String("target_id", e.TargetID),
			zap.Error(err),
		)
	}
}

func (s *actionLogService) toJSON(v interface{}) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("序列化审计快照失败", zap.Error(err))
		return nil
	}
	return datatypes.JSON(raw)
}

// ────────────────────── List / Export ──────────────────────

func (s *actionLogService) List(ctx context.Context, caller Caller, req *dto.ActionLogListRequest) ([]model.ActionLog, int64, error) {
	filters, err := s.filtersFor(ctx, caller, req)
	if err != nil {
		return nil, 0, err
	}

	logs, total, err := s.repo.ActionLog.List(ctx, filters, req.GetOffset(), req.GetPageSize())
	if err != nil {
		s.logger.Error("查询审计日志失败", zap.Error(err))
		return nil, 0, fmt.Errorf("查询审计日志失败: %w", err)
	}
	return logs, total, nil
}

// filtersFor 组装过滤条件；ld 只能看到自己的记录
func (s *actionLogService) filtersFor(ctx context.Context, caller Caller, req *dto.ActionLogListRequest) (*repository.ActionLogFilters, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, authz.ViewLogs, authz.Target{}); err != nil {
		return nil, err
	}

	filters := &repository.ActionLogFilters{
		UserID:     trim(req.UserID),
		ActionType: req.ActionType,
		TargetID:   trim(req.TargetID),
		Undone:     req.Undone,
	}
	if actor.Role == model.RoleLeader {
		filters.UserID = actor.ID
	}
	if req.From != "" {
		from, err := time.Parse("2006-01-02", req.From)
		if err != nil {
			return nil, pkgerrors.Validation("Неверный формат даты «from», ожидается ГГГГ-ММ-ДД")
		}
		filters.From = &from
	}
	if req.To != "" {
		to, err := time.Parse("2006-01-02", req.To)
		if err != nil {
			return nil, pkgerrors.Validation("Неверный формат даты «to», ожидается ГГГГ-ММ-ДД")
		}
		to = to.Add(24 * time.Hour)
		filters.To = &to
	}
	return filters, nil
}

// Export 按相同过滤条件导出为 Excel
func (s *actionLogService) Export(ctx context.Context, caller Caller, req *dto.ActionLogListRequest) (*bytes.Buffer, string, error) {
	filters, err := s.filtersFor(ctx, caller, req)
	if err != nil {
		return nil, "", err
	}

	logs, _, err := s.repo.ActionLog.List(ctx, filters, 0, maxExportRows)
	if err != nil {
		s.logger.Error("查询审计日志失败", zap.Error(err))
		return nil, "", fmt.Errorf("查询审计日志失败: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Журнал действий"
	idx, _ := f.NewSheet(sheet)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	headers := []string{"ID", "Дата", "Пользователь", "Тип", "Действие", "Объект", "Детали", "IP", "Отменено"}
	widths := []float64{8, 20, 22, 14, 40, 22, 40, 16, 10}
	for i, h := range headers {
		col := colName(i)
		f.SetCellValue(sheet, cell(col, 1), h)
		f.SetColWidth(sheet, col, col, widths[i])
	}
	f.SetCellStyle(sheet, "A1", cell(colName(len(headers)-1), 1), headerStyle)

	for i, l := range logs {
		row := i + 2
		undone := "нет"
		if l.Undone {
			undone = "да"
		}
		values := []interface{}{
			l.ID,
			l.CreatedAt.Format("2006-01-02 15:04:05"),
			l.GameNick,
			l.ActionType,
			l.Action,
			l.TargetName,
			l.Details,
			l.IPAddress,
			undone,
		}
		for j, v := range values {
			f.SetCellValue(sheet, cell(colName(j), row), v)
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", fmt.Errorf("生成 Excel 失败: %w", err)
	}
	return buf, fmt.Sprintf("action_logs_%s.xlsx", s.now().Format("20060102")), nil
}

// ────────────────────── Undo ──────────────────────

// Undo 撤销一条日志对应的操作
//
// 先对目标执行反向修改，成功后再以 undone=false 为条件翻转标记；
// 标记失败只记录日志，不回滚已完成的反向修改。
func (s *actionLogService) Undo(ctx context.Context, caller Caller, logID int64) (*dto.UndoResponse, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, authz.Undo, authz.Target{}); err != nil {
		return nil, err
	}

	// 1. 读取日志
	entry, err := s.repo.ActionLog.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLogNotFound
		}
		s.logger.Error("查询审计日志失败", zap.Int64("log_id", logID), zap.Error(err))
		return nil, fmt.Errorf("查询审计日志失败: %w", err)
	}

	// 2. root 可撤销任意记录，其余角色只能撤销自己的
	if actor.Role != model.RoleRoot && (entry.UserID == nil || *entry.UserID != actor.ID) {
		return nil, ErrUndoForeign
	}

	// 3. 状态与类型
	if entry.Undone {
		return nil, ErrAlreadyUndone
	}
	if !undoableTypes[entry.ActionType] || entry.TargetType != targetTypeUser {
		return nil, ErrNotUndoable
	}

	// 4. 反向修改
	if !isUserID(entry.TargetID) {
		return nil, ErrUndoTargetMissing
	}
	target, err := s.repo.User.GetByID(ctx, entry.TargetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUndoTargetMissing
		}
		return nil, fmt.Errorf("查询用户失败: %w", err)
	}

	fields, err := reversalFor(entry)
	if err != nil {
		return nil, err
	}
	// 反向修改等同于一次直接操作，按目标当前状态重新鉴权
	if err := authorizeReversal(actor, entry.ActionType, target, fields); err != nil {
		return nil, err
	}
	before := currentValues(target, fields)

	if err := s.repo.User.Updates(ctx, target.ID, fields); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUndoTargetMissing
		}
		username, _ := fields["username"].(string)
		nick, _ := fields["game_nick"].(string)
		if appErr := mapUniqueViolation(err, username, nick); appErr != nil {
			return nil, appErr
		}
		s.logger.Error("撤销时更新用户失败", zap.Int64("log_id", logID), zap.Error(err))
		return nil, fmt.Errorf("撤销失败: %w", err)
	}

	// 5. 标记并追加一条 other 记录
	ok, err := s.repo.ActionLog.MarkUndone(ctx, entry.ID, actor.ID, actor.GameNick, s.now())
	if err != nil {
		s.logger.Error("标记日志已撤销失败", zap.Int64("log_id", logID), zap.Error(err))
	} else if !ok {
		s.logger.Warn("日志已被并发撤销", zap.Int64("log_id", logID))
	}
	undoTotal.WithLabelValues(entry.ActionType).Inc()

	audit := newAudit(actor, caller, model.ActionOther, fmt.Sprintf("Отмена действия #%d (%s)", entry.ID, entry.ActionType)).onUser(target)
	audit.Previous = before
	audit.New = fields
	audit.Metadata = map[string]interface{}{
		"undone_log_id":      entry.ID,
		"undone_action_type": entry.ActionType,
	}
	s.Record(ctx, audit)

	return &dto.UndoResponse{
		LogID:      entry.ID,
		ActionType: entry.ActionType,
		TargetID:   target.ID,
		Message:    "Действие отменено",
	}, nil
}

// reversalFor 计算反向修改的字段
func reversalFor(entry *model.ActionLog) (map[string]interface{}, error) {
	switch entry.ActionType {
	case model.ActionDeactivate:
		return map[string]interface{}{"status": model.StatusActive}, nil

	case model.ActionRestore:
		return map[string]interface{}{"status": model.StatusInactive}, nil

	case model.ActionRoleChange:
		prev := decodeState(entry.PreviousState)
		role, _ := prev["role"].(string)
		if !model.IsValidRole(role) {
			return nil, ErrUndoNoPrevRole
		}
		if role == model.RoleRoot {
			return nil, ErrRootProtected
		}
		return map[string]interface{}{"role": role}, nil

	case model.ActionUpdate:
		if changed, _ := decodeState(entry.Metadata)["password_changed"].(bool); changed {
			return nil, ErrUndoPassword
		}
		prev := decodeState(entry.PreviousState)
		fields := make(map[string]interface{})
		for _, key := range reversibleFields {
			if v, ok := prev[key].(string); ok && v != "" {
				fields[key] = v
			}
		}
		if len(fields) == 0 {
			return nil, ErrUndoNoFields
		}
		return fields, nil
	}
	return nil, ErrNotUndoable
}

// authorizeReversal 反向修改对应的直接操作逐一走权限矩阵
func authorizeReversal(actor authz.Actor, actionType string, target *model.User, fields map[string]interface{}) error {
	t := targetOf(target)
	switch actionType {
	case model.ActionDeactivate:
		return authorize(actor, authz.Restore, t)
	case model.ActionRestore:
		return authorize(actor, authz.Deactivate, t)
	case model.ActionRoleChange:
		t.NewRole, _ = fields["role"].(string)
		return authorize(actor, authz.ChangeRole, t)
	}

	if err := authorize(actor, authz.EditUser, t); err != nil {
		return err
	}
	if city, ok := fields["city"].(string); ok && city != target.City {
		ct := t
		ct.NewCity = city
		if err := authorize(actor, authz.ChangeCity, ct); err != nil {
			return err
		}
	}
	if _, ok := fields["status"]; ok {
		return authorize(actor, authz.Approve, t)
	}
	return nil
}

func decodeState(raw datatypes.JSON) map[string]interface{} {
	out := make(map[string]interface{})
	if len(raw) == 0 {
		return out
	}
	_ = json.Unmarshal(raw, &out)
	return out
}

// currentValues 反向修改前目标上对应字段的值
func currentValues(u *model.User, fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields))
	for key := range fields {
		switch key {
		case "username":
			out[key] = u.Username
		case "game_nick":
			out[key] = u.GameNick
		case "city":
			out[key] = u.City
		case "status":
			out[key] = u.Status
		case "role":
			out[key] = u.Role
		}
	}
	return out
}

// ── Excel 辅助 ──

func colName(i int) string {
	name, _ := excelize.ColumnNumberToName(i + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
