package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"moh-portal/internal/authz"
	"moh-portal/internal/dto"
	"moh-portal/internal/model"
	"moh-portal/internal/repository"
	pkgerrors "moh-portal/pkg/errors"
)

// ── 积分表动作 ──

const (
	PromotionCreateTask    = "create_task"
	PromotionUpdateTask    = "update_task"
	PromotionDeleteTask    = "delete_task"
	PromotionCreateSection = "create_section"
	PromotionUpdateSection = "update_section"
	PromotionDeleteSection = "delete_section"
	PromotionReorderTasks  = "reorder_tasks"
)

const (
	maxTaskLength     = 500
	promotionCacheTTL = 5 * time.Minute
)

var (
	ErrInvalidCategory  = pkgerrors.Validation("Категория должна быть promotion или reprimand")
	ErrTaskNotFound     = pkgerrors.NotFound("Задача не найдена")
	ErrSectionNotFound  = pkgerrors.NotFound("Раздел не найден")
	ErrSectionExists    = pkgerrors.New(http.StatusBadRequest, pkgerrors.CodeDuplicate, "Раздел с таким ключом уже существует")
	ErrTaskRequired     = pkgerrors.Validation("Текст задачи обязателен")
	ErrTaskTooLong      = pkgerrors.Validation("Текст задачи не должен превышать 500 символов")
	ErrSectionKeyNeeded = pkgerrors.Validation("Ключ раздела обязателен")
	ErrSectionTitle     = pkgerrors.Validation("Название раздела обязательно")
	ErrNegativeMax      = pkgerrors.Validation("Максимум не может быть отрицательным")
	ErrReorderMismatch  = pkgerrors.Validation("Список задач не соответствует разделу")
)

// categorySheets 导出时每个分类一个工作表
var categorySheets = []struct {
	category string
	sheet    string
}{
	{model.CategoryPromotion, "Повышение"},
	{model.CategoryReprimand, "Выговоры"},
}

// PromotionService 晋升/处分积分表
type PromotionService interface {
	List(ctx context.Context, category string) (*dto.PromotionListResponse, error)
	Mutate(ctx context.Context, caller Caller, req *dto.PromotionActionRequest) (*dto.PromotionListResponse, error)
	Export(ctx context.Context) (*bytes.Buffer, string, error)
}

type promotionService struct {
	repo   *repository.Repository
	audit  ActionLogService
	cache  *expirable.LRU[string, *dto.PromotionListResponse]
	logger *zap.Logger
	now    func() time.Time
}

// NewPromotionService 创建 PromotionService 实例
func NewPromotionService(repo *repository.Repository, audit ActionLogService, logger *zap.Logger) PromotionService {
	return &promotionService{
		repo:   repo,
		audit:  audit,
		cache:  expirable.NewLRU[string, *dto.PromotionListResponse](len(categorySheets), nil, promotionCacheTTL),
		logger: logger,
		now:    time.Now,
	}
}

// ────────────────────── List ──────────────────────

// List 按 section_sort, task_sort, id 排好序后聚合成分区
func (s *promotionService) List(ctx context.Context, category string) (*dto.PromotionListResponse, error) {
	if !model.IsValidCategory(category) {
		return nil, ErrInvalidCategory
	}
	if cached, ok := s.cache.Get(category); ok {
		return cached, nil
	}

	items, err := s.repo.Promotion.List(ctx, category)
	if err != nil {
		s.logger.Error("查询积分表失败", zap.String("category", category), zap.Error(err))
		return nil, fmt.Errorf("查询积分表失败: %w", err)
	}

	resp := &dto.PromotionListResponse{Category: category, Sections: groupSections(items)}
	s.cache.Add(category, resp)
	return resp, nil
}

func groupSections(items []model.PromotionSystemItem) []dto.PromotionSection {
	sections := make([]dto.PromotionSection, 0)
	index := make(map[string]int)
	for _, it := range items {
		i, ok := index[it.SectionKey]
		if !ok {
			i = len(sections)
			index[it.SectionKey] = i
			sections = append(sections, dto.PromotionSection{
				Key:      it.SectionKey,
				Title:    it.SectionTitle,
				Subtitle: it.SectionSubtitle,
				Color:    it.SectionColor,
				Sort:     it.SectionSort,
				Items:    []model.PromotionSystemItem{},
			})
		}
		sections[i].Items = append(sections[i].Items, it)
	}
	return sections
}

// ────────────────────── Mutate ──────────────────────

func (s *promotionService) Mutate(ctx context.Context, caller Caller, req *dto.PromotionActionRequest) (*dto.PromotionListResponse, error) {
	_, actor, err := loadActor(ctx, s.repo.User, caller)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, authz.ManagePromotion, authz.Target{}); err != nil {
		return nil, err
	}
	if !model.IsValidCategory(req.Category) {
		return nil, ErrInvalidCategory
	}
	if req.Max != nil && *req.Max < 0 {
		return nil, ErrNegativeMax
	}

	m := &promotionMutation{svc: s, actor: actor, caller: caller, req: req, now: s.now()}
	switch req.Action {
	case PromotionCreateTask:
		err = m.createTask(ctx)
	case PromotionUpdateTask:
		err = m.updateTask(ctx)
	case PromotionDeleteTask:
		err = m.deleteTask(ctx)
	case PromotionCreateSection:
		err = m.createSection(ctx)
	case PromotionUpdateSection:
		err = m.updateSection(ctx)
	case PromotionDeleteSection:
		err = m.deleteSection(ctx)
	case PromotionReorderTasks:
		err = m.reorderTasks(ctx)
	default:
		err = ErrUnknownPatchOp
	}
	if err != nil {
		return nil, err
	}

	s.cache.Remove(req.Category)
	return s.List(ctx, req.Category)
}

// promotionMutation 单次修改的上下文
type promotionMutation struct {
	svc    *promotionService
	actor  authz.Actor
	caller Caller
	req    *dto.PromotionActionRequest
	now    time.Time
}

func (m *promotionMutation) record(ctx context.Context, actionType, text, targetID string, prev, next interface{}) {
	audit := newAudit(m.actor, m.caller, actionType, text)
	audit.TargetType = targetTypePromotion
	audit.TargetID = targetID
	audit.TargetName = m.req.SectionKey
	audit.Previous = prev
	audit.New = next
	audit.Metadata = map[string]interface{}{"category": m.req.Category, "operation": m.req.Action}
	m.svc.audit.Record(ctx, audit)
}

func (m *promotionMutation) fail(msg string, err error) error {
	m.svc.logger.Error(msg, zap.String("action", m.req.Action), zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}

func validateTask(task string) error {
	if task == "" {
		return ErrTaskRequired
	}
	if utf8.RuneCountInString(task) > maxTaskLength {
		return ErrTaskTooLong
	}
	return nil
}

func (m *promotionMutation) createTask(ctx context.Context) error {
	repo := m.svc.repo.Promotion
	key := trim(m.req.SectionKey)
	task := trim(m.req.Task)
	if key == "" {
		return ErrSectionKeyNeeded
	}
	if err := validateTask(task); err != nil {
		return err
	}

	section, err := repo.FirstInSection(ctx, m.req.Category, key)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSectionNotFound
		}
		return m.fail("查询分区失败", err)
	}
	maxSort, err := repo.MaxTaskSort(ctx, m.req.Category, key)
	if err != nil {
		return m.fail("查询排序失败", err)
	}

	item := &model.PromotionSystemItem{
		Category:        m.req.Category,
		SectionKey:      key,
		SectionTitle:    section.SectionTitle,
		SectionSubtitle: section.SectionSubtitle,
		SectionColor:    section.SectionColor,
		SectionSort:     section.SectionSort,
		Task:            task,
		Max:             m.req.Max,
		TaskSort:        maxSort + 1,
		UpdatedAt:       m.now,
		UpdatedBy:       &m.actor.GameNick,
	}
	if m.req.Points != nil {
		item.Points = *m.req.Points
	}
	if err := repo.Create(ctx, item); err != nil {
		return m.fail("创建任务失败", err)
	}
	m.record(ctx, model.ActionCreate, "Добавлена задача в систему баллов", fmt.Sprint(item.ID), nil, item)
	return nil
}

func (m *promotionMutation) updateTask(ctx context.Context) error {
	repo := m.svc.repo.Promotion
	item, err := repo.GetByID(ctx, m.req.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return m.fail("查询任务失败", err)
	}
	if item.Category != m.req.Category {
		return ErrTaskNotFound
	}
	prev := *item

	if task := trim(m.req.Task); task != "" {
		if err := validateTask(task); err != nil {
			return err
		}
		item.Task = task
	}
	if m.req.Max != nil {
		item.Max = m.req.Max
	}
	if m.req.Points != nil {
		item.Points = *m.req.Points
	}
	item.UpdatedAt = m.now
	item.UpdatedBy = &m.actor.GameNick

	if err := repo.Update(ctx, item); err != nil {
		return m.fail("更新任务失败", err)
	}
	m.record(ctx, model.ActionUpdate, "Изменена задача в системе баллов", fmt.Sprint(item.ID), prev, item)
	return nil
}

func (m *promotionMutation) deleteTask(ctx context.Context) error {
	repo := m.svc.repo.Promotion
	item, err := repo.GetByID(ctx, m.req.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return m.fail("查询任务失败", err)
	}
	if item.Category != m.req.Category {
		return ErrTaskNotFound
	}
	if err := repo.Delete(ctx, item.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return m.fail("删除任务失败", err)
	}
	m.record(ctx, model.ActionDelete, "Удалена задача из системы баллов", fmt.Sprint(item.ID), item, nil)
	return nil
}

// createSection 分区没有独立的表，创建分区即写入它的第一条任务
func (m *promotionMutation) createSection(ctx context.Context) error {
	repo := m.svc.repo.Promotion
	key := trim(m.req.SectionKey)
	title := trim(m.req.SectionTitle)
	task := trim(m.req.Task)
	if key == "" {
		return ErrSectionKeyNeeded
	}
	if title == "" {
		return ErrSectionTitle
	}
	if err := validateTask(task); err != nil {
		return err
	}

	if _, err := repo.FirstInSection(ctx, m.req.Category, key); err == nil {
		return ErrSectionExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return m.fail("查询分区失败", err)
	}

	sort := 0
	if m.req.SectionSort != nil {
		sort = *m.req.SectionSort
	} else {
		maxSort, err := repo.MaxSectionSort(ctx, m.req.Category)
		if err != nil {
			return m.fail("查询排序失败", err)
		}
		sort = maxSort + 1
	}

	item := &model.PromotionSystemItem{
		Category:        m.req.Category,
		SectionKey:      key,
		SectionTitle:    title,
		SectionSubtitle: m.req.SectionSubtitle,
		SectionColor:    m.req.SectionColor,
		SectionSort:     sort,
		Task:            task,
		Max:             m.req.Max,
		TaskSort:        1,
		UpdatedAt:       m.now,
		UpdatedBy:       &m.actor.GameNick,
	}
	if m.req.Points != nil {
		item.Points = *m.req.Points
	}
	if err := repo.Create(ctx, item); err != nil {
		return m.fail("创建分区失败", err)
	}
	m.record(ctx, model.ActionCreate, fmt.Sprintf("Создан раздел «%s»", title), key, nil, item)
	return nil
}

func (m *promotionMutation) updateSection(ctx context.Context) error {
	key := trim(m.req.SectionKey)
	if key == "" {
		return ErrSectionKeyNeeded
	}
	fields := map[string]interface{}{
		"updated_at": m.now,
		"updated_by": m.actor.GameNick,
	}
	if title := trim(m.req.SectionTitle); title != "" {
		fields["section_title"] = title
	}
	if m.req.SectionSubtitle != nil {
		fields["section_subtitle"] = *m.req.SectionSubtitle
	}
	if m.req.SectionColor != nil {
		fields["section_color"] = *m.req.SectionColor
	}
	if m.req.SectionSort != nil {
		fields["section_sort"] = *m.req.SectionSort
	}
	if len(fields) == 2 {
		return ErrNothingToUpdate
	}

	rows, err := m.svc.repo.Promotion.UpdateSection(ctx, m.req.Category, key, fields)
	if err != nil {
		return m.fail("更新分区失败", err)
	}
	if rows == 0 {
		return ErrSectionNotFound
	}
	m.record(ctx, model.ActionUpdate, fmt.Sprintf("Изменён раздел «%s»", key), key, nil, fields)
	return nil
}

func (m *promotionMutation) deleteSection(ctx context.Context) error {
	key := trim(m.req.SectionKey)
	if key == "" {
		return ErrSectionKeyNeeded
	}
	rows, err := m.svc.repo.Promotion.DeleteSection(ctx, m.req.Category, key)
	if err != nil {
		return m.fail("删除分区失败", err)
	}
	if rows == 0 {
		return ErrSectionNotFound
	}
	m.record(ctx, model.ActionDelete, fmt.Sprintf("Удалён раздел «%s»", key), key,
		map[string]interface{}{"tasks": rows}, nil)
	return nil
}

func (m *promotionMutation) reorderTasks(ctx context.Context) error {
	key := trim(m.req.SectionKey)
	if key == "" {
		return ErrSectionKeyNeeded
	}
	if len(m.req.IDs) == 0 {
		return pkgerrors.Validation("Передайте порядок задач")
	}
	err := m.svc.repo.Promotion.ReorderTasks(ctx, m.req.Category, key, m.req.IDs, m.actor.GameNick, m.now)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrReorderMismatch
		}
		return m.fail("调整任务顺序失败", err)
	}
	m.record(ctx, model.ActionUpdate, fmt.Sprintf("Изменён порядок задач раздела «%s»", key), key,
		nil, map[string]interface{}{"ids": m.req.IDs})
	return nil
}

// ────────────────────── Export ──────────────────────

func (s *promotionService) Export(ctx context.Context) (*bytes.Buffer, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#D9E1F2"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	sectionStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 12}})

	for i, cs := range categorySheets {
		list, err := s.List(ctx, cs.category)
		if err != nil {
			return nil, "", err
		}

		if i == 0 {
			f.SetSheetName("Sheet1", cs.sheet)
		} else if _, err := f.NewSheet(cs.sheet); err != nil {
			return nil, "", fmt.Errorf("创建工作表失败: %w", err)
		}
		f.SetColWidth(cs.sheet, "A", "A", 70)
		f.SetColWidth(cs.sheet, "B", "C", 12)

		f.SetCellValue(cs.sheet, "A1", "Задача")
		f.SetCellValue(cs.sheet, "B1", "Баллы")
		f.SetCellValue(cs.sheet, "C1", "Максимум")
		f.SetCellStyle(cs.sheet, "A1", "C1", headerStyle)

		row := 2
		for _, sec := range list.Sections {
			f.SetCellValue(cs.sheet, cell("A", row), sec.Title)
			f.SetCellStyle(cs.sheet, cell("A", row), cell("A", row), sectionStyle)
			row++
			for _, it := range sec.Items {
				f.SetCellValue(cs.sheet, cell("A", row), it.Task)
				f.SetCellValue(cs.sheet, cell("B", row), it.Points)
				if it.Max != nil {
					f.SetCellValue(cs.sheet, cell("C", row), *it.Max)
				} else {
					f.SetCellValue(cs.sheet, cell("C", row), "-")
				}
				row++
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", fmt.Errorf("生成 Excel 失败: %w", err)
	}
	return buf, fmt.Sprintf("promotion_system_%s.xlsx", s.now().Format("20060102")), nil
}
