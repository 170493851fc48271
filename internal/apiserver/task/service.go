package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"workerbee/internal/shared/apperr"
	"workerbee/internal/shared/eventbus"
	"workerbee/internal/shared/model"
	"workerbee/internal/shared/storage"
)

// DefaultListLimit 列表默认条数；请求显式传 0 或负数表示不截断
const DefaultListLimit = 50

// Service 任务业务逻辑
type Service struct {
	store storage.PersistentStore
	bus   eventbus.TaskEventBus

	// strictStatus 启用后 status/completed 矛盾的写入直接拒绝
	strictStatus bool

	// now 可注入的时钟，测试用
	now func() time.Time
}

// NewService 创建任务服务
func NewService(store storage.PersistentStore, bus eventbus.TaskEventBus, strictStatus bool) *Service {
	if bus == nil {
		bus = eventbus.NewNoop()
	}
	return &Service{store: store, bus: bus, strictStatus: strictStatus, now: time.Now}
}

// View 任务的响应形状：completed 为派生投影，引用已解析
type View struct {
	ID          string             `json:"id"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Priority    model.TaskPriority `json:"priority"`
	Status      model.TaskStatus   `json:"status"`
	Completed   bool               `json:"completed"`
	DueDate     *time.Time         `json:"due_date,omitempty"`
	AssignedTo  ResolvedRef        `json:"assigned_to"`
	CreatedBy   ResolvedRef        `json:"created_by"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
	CompletedBy *ResolvedRef       `json:"completed_by,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

func newView(t *model.Task, idx UserIndex) *View {
	v := &View{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Status:      t.Status,
		Completed:   t.Completed(),
		DueDate:     t.DueDate,
		AssignedTo:  idx.Resolve(t.AssignedTo),
		CreatedBy:   idx.Resolve(t.CreatedBy),
		CompletedAt: t.CompletedAt,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.CompletedBy != nil {
		ref := idx.Resolve(*t.CompletedBy)
		v.CompletedBy = &ref
	}
	return v
}

// ============================================================================
// List
// ============================================================================

// ListOptions 列表查询参数
type ListOptions struct {
	Status    string // "all" | "pending" | "completed"，空等价于 all
	Priority  string // 空表示不过滤
	Search    string // 标题/描述大小写无关子串
	Limit     int    // <=0 不截断
	SortBy    string // 默认 created_at
	SortOrder string // asc | desc，默认 desc
}

// ListResult 列表响应
type ListResult struct {
	Tasks []*View `json:"tasks"`
	Total int     `json:"total"`
}

// List 查询任务列表
//
// 任务和用户并发拉取；过滤顺序固定为 状态→优先级→搜索，随后排序、
// 截断。Total 为过滤后、截断前的条数，客户端据此显示"还有更多"。
// 无法归一化的脏记录丢弃并记日志，不让单条数据拖垮整个列表。
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResult, error) {
	var (
		tasks []*model.Task
		users []*model.User
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tasks, err = s.store.ListTasks(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		users, err = s.store.ListUsers(gctx, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, translateStoreErr("list tasks", err)
	}

	idx := NewUserIndex(users)

	filtered := make([]*model.Task, 0, len(tasks))
	for _, t := range tasks {
		if err := checkRecord(t); err != nil {
			log.Printf("[task] dropping malformed record: %v", err)
			continue
		}
		if !matchStatus(t, opts.Status) || !matchPriority(t, opts.Priority) || !matchSearch(t, opts.Search) {
			continue
		}
		filtered = append(filtered, t)
	}

	sortTasks(filtered, opts.SortBy, opts.SortOrder)

	total := len(filtered)
	if opts.Limit > 0 && len(filtered) > opts.Limit {
		filtered = filtered[:opts.Limit]
	}

	views := make([]*View, 0, len(filtered))
	for _, t := range filtered {
		views = append(views, newView(t, idx))
	}
	return &ListResult{Tasks: views, Total: total}, nil
}

// checkRecord 拒收无法归一化的记录（空 ID、非法枚举）
func checkRecord(t *model.Task) error {
	if t == nil || t.ID == "" {
		return fmt.Errorf("task without id")
	}
	if !model.ValidStatus(t.Status) {
		return fmt.Errorf("task %s: invalid status %q", t.ID, t.Status)
	}
	if !model.ValidPriority(t.Priority) {
		return fmt.Errorf("task %s: invalid priority %q", t.ID, t.Priority)
	}
	return nil
}

func matchStatus(t *model.Task, status string) bool {
	switch status {
	case "", "all":
		return true
	default:
		return string(t.Status) == status
	}
}

func matchPriority(t *model.Task, priority string) bool {
	return priority == "" || string(t.Priority) == priority
}

func matchSearch(t *model.Task, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	return strings.Contains(strings.ToLower(t.Title), needle) ||
		strings.Contains(strings.ToLower(t.Description), needle)
}

// 时间语义的排序字段
var dateSortFields = map[string]func(*model.Task) *time.Time{
	"created_at":   func(t *model.Task) *time.Time { return &t.CreatedAt },
	"updated_at":   func(t *model.Task) *time.Time { return &t.UpdatedAt },
	"due_date":     func(t *model.Task) *time.Time { return t.DueDate },
	"completed_at": func(t *model.Task) *time.Time { return t.CompletedAt },
}

var textSortFields = map[string]func(*model.Task) string{
	"title":    func(t *model.Task) string { return strings.ToLower(t.Title) },
	"priority": func(t *model.Task) string { return string(t.Priority) },
	"status":   func(t *model.Task) string { return string(t.Status) },
}

// sortTasks 按字段排序：时间字段按时间戳比较（缺失的时间排在最后），
// 其余字段按字典序。未知字段回落到 created_at。
func sortTasks(tasks []*model.Task, sortBy, sortOrder string) {
	asc := sortOrder == "asc"

	if getter, ok := dateSortFields[normalizeSortField(sortBy)]; ok {
		sort.SliceStable(tasks, func(i, j int) bool {
			a, b := getter(tasks[i]), getter(tasks[j])
			switch {
			case a == nil && b == nil:
				return false
			case a == nil:
				return false // 无时间值的排最后，与方向无关
			case b == nil:
				return true
			case asc:
				return a.Before(*b)
			default:
				return a.After(*b)
			}
		})
		return
	}

	if getter, ok := textSortFields[normalizeSortField(sortBy)]; ok {
		sort.SliceStable(tasks, func(i, j int) bool {
			if asc {
				return getter(tasks[i]) < getter(tasks[j])
			}
			return getter(tasks[i]) > getter(tasks[j])
		})
		return
	}

	// 未知字段：按默认 created_at desc
	sortTasks(tasks, "created_at", sortOrder)
}

// normalizeSortField 同时接受 snake_case 和旧客户端的 camelCase
func normalizeSortField(field string) string {
	switch field {
	case "createdAt":
		return "created_at"
	case "updatedAt":
		return "updated_at"
	case "dueDate":
		return "due_date"
	case "completedAt":
		return "completed_at"
	case "":
		return "created_at"
	}
	return field
}

// ============================================================================
// Get / Create / Update / Delete
// ============================================================================

// Get 查询单个任务
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, translateStoreErr("get task", err)
	}
	idx, err := s.userIndex(ctx)
	if err != nil {
		return nil, err
	}
	return newView(t, idx), nil
}

// CreateInput 创建任务请求
type CreateInput struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Priority    string  `json:"priority"`
	DueDate     *string `json:"due_date"`
	AssignedTo  string  `json:"assigned_to"`
}

// Create 创建任务：状态固定从 pending 起步，assigned_to 缺省指向创建者
func (s *Service) Create(ctx context.Context, actorID string, in CreateInput) (*View, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperr.New(apperr.KindValidation, "title is required")
	}
	if len(title) > model.TitleMaxLen {
		return nil, apperr.Newf(apperr.KindValidation, "title must be at most %d characters", model.TitleMaxLen)
	}
	if len(in.Description) > model.DescriptionMaxLen {
		return nil, apperr.Newf(apperr.KindValidation, "description must be at most %d characters", model.DescriptionMaxLen)
	}

	priority := model.PriorityMedium
	if in.Priority != "" {
		priority = model.TaskPriority(in.Priority)
		if !model.ValidPriority(priority) {
			return nil, apperr.Newf(apperr.KindValidation, "invalid priority %q", in.Priority)
		}
	}

	dueDate, err := parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	assignedTo := strings.TrimSpace(in.AssignedTo)
	if assignedTo == "" {
		assignedTo = actorID
	}

	now := s.now().UTC()
	t := &model.Task{
		ID:          model.NewID(model.IDPrefixTask),
		Title:       title,
		Description: in.Description,
		Priority:    priority,
		Status:      model.StatusPending,
		DueDate:     dueDate,
		AssignedTo:  assignedTo,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.store.CreateTask(ctx, t); err != nil {
		return nil, translateStoreErr("create task", err)
	}

	s.publish(ctx, eventbus.EventTaskCreated, actorID, t)

	idx, err := s.userIndex(ctx)
	if err != nil {
		return nil, err
	}
	return newView(t, idx), nil
}

// Update 更新任务：只合并提交的字段，状态变化走协调器和归档打点
func (s *Service) Update(ctx context.Context, actorID, id string, p *Patch) (*View, error) {
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, translateStoreErr("update task", err)
	}

	status, err := ReconcileStatus(p, s.strictStatus)
	if err != nil {
		return nil, err
	}

	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return nil, apperr.New(apperr.KindValidation, "title is required")
		}
		if len(title) > model.TitleMaxLen {
			return nil, apperr.Newf(apperr.KindValidation, "title must be at most %d characters", model.TitleMaxLen)
		}
		t.Title = title
	}
	if p.Description != nil {
		if len(*p.Description) > model.DescriptionMaxLen {
			return nil, apperr.Newf(apperr.KindValidation, "description must be at most %d characters", model.DescriptionMaxLen)
		}
		t.Description = *p.Description
	}
	if p.Priority != nil {
		priority := model.TaskPriority(*p.Priority)
		if !model.ValidPriority(priority) {
			return nil, apperr.Newf(apperr.KindValidation, "invalid priority %q", *p.Priority)
		}
		t.Priority = priority
	}
	if p.DueDate != nil {
		due, err := parseDueDate(p.DueDate)
		if err != nil {
			return nil, err
		}
		t.DueDate = due
	}
	if p.AssignedTo != nil {
		t.AssignedTo = strings.TrimSpace(*p.AssignedTo)
	}

	now := s.now().UTC()
	if status != nil {
		ApplyStatusChange(t, *status, actorID, now)
	}
	t.UpdatedAt = now

	if err := s.store.UpdateTask(ctx, t); err != nil {
		return nil, translateStoreErr("update task", err)
	}

	s.publish(ctx, eventbus.EventTaskUpdated, actorID, t)

	idx, err := s.userIndex(ctx)
	if err != nil {
		return nil, err
	}
	return newView(t, idx), nil
}

// Delete 删除任务
func (s *Service) Delete(ctx context.Context, actorID, id string) error {
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return translateStoreErr("delete task", err)
	}

	s.publish(ctx, eventbus.EventTaskDeleted, actorID, &model.Task{ID: id})
	return nil
}

// ============================================================================
// Stats
// ============================================================================

// Stats 用户维度的任务统计
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
	Overdue   int `json:"overdue"`
}

// StatsForUser 统计分配给该用户的任务
func (s *Service) StatsForUser(ctx context.Context, userID string) (*Stats, error) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		return nil, translateStoreErr("task stats", err)
	}

	now := s.now().UTC()
	stats := &Stats{}
	for _, t := range tasks {
		if t.AssignedTo != userID {
			continue
		}
		stats.Total++
		if t.Completed() {
			stats.Completed++
		} else {
			stats.Pending++
		}
		if t.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

// ============================================================================
// 内部工具
// ============================================================================

func (s *Service) userIndex(ctx context.Context) (UserIndex, error) {
	users, err := s.store.ListUsers(ctx, "")
	if err != nil {
		return nil, translateStoreErr("list users", err)
	}
	return NewUserIndex(users), nil
}

// publish 事件发布尽力而为，失败只记日志不影响主流程
func (s *Service) publish(ctx context.Context, eventType, actorID string, t *model.Task) {
	event := &eventbus.TaskEvent{
		Type:      eventType,
		TaskID:    t.ID,
		ActorID:   actorID,
		Timestamp: s.now().UTC(),
	}
	if eventType != eventbus.EventTaskDeleted {
		event.Task = t
	}
	if err := s.bus.PublishTaskEvent(ctx, event); err != nil {
		log.Printf("[task] publish %s for %s failed: %v", eventType, t.ID, err)
	}
}

var dueDateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDueDate 解析截止时间，接受 RFC3339 和纯日期两种格式；
// 显式传空串表示清除截止时间
func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, apperr.Newf(apperr.KindValidation, "invalid due date %q, want RFC3339 or YYYY-MM-DD", s)
}

// translateStoreErr 存储层错误 → 业务错误
func translateStoreErr(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return apperr.New(apperr.KindNotFound, "task not found")
	case errors.Is(err, storage.ErrDuplicate):
		return apperr.New(apperr.KindConflict, "task already exists")
	case errors.Is(err, storage.ErrUnavailable):
		return apperr.Wrap(apperr.KindUpstream, "storage backend unavailable, try again later", err)
	default:
		return apperr.Wrap(apperr.KindInternal, "internal server error", fmt.Errorf("%s: %w", op, err))
	}
}
