package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"notifiit/backend/internal/model"
	"notifiit/backend/internal/repository"
	"notifiit/backend/internal/schedule"
	pkgerrors "notifiit/backend/pkg/errors"
	"notifiit/backend/pkg/logger"
)

// ── 采集模块业务错误 ──

var (
	ErrNoSources = errors.New("至少需要启用一个数据源")
)

// BatchError 部分批次入库失败；其余批次已提交
type BatchError struct {
	Failed []int // 失败批次序号，0 起
	Err    error // errors.Join 汇总的各批次错误
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("%d 个批次入库失败 %v: %v", len(e.Failed), e.Failed, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }

// LessonCollector 课程数据源；groups 为空表示全部组
type LessonCollector interface {
	Collect(ctx context.Context, groups []int) ([]schedule.Lesson, error)
}

// ReseedLocker 采集互斥锁，返回释放函数
type ReseedLocker interface {
	Acquire(ctx context.Context, scope string, ttl time.Duration) (func(context.Context) error, error)
}

// IngestOptions 单次采集参数
type IngestOptions struct {
	FromSheet bool
	FromAPI   bool
	Groups    []int // 目标组号，空表示全部
	Reseed    bool  // 入库前清空目标范围
}

// IngestReport 单次采集结果
type IngestReport struct {
	RunID         string        `json:"run_id"`
	Raw           int           `json:"raw"`
	Normalized    int           `json:"normalized"`
	Cleared       int64         `json:"cleared"`
	Inserted      int           `json:"inserted"`
	Updated       int           `json:"updated"`
	Unchanged     int           `json:"unchanged"`
	Batches       int           `json:"batches"`
	FailedBatches []int         `json:"failed_batches"`
	Duration      time.Duration `json:"duration"`
}

// IngestService 采集 → 规范化 → 对账入库
type IngestService interface {
	Run(ctx context.Context, opts IngestOptions) (*IngestReport, error)
}

type ingestService struct {
	repo      *repository.Repository
	sheet     LessonCollector
	api       LessonCollector
	locker    ReseedLocker
	batchSize int
	lockTTL   time.Duration
	logger    *zap.Logger
}

// IngestDeps 采集服务依赖；未配置的数据源与锁可为 nil
type IngestDeps struct {
	Sheet     LessonCollector
	API       LessonCollector
	Locker    ReseedLocker
	BatchSize int
	LockTTL   time.Duration
}

// NewIngestService 创建 IngestService 实例
func NewIngestService(repo *repository.Repository, deps IngestDeps, logger *zap.Logger) IngestService {
	if deps.BatchSize <= 0 {
		deps.BatchSize = 100
	}
	if deps.LockTTL <= 0 {
		deps.LockTTL = 10 * time.Minute
	}
	return &ingestService{
		repo:      repo,
		sheet:     deps.Sheet,
		api:       deps.API,
		locker:    deps.Locker,
		batchSize: deps.BatchSize,
		lockTTL:   deps.LockTTL,
		logger:    logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Run 单次采集
// ═══════════════════════════════════════════════════════════
//
// 步骤：
//  1. 获取范围锁（Redis 不可用时降级为无锁）
//  2. Reseed 时清空目标范围
//  3. 依次采集各数据源，单源失败只记录警告
//  4. 过滤目标组 → 子组归并 → 奇偶合并 → 生成 lesson_id
//  5. 分批对账入库，每批独立事务；失败批次不影响后续批次

func (s *ingestService) Run(ctx context.Context, opts IngestOptions) (*IngestReport, error) {
	collectors := s.enabledCollectors(opts)
	if len(collectors) == 0 {
		return nil, ErrNoSources
	}

	start := time.Now()
	report := &IngestReport{RunID: uuid.NewString(), FailedBatches: []int{}}
	log := logger.WithRun(s.logger, report.RunID)

	// 1. 范围锁
	release, err := s.acquire(ctx, lockScope(opts.Groups), log)
	if err != nil {
		return nil, err
	}
	defer release()

	// 2. 清空
	if opts.Reseed {
		n, err := s.repo.Lesson.ClearLessons(ctx, repository.LessonScope{Groups: opts.Groups})
		if err != nil {
			log.Error("清空课程失败", zap.Error(err))
			return nil, fmt.Errorf("清空课程失败: %w", err)
		}
		report.Cleared = n
		log.Info("已清空目标范围", zap.Int64("deleted", n), zap.Ints("groups", opts.Groups))
	}

	// 3. 采集
	var raw []schedule.Lesson
	for _, c := range collectors {
		lessons, err := c.collector.Collect(ctx, opts.Groups)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn("数据源采集失败", zap.String("source", c.name), zap.Error(err))
			continue
		}
		log.Info("数据源采集完成", zap.String("source", c.name), zap.Int("lessons", len(lessons)))
		raw = append(raw, lessons...)
	}
	raw = filterGroups(raw, opts.Groups)
	report.Raw = len(raw)

	// 4. 规范化
	normalized := schedule.Normalize(raw)
	report.Normalized = len(normalized)

	records := make([]model.Lesson, len(normalized))
	for i := range normalized {
		records[i] = toModel(normalized[i])
	}

	// 5. 分批入库
	var batchErrs []error
	for idx, from := 0, 0; from < len(records); idx, from = idx+1, from+s.batchSize {
		to := min(from+s.batchSize, len(records))
		report.Batches++

		res, err := s.repo.Lesson.UpsertLessons(ctx, records[from:to])
		if err != nil {
			log.Error("批次入库失败", zap.Int("batch", idx), zap.Int("size", to-from), zap.Error(err))
			report.FailedBatches = append(report.FailedBatches, idx)
			batchErrs = append(batchErrs, fmt.Errorf("批次 %d: %w", idx, err))
			continue
		}
		report.Inserted += res.Inserted
		report.Updated += res.Updated
		report.Unchanged += res.Unchanged
	}

	report.Duration = time.Since(start)
	log.Info("采集完成",
		zap.Int("raw", report.Raw),
		zap.Int("normalized", report.Normalized),
		zap.Int("inserted", report.Inserted),
		zap.Int("updated", report.Updated),
		zap.Int("unchanged", report.Unchanged),
		zap.Ints("failed_batches", report.FailedBatches),
		zap.Duration("duration", report.Duration),
	)

	if len(batchErrs) > 0 {
		return report, &BatchError{Failed: report.FailedBatches, Err: errors.Join(batchErrs...)}
	}
	return report, nil
}

type namedCollector struct {
	name      string
	collector LessonCollector
}

func (s *ingestService) enabledCollectors(opts IngestOptions) []namedCollector {
	var out []namedCollector
	if opts.FromSheet && s.sheet != nil {
		out = append(out, namedCollector{name: string(schedule.SourceSheet), collector: s.sheet})
	}
	if opts.FromAPI && s.api != nil {
		out = append(out, namedCollector{name: string(schedule.SourceAPI), collector: s.api})
	}
	return out
}

// acquire 获取范围锁；锁被占用时返回 ErrReseedInProgress，Redis 故障时降级为无锁
func (s *ingestService) acquire(ctx context.Context, scope string, log *zap.Logger) (func(), error) {
	noop := func() {}
	if s.locker == nil {
		return noop, nil
	}

	unlock, err := s.locker.Acquire(ctx, scope, s.lockTTL)
	if errors.Is(err, pkgerrors.ErrReseedInProgress) {
		log.Warn("同一范围的采集正在进行", zap.String("scope", scope))
		return nil, err
	}
	if err != nil {
		log.Warn("获取采集锁失败，降级为无锁运行", zap.String("scope", scope), zap.Error(err))
		return noop, nil
	}

	return func() {
		// 使用独立 ctx，保证调用方取消后仍能释放
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := unlock(releaseCtx); err != nil {
			log.Warn("释放采集锁失败", zap.String("scope", scope), zap.Error(err))
		}
	}, nil
}

// lockScope 全量采集使用 all，否则为排序后的组号列表
func lockScope(groups []int) string {
	if len(groups) == 0 {
		return "all"
	}
	sorted := slices.Clone(groups)
	slices.Sort(sorted)
	parts := make([]string, len(sorted))
	for i, g := range sorted {
		parts[i] = strconv.Itoa(g)
	}
	return strings.Join(parts, ",")
}

func filterGroups(lessons []schedule.Lesson, groups []int) []schedule.Lesson {
	if len(groups) == 0 {
		return lessons
	}
	out := make([]schedule.Lesson, 0, len(lessons))
	for _, l := range lessons {
		if slices.Contains(groups, l.MenGroup) {
			out = append(out, l)
		}
	}
	return out
}

// toModel 将规范化后的课程转为持久化记录
func toModel(l schedule.Lesson) model.Lesson {
	var end *string
	if l.End != "" {
		e := l.End
		end = &e
	}
	parities := make(model.IntArray, len(l.ParityList))
	copy(parities, l.ParityList)

	return model.Lesson{
		LessonID:         l.LessonID,
		MenGroup:         l.MenGroup,
		SubGroup:         l.SubGroup,
		DayOfWeek:        int(l.DayOfWeek),
		PairNumber:       l.PairNumber,
		Evenness:         l.Evenness.String(),
		SubjectName:      l.SubjectName,
		TeacherName:      l.TeacherName,
		ClassRoom:        l.ClassRoom,
		AuditoryLocation: l.AuditoryLocation,
		StartTime:        l.Begin,
		EndTime:          end,
		ParityList:       parities,
		Source:           string(l.Source),
	}
}
