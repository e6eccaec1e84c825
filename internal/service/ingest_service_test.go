package service

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"notifiit/backend/internal/model"
	"notifiit/backend/internal/repository"
	"notifiit/backend/internal/schedule"
	pkgerrors "notifiit/backend/pkg/errors"
)

// ── 测试辅助 ──

type stubCollector struct {
	lessons []schedule.Lesson
	err     error
	calls   int
	groups  []int
}

func (c *stubCollector) Collect(ctx context.Context, groups []int) ([]schedule.Lesson, error) {
	c.calls++
	c.groups = groups
	if c.err != nil {
		return nil, c.err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.lessons, nil
}

type stubLocker struct {
	err      error
	scopes   []string
	released int
}

func (l *stubLocker) Acquire(_ context.Context, scope string, _ time.Duration) (func(context.Context) error, error) {
	l.scopes = append(l.scopes, scope)
	if l.err != nil {
		return nil, l.err
	}
	return func(context.Context) error {
		l.released++
		return nil
	}, nil
}

func rawLesson(group, sub int, day schedule.Weekday, pair int, subject string, e schedule.Evenness) schedule.Lesson {
	return schedule.Lesson{
		PairNumber:  pair,
		SubjectName: subject,
		ClassRoom:   "101",
		Begin:       "09:00",
		DayOfWeek:   day,
		Evenness:    e,
		SubGroup:    sub,
		MenGroup:    group,
		ParityList:  schedule.ParitiesOf(e),
		Source:      schedule.SourceSheet,
	}
}

// 表格：Матан 两个子组 × 两种奇偶 → 归并为 1 条全组 Always；Физика 1 条；240802 的课被过滤
func sheetFixture() *stubCollector {
	return &stubCollector{lessons: []schedule.Lesson{
		rawLesson(240801, 1, schedule.Monday, 1, "Матан", schedule.Odd),
		rawLesson(240801, 2, schedule.Monday, 1, "Матан", schedule.Odd),
		rawLesson(240801, 1, schedule.Monday, 1, "Матан", schedule.Even),
		rawLesson(240801, 2, schedule.Monday, 1, "Матан", schedule.Even),
		rawLesson(240801, 1, schedule.Tuesday, 2, "Физика", schedule.Odd),
		rawLesson(240802, 0, schedule.Wednesday, 1, "Химия", schedule.Always),
	}}
}

func apiFixture() *stubCollector {
	l := rawLesson(240801, 0, schedule.Thursday, 1, "История", schedule.Always)
	l.Source = schedule.SourceAPI
	return &stubCollector{lessons: []schedule.Lesson{l}}
}

type ingestFixture struct {
	svc    IngestService
	repo   *mockLessonRepo
	sheet  *stubCollector
	api    *stubCollector
	locker *stubLocker
	logs   *observer.ObservedLogs
}

func setupTestIngestService(batchSize int) *ingestFixture {
	core, logs := observer.New(zapcore.DebugLevel)
	fx := &ingestFixture{
		repo:   newMockLessonRepo(),
		sheet:  sheetFixture(),
		api:    apiFixture(),
		locker: &stubLocker{},
		logs:   logs,
	}
	fx.svc = NewIngestService(newMockRepository(fx.repo), IngestDeps{
		Sheet:     fx.sheet,
		API:       fx.api,
		Locker:    fx.locker,
		BatchSize: batchSize,
		LockTTL:   time.Minute,
	}, zap.New(core))
	return fx
}

var bothSources = IngestOptions{FromSheet: true, FromAPI: true, Groups: []int{240801}}

// ── Run 测试 ──

func TestIngestService_Run_NoSources(t *testing.T) {
	fx := setupTestIngestService(10)

	if _, err := fx.svc.Run(context.Background(), IngestOptions{}); !errors.Is(err, ErrNoSources) {
		t.Errorf("期望 ErrNoSources，实际: %v", err)
	}

	noSheet := NewIngestService(newMockRepository(fx.repo), IngestDeps{API: fx.api}, zap.NewNop())
	if _, err := noSheet.Run(context.Background(), IngestOptions{FromSheet: true}); !errors.Is(err, ErrNoSources) {
		t.Errorf("未配置的数据源应视为未启用，实际: %v", err)
	}
}

func TestIngestService_Run_Success(t *testing.T) {
	fx := setupTestIngestService(2)

	report, err := fx.svc.Run(context.Background(), bothSources)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if report.RunID == "" {
		t.Error("RunID 不应为空")
	}
	if report.Raw != 6 || report.Normalized != 3 {
		t.Errorf("期望 raw=6 normalized=3，实际 raw=%d normalized=%d", report.Raw, report.Normalized)
	}
	if report.Inserted != 3 || report.Updated != 0 || report.Unchanged != 0 {
		t.Errorf("计数错误: %+v", report)
	}
	if report.Batches != 2 || len(report.FailedBatches) != 0 {
		t.Errorf("期望 2 个批次全部成功，实际 %d / %v", report.Batches, report.FailedBatches)
	}
	if !slices.Equal(fx.sheet.groups, []int{240801}) {
		t.Errorf("目标组应传给数据源，实际 %v", fx.sheet.groups)
	}

	var matan *model.Lesson
	for _, l := range fx.repo.lessons {
		if l.MenGroup != 240801 {
			t.Errorf("非目标组课程不应入库: %+v", l)
		}
		if l.SubjectName == "Матан" {
			matan = &l
		}
	}
	if matan == nil {
		t.Fatal("缺少 Матан")
	}
	if matan.SubGroup != 0 || matan.Evenness != "always" || !matan.ParityList.Equal(model.IntArray{0, 1}) {
		t.Errorf("Матан 应归并为全组每周: %+v", matan)
	}
	if matan.EndTime != nil {
		t.Errorf("缺失的结束时间应为 NULL，实际 %v", *matan.EndTime)
	}
	if len(matan.LessonID) != schedule.LessonIDLength {
		t.Errorf("lesson_id 长度错误: %q", matan.LessonID)
	}
}

func TestIngestService_Run_Idempotent(t *testing.T) {
	fx := setupTestIngestService(100)

	if _, err := fx.svc.Run(context.Background(), bothSources); err != nil {
		t.Fatalf("首次运行失败: %v", err)
	}
	report, err := fx.svc.Run(context.Background(), bothSources)
	if err != nil {
		t.Fatalf("二次运行失败: %v", err)
	}
	if report.Inserted != 0 || report.Unchanged != 3 {
		t.Errorf("二次运行应全部不变，实际 %+v", report)
	}
}

func TestIngestService_Run_FailedBatchContinues(t *testing.T) {
	fx := setupTestIngestService(2)
	dbErr := errors.New("constraint violation")
	fx.repo.failBatch = func(batch []model.Lesson) error {
		for _, l := range batch {
			if l.SubjectName == "Физика" {
				return dbErr
			}
		}
		return nil
	}

	report, err := fx.svc.Run(context.Background(), bothSources)
	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("期望 *BatchError，实际: %v", err)
	}
	if !slices.Equal(batchErr.Failed, []int{0}) || !errors.Is(err, dbErr) {
		t.Errorf("BatchError 内容错误: %v", batchErr)
	}
	if report == nil || report.Inserted != 1 || !slices.Equal(report.FailedBatches, []int{0}) {
		t.Errorf("后续批次应继续入库: %+v", report)
	}
	if n := fx.logs.FilterMessage("批次入库失败").Len(); n != 1 {
		t.Errorf("期望 1 条批次失败日志，实际 %d", n)
	}
}

func TestIngestService_Run_SourceFailureIsolated(t *testing.T) {
	fx := setupTestIngestService(100)
	fx.api.err = errors.New("upstream down")

	report, err := fx.svc.Run(context.Background(), bothSources)
	if err != nil {
		t.Fatalf("单源失败不应中断运行: %v", err)
	}
	if report.Normalized != 2 || report.Inserted != 2 {
		t.Errorf("期望仅表格的 2 条课程，实际 %+v", report)
	}
	warns := fx.logs.FilterMessage("数据源采集失败").All()
	if len(warns) != 1 || warns[0].Level != zapcore.WarnLevel {
		t.Errorf("期望 1 条 Warn 日志，实际 %v", warns)
	}
}

func TestIngestService_Run_ContextCanceled(t *testing.T) {
	fx := setupTestIngestService(100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := fx.svc.Run(ctx, bothSources); !errors.Is(err, context.Canceled) {
		t.Errorf("期望 context.Canceled，实际: %v", err)
	}
	if len(fx.repo.batches) != 0 {
		t.Error("取消后不应写库")
	}
}

func TestIngestService_Run_Reseed(t *testing.T) {
	fx := setupTestIngestService(100)
	fx.repo.put(
		model.Lesson{LessonID: "stale", MenGroup: 240801, SubjectName: "Старое", Source: model.LessonSourceSheet},
		model.Lesson{LessonID: "other", MenGroup: 240802, SubjectName: "Чужое", Source: model.LessonSourceSheet},
	)

	opts := bothSources
	opts.Reseed = true
	report, err := fx.svc.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if report.Cleared != 1 {
		t.Errorf("期望清空 1 条，实际 %d", report.Cleared)
	}
	if len(fx.repo.cleared) != 1 || !slices.Equal(fx.repo.cleared[0].Groups, []int{240801}) {
		t.Errorf("清空范围错误: %+v", fx.repo.cleared)
	}
	if _, ok := fx.repo.lessons["stale"]; ok {
		t.Error("目标组旧课程应被清空")
	}
	if _, ok := fx.repo.lessons["other"]; !ok {
		t.Error("非目标组课程不应被清空")
	}
}

// ── 锁测试 ──

func TestIngestService_Run_LockScope(t *testing.T) {
	fx := setupTestIngestService(100)

	opts := IngestOptions{FromSheet: true, Groups: []int{240802, 240801}}
	if _, err := fx.svc.Run(context.Background(), opts); err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	if _, err := fx.svc.Run(context.Background(), IngestOptions{FromSheet: true}); err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}

	if !slices.Equal(fx.locker.scopes, []string{"240801,240802", "all"}) {
		t.Errorf("锁范围错误: %v", fx.locker.scopes)
	}
	if fx.locker.released != 2 {
		t.Errorf("每次运行结束都应释放锁，实际 %d", fx.locker.released)
	}
}

func TestIngestService_Run_LockHeld(t *testing.T) {
	fx := setupTestIngestService(100)
	fx.locker.err = pkgerrors.ErrReseedInProgress

	if _, err := fx.svc.Run(context.Background(), bothSources); !errors.Is(err, pkgerrors.ErrReseedInProgress) {
		t.Errorf("期望 ErrReseedInProgress，实际: %v", err)
	}
	if fx.sheet.calls != 0 || len(fx.repo.batches) != 0 {
		t.Error("锁被占用时不应采集或写库")
	}
}

func TestIngestService_Run_LockUnavailableDegrades(t *testing.T) {
	fx := setupTestIngestService(100)
	fx.locker.err = errors.New("dial tcp: connection refused")

	report, err := fx.svc.Run(context.Background(), bothSources)
	if err != nil {
		t.Fatalf("Redis 不可用时应降级运行: %v", err)
	}
	if report.Inserted != 3 {
		t.Errorf("期望入库 3 条，实际 %d", report.Inserted)
	}
	if fx.logs.FilterMessage("获取采集锁失败，降级为无锁运行").Len() != 1 {
		t.Error("缺少降级警告")
	}
}

// ── 日志测试 ──

func TestIngestService_Run_SummaryCarriesRunID(t *testing.T) {
	fx := setupTestIngestService(100)

	report, err := fx.svc.Run(context.Background(), bothSources)
	if err != nil {
		t.Fatalf("期望成功，实际: %v", err)
	}
	entries := fx.logs.FilterMessage("采集完成").All()
	if len(entries) != 1 {
		t.Fatalf("期望 1 条汇总日志，实际 %d", len(entries))
	}
	if got := entries[0].ContextMap()["run_id"]; got != report.RunID {
		t.Errorf("run_id 期望 %s，实际 %v", report.RunID, got)
	}
}

// ── 辅助函数测试 ──

func TestLockScope(t *testing.T) {
	if got := lockScope(nil); got != "all" {
		t.Errorf("期望 all，实际 %s", got)
	}
	groups := []int{3, 1, 2}
	if got := lockScope(groups); got != "1,2,3" {
		t.Errorf("期望 1,2,3，实际 %s", got)
	}
	if !slices.Equal(groups, []int{3, 1, 2}) {
		t.Error("lockScope 不应修改入参")
	}
}

func TestToModel(t *testing.T) {
	l := rawLesson(240801, 2, schedule.Friday, 4, "Физика", schedule.Even)
	l.End = "14:20"
	l.LessonID = "abc"

	m := toModel(l)
	if m.DayOfWeek != 5 || m.Evenness != "even" || m.Source != model.LessonSourceSheet || m.StartTime != "09:00" {
		t.Errorf("字段映射错误: %+v", m)
	}
	if m.EndTime == nil || *m.EndTime != "14:20" {
		t.Errorf("结束时间映射错误: %v", m.EndTime)
	}
	m.ParityList[0] = 9
	if l.ParityList[0] != 0 {
		t.Error("ParityList 应为副本")
	}
}

var _ repository.LessonRepository = (*mockLessonRepo)(nil)
