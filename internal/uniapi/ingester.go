package uniapi

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"notifiit/backend/config"
	"notifiit/backend/internal/schedule"
)

// ── 接口课程采集 ──────────────────────────────────────────
//
// 接口不区分子组：同一组的两个子组拿到的是同一批事件，
// 子组只体现在 comment 字段（"1 пг."）。因此按 (组, 子组) 各请求一次，
// 再按 comment 过滤：
//   - comment 为空或未提及子组 → 保留
//   - comment 提及当前子组       → 保留
//   - comment 仅提及其它子组     → 丢弃
// ─────────────────────────────────────────────────────────────

var (
	subgroupCommentRegex = regexp.MustCompile(`(\d)\s*пг\.?`)
	groupTitleRegex      = regexp.MustCompile(`(?:^|\D)(\d{6})(?:\D|$)`)
	clockRegex           = regexp.MustCompile(`^(\d{1,2}):(\d{2})`)
)

// ErrNoGroups 目录中没有可采集的组
var ErrNoGroups = errors.New("未发现可采集的组")

// ScheduleAPI 学校课表接口
type ScheduleAPI interface {
	ListGroups(ctx context.Context, divisionID, course int) ([]Group, error)
	GetSchedule(ctx context.Context, groupID int, from, to time.Time) ([]Event, error)
}

// GroupCache 组目录缓存；实现需自行处理序列化
type GroupCache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// TargetGroup 待采集的组：接口内部 id 与 6 位组号
type TargetGroup struct {
	ID   int
	Code int
}

// Options 采集参数
type Options struct {
	DivisionIDs   []int
	Courses       []int
	WindowDays    int
	Concurrency   int
	RequestDelay  time.Duration
	GroupCacheTTL time.Duration
}

// OptionsFromConfig 从配置构造采集参数
func OptionsFromConfig(cfg *config.UniversityAPIConfig) Options {
	return Options{
		DivisionIDs:   cfg.DivisionIDs,
		Courses:       cfg.Courses,
		WindowDays:    cfg.WindowDays,
		Concurrency:   cfg.Concurrency,
		RequestDelay:  cfg.RequestDelay,
		GroupCacheTTL: cfg.GroupCacheTTL,
	}
}

// Ingester 接口课程采集器
type Ingester struct {
	api      ScheduleAPI
	cache    GroupCache
	calendar schedule.SemesterCalendar
	opts     Options
	logger   *zap.Logger
	now      func() time.Time
}

// NewIngester 创建 Ingester 实例；cache 可为 nil
func NewIngester(api ScheduleAPI, cache GroupCache, calendar schedule.SemesterCalendar, opts Options, logger *zap.Logger) *Ingester {
	if opts.WindowDays <= 0 {
		opts.WindowDays = 14
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if len(opts.Courses) == 0 {
		opts.Courses = []int{1, 2, 3, 4}
	}
	return &Ingester{
		api:      api,
		cache:    cache,
		calendar: calendar,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// DiscoverGroups 遍历 院系 × 年级 获取组目录，按接口 id 去重。
// 单次请求失败只记录警告；标题中没有 6 位组号的组被忽略。
func (g *Ingester) DiscoverGroups(ctx context.Context) ([]TargetGroup, error) {
	seen := make(map[int]bool)
	var targets []TargetGroup

	for _, division := range g.opts.DivisionIDs {
		for _, course := range g.opts.Courses {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			groups, err := g.listGroups(ctx, division, course)
			if err != nil {
				g.logger.Warn("获取组目录失败",
					zap.Int("division", division),
					zap.Int("course", course),
					zap.Error(err),
				)
				continue
			}
			for _, grp := range groups {
				code, ok := groupCode(grp.Title)
				if !ok || seen[grp.ID] {
					continue
				}
				seen[grp.ID] = true
				targets = append(targets, TargetGroup{ID: grp.ID, Code: code})
			}
		}
	}
	return targets, nil
}

func (g *Ingester) listGroups(ctx context.Context, division, course int) ([]Group, error) {
	key := fmt.Sprintf("uniapi:groups:%d:%d", division, course)
	if g.cache != nil {
		var cached []Group
		if ok, err := g.cache.GetJSON(ctx, key, &cached); err == nil && ok {
			return cached, nil
		}
	}

	groups, err := g.api.ListGroups(ctx, division, course)
	if err != nil {
		return nil, err
	}

	if g.cache != nil && g.opts.GroupCacheTTL > 0 {
		if err := g.cache.SetJSON(ctx, key, groups, g.opts.GroupCacheTTL); err != nil {
			g.logger.Debug("写入组目录缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return groups, nil
}

// Ingest 按 (组, 子组) 并发抓取未来 WindowDays 天的课程。
// 并发数受 Concurrency 限制，请求之间至少间隔 RequestDelay。
// 单个请求失败只记录警告，返回错误仅在 ctx 取消时发生。
func (g *Ingester) Ingest(ctx context.Context, groups []TargetGroup) ([]schedule.Lesson, error) {
	today := g.now()
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, today.Location())
	to := from.AddDate(0, 0, g.opts.WindowDays-1)

	var limiter *rate.Limiter
	if g.opts.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(g.opts.RequestDelay), 1)
	}

	results := make([][]schedule.Lesson, len(groups)*2)
	var eg errgroup.Group
	eg.SetLimit(g.opts.Concurrency)

	for i, grp := range groups {
		for sub := 1; sub <= 2; sub++ {
			idx := i*2 + sub - 1
			grp, sub := grp, sub
			eg.Go(func() error {
				if limiter != nil {
					if err := limiter.Wait(ctx); err != nil {
						return err
					}
				} else if err := ctx.Err(); err != nil {
					return err
				}

				events, err := g.api.GetSchedule(ctx, grp.ID, from, to)
				if err != nil {
					g.logger.Warn("获取课表失败",
						zap.Int("group", grp.Code),
						zap.Int("group_id", grp.ID),
						zap.Int("subgroup", sub),
						zap.Error(err),
					)
					return nil
				}
				results[idx] = g.convert(grp, sub, events)
				return nil
			})
		}
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return dedupe(results), nil
}

func (g *Ingester) convert(grp TargetGroup, sub int, events []Event) []schedule.Lesson {
	var lessons []schedule.Lesson
	for _, ev := range events {
		if !KeepForSubgroup(ev.Comment, sub) {
			continue
		}
		title := schedule.CollapseSpaces(schedule.StripAnnotations(ev.Title))
		if title == "" {
			continue
		}
		date, err := parseEventDate(ev.Date)
		if err != nil {
			g.logger.Debug("事件日期无效", zap.String("date", ev.Date), zap.Int("group", grp.Code))
			continue
		}

		evenness := g.calendar.EvennessOf(date)
		pair := ev.PairNumber
		if pair < 1 || pair > 7 {
			pair = schedule.PairUnresolved
		}
		lessons = append(lessons, schedule.Lesson{
			PairNumber:       pair,
			SubjectName:      title,
			TeacherName:      schedule.CollapseSpaces(ev.TeacherName),
			ClassRoom:        schedule.CollapseSpaces(ev.AuditoryTitle),
			AuditoryLocation: schedule.CollapseSpaces(ev.AuditoryLocation),
			Begin:            normalizeClock(ev.TimeBegin),
			End:              normalizeClock(ev.TimeEnd),
			DayOfWeek:        schedule.WeekdayOf(date),
			Evenness:         evenness,
			SubGroup:         sub,
			MenGroup:         grp.Code,
			ParityList:       schedule.ParitiesOf(evenness),
			Source:           schedule.SourceAPI,
		})
	}
	return lessons
}

// KeepForSubgroup comment 未提及子组或提及 sub 时保留
func KeepForSubgroup(comment string, sub int) bool {
	matches := subgroupCommentRegex.FindAllStringSubmatch(comment, -1)
	if len(matches) == 0 {
		return true
	}
	want := strconv.Itoa(sub)
	for _, m := range matches {
		if m[1] == want {
			return true
		}
	}
	return false
}

type lessonKey struct {
	Group    int
	SubGroup int
	Day      schedule.Weekday
	Pair     int
	Subject  string
	Evenness schedule.Evenness
}

// dedupe 两周窗口内同一周次的重复事件只保留首个
func dedupe(results [][]schedule.Lesson) []schedule.Lesson {
	seen := make(map[lessonKey]bool)
	var out []schedule.Lesson
	for _, batch := range results {
		for _, l := range batch {
			k := lessonKey{l.MenGroup, l.SubGroup, l.DayOfWeek, l.PairNumber, l.SubjectName, l.Evenness}
			if seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, l)
		}
	}
	return out
}

func groupCode(title string) (int, bool) {
	m := groupTitleRegex.FindStringSubmatch(title)
	if m == nil {
		return 0, false
	}
	code, _ := strconv.Atoi(m[1])
	return code, true
}

// parseEventDate 接受 "2006-01-02" 或带时间的 ISO 格式
func parseEventDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	return time.Parse(dateLayout, s)
}

// normalizeClock "9:00:00" → "09:00"，无法识别时返回空串
func normalizeClock(s string) string {
	m := clockRegex.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return ""
	}
	h, _ := strconv.Atoi(m[1])
	return fmt.Sprintf("%02d:%s", h, m[2])
}

// Collect 发现组目录并抓取课程；groups 非空时只抓取其中的组号
func (g *Ingester) Collect(ctx context.Context, groups []int) ([]schedule.Lesson, error) {
	targets, err := g.DiscoverGroups(ctx)
	if err != nil {
		return nil, err
	}
	if len(groups) > 0 {
		want := make(map[int]bool, len(groups))
		for _, code := range groups {
			want[code] = true
		}
		filtered := targets[:0]
		for _, t := range targets {
			if want[t.Code] {
				filtered = append(filtered, t)
			}
		}
		targets = filtered
	}
	if len(targets) == 0 {
		return nil, ErrNoGroups
	}
	return g.Ingest(ctx, targets)
}
