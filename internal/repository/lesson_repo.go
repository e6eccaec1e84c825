package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"notifiit/backend/internal/model"
)

// evennessAlways 与 schedule.Always.String() 一致
const evennessAlways = "always"

// LessonScope 清理范围；字段为空表示不限
type LessonScope struct {
	Groups []int
	Source string
}

// Slot 对账查找键：同组同子组的 (星期, 节次, 课程名不区分大小写)
type Slot struct {
	Group      int
	SubGroup   int
	DayOfWeek  int
	PairNumber int
	Subject    string
}

// LessonFilter 查询条件；SubGroup 为 0 时返回所有子组，Day 为 0 时返回整周
type LessonFilter struct {
	Group    int
	SubGroup int
	Day      int
}

// UpsertResult 单批对账结果
type UpsertResult struct {
	Inserted  int
	Updated   int
	Unchanged int
	LessonIDs []string // 批内每条课程最终落库的 id，顺序与输入一致
}

// LessonRepository 课程数据访问接口
type LessonRepository interface {
	UpsertLessons(ctx context.Context, lessons []model.Lesson) (*UpsertResult, error)
	ClearLessons(ctx context.Context, scope LessonScope) (int64, error)
	FindBySlot(ctx context.Context, slot Slot) ([]model.Lesson, error)
	List(ctx context.Context, f LessonFilter) ([]model.Lesson, error)
	ListGroups(ctx context.Context) ([]int, error)
}

type lessonRepo struct {
	db *gorm.DB
}

// NewLessonRepo 创建 LessonRepository 实例
func NewLessonRepo(db *gorm.DB) LessonRepository {
	return &lessonRepo{db: db}
}

// UpsertLessons 在单个事务内对账一批课程，任一失败整批回滚。
//
//	Always 课程：按 lesson_id 插入，已存在时原地更新
//	其它课程：按 Slot 查找同奇偶记录，找到则更新教师/教室/地点/时间并保留原 id，否则插入
func (r *lessonRepo) UpsertLessons(ctx context.Context, lessons []model.Lesson) (*UpsertResult, error) {
	res := &UpsertResult{LessonIDs: make([]string, 0, len(lessons))}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range lessons {
			l := lessons[i]
			l.SubjectKey = model.SubjectKey(l.SubjectName)

			existing, err := findExisting(tx, &l)
			if err != nil {
				return fmt.Errorf("查找课程 %s 失败: %w", l.LessonID, err)
			}

			switch {
			case existing == nil:
				if err := tx.Create(&l).Error; err != nil {
					return fmt.Errorf("插入课程 %s 失败: %w", l.LessonID, err)
				}
				res.Inserted++
				res.LessonIDs = append(res.LessonIDs, l.LessonID)
			case existing.SamePayload(&l):
				res.Unchanged++
				res.LessonIDs = append(res.LessonIDs, existing.LessonID)
			default:
				if err := updatePayload(tx, existing.LessonID, &l); err != nil {
					return fmt.Errorf("更新课程 %s 失败: %w", existing.LessonID, err)
				}
				res.Updated++
				res.LessonIDs = append(res.LessonIDs, existing.LessonID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func findExisting(tx *gorm.DB, l *model.Lesson) (*model.Lesson, error) {
	if l.Evenness == evennessAlways {
		var cur model.Lesson
		err := tx.Where("lesson_id = ?", l.LessonID).Take(&cur).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return &cur, nil
	}

	cands, err := findBySlot(tx, Slot{
		Group:      l.MenGroup,
		SubGroup:   l.SubGroup,
		DayOfWeek:  l.DayOfWeek,
		PairNumber: l.PairNumber,
		Subject:    l.SubjectName,
	})
	if err != nil {
		return nil, err
	}
	for i := range cands {
		if cands[i].Evenness == l.Evenness {
			return &cands[i], nil
		}
	}
	return nil, nil
}

func updatePayload(tx *gorm.DB, id string, l *model.Lesson) error {
	return tx.Model(&model.Lesson{}).
		Where("lesson_id = ?", id).
		Updates(map[string]interface{}{
			"subject_name":      l.SubjectName,
			"teacher_name":      l.TeacherName,
			"class_room":        l.ClassRoom,
			"auditory_location": l.AuditoryLocation,
			"start_time":        l.StartTime,
			"end_time":          l.EndTime,
			"parity_list":       l.ParityList,
			"source":            l.Source,
			"updated_at":        time.Now(),
		}).Error
}

// ClearLessons 删除范围内的课程，返回删除条数
func (r *lessonRepo) ClearLessons(ctx context.Context, scope LessonScope) (int64, error) {
	db := r.db.WithContext(ctx)
	if len(scope.Groups) == 0 && scope.Source == "" {
		db = db.Session(&gorm.Session{AllowGlobalUpdate: true})
	}
	if len(scope.Groups) > 0 {
		db = db.Where("men_group IN ?", scope.Groups)
	}
	if scope.Source != "" {
		db = db.Where("source = ?", scope.Source)
	}
	result := db.Delete(&model.Lesson{})
	return result.RowsAffected, result.Error
}

func (r *lessonRepo) FindBySlot(ctx context.Context, slot Slot) ([]model.Lesson, error) {
	return findBySlot(r.db.WithContext(ctx), slot)
}

func findBySlot(db *gorm.DB, slot Slot) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := db.
		Where("men_group = ? AND sub_group = ? AND day_of_week = ? AND pair_number = ? AND subject_key = ?",
			slot.Group, slot.SubGroup, slot.DayOfWeek, slot.PairNumber, model.SubjectKey(slot.Subject)).
		Order("lesson_id ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *lessonRepo) List(ctx context.Context, f LessonFilter) ([]model.Lesson, error) {
	db := r.db.WithContext(ctx).Where("men_group = ?", f.Group)
	if f.SubGroup != 0 {
		db = db.Where("sub_group IN ?", []int{0, f.SubGroup})
	}
	if f.Day != 0 {
		db = db.Where("day_of_week = ?", f.Day)
	}

	var lessons []model.Lesson
	err := db.Order("day_of_week ASC, pair_number ASC, sub_group ASC, lesson_id ASC").Find(&lessons).Error
	return lessons, err
}

func (r *lessonRepo) ListGroups(ctx context.Context) ([]int, error) {
	var groups []int
	err := r.db.WithContext(ctx).
		Model(&model.Lesson{}).
		Distinct("men_group").
		Order("men_group ASC").
		Pluck("men_group", &groups).Error
	return groups, err
}
