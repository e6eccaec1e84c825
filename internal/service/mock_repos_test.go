package service

import (
	"context"
	"slices"
	"sort"
	"sync"

	"notifiit/backend/internal/model"
	"notifiit/backend/internal/repository"
)

// ── Mock LessonRepository ──
//
// 按 lesson_id 覆盖写入；failBatch 返回非 nil 时整批失败且不落库

type mockLessonRepo struct {
	mu        sync.Mutex
	lessons   map[string]model.Lesson
	batches   [][]model.Lesson
	cleared   []repository.LessonScope
	failBatch func(batch []model.Lesson) error
	listErr   error
}

func newMockLessonRepo() *mockLessonRepo {
	return &mockLessonRepo{lessons: make(map[string]model.Lesson)}
}

func (m *mockLessonRepo) UpsertLessons(_ context.Context, lessons []model.Lesson) (*repository.UpsertResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.batches = append(m.batches, slices.Clone(lessons))
	if m.failBatch != nil {
		if err := m.failBatch(lessons); err != nil {
			return nil, err
		}
	}

	res := &repository.UpsertResult{}
	for _, l := range lessons {
		old, ok := m.lessons[l.LessonID]
		switch {
		case !ok:
			res.Inserted++
		case old.SamePayload(&l):
			res.Unchanged++
		default:
			res.Updated++
		}
		m.lessons[l.LessonID] = l
		res.LessonIDs = append(res.LessonIDs, l.LessonID)
	}
	return res, nil
}

func (m *mockLessonRepo) ClearLessons(_ context.Context, scope repository.LessonScope) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cleared = append(m.cleared, scope)
	var n int64
	for id, l := range m.lessons {
		if len(scope.Groups) > 0 && !slices.Contains(scope.Groups, l.MenGroup) {
			continue
		}
		if scope.Source != "" && scope.Source != l.Source {
			continue
		}
		delete(m.lessons, id)
		n++
	}
	return n, nil
}

func (m *mockLessonRepo) FindBySlot(_ context.Context, slot repository.Slot) ([]model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Lesson
	for _, l := range m.lessons {
		if l.MenGroup == slot.Group && l.SubGroup == slot.SubGroup && l.DayOfWeek == slot.DayOfWeek &&
			l.PairNumber == slot.PairNumber && model.SubjectKey(l.SubjectName) == model.SubjectKey(slot.Subject) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockLessonRepo) List(_ context.Context, f repository.LessonFilter) ([]model.Lesson, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []model.Lesson
	for _, l := range m.lessons {
		if l.MenGroup != f.Group {
			continue
		}
		if f.SubGroup != 0 && l.SubGroup != 0 && l.SubGroup != f.SubGroup {
			continue
		}
		if f.Day != 0 && l.DayOfWeek != f.Day {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.PairNumber != b.PairNumber {
			return a.PairNumber < b.PairNumber
		}
		if a.SubGroup != b.SubGroup {
			return a.SubGroup < b.SubGroup
		}
		return a.LessonID < b.LessonID
	})
	return out, nil
}

func (m *mockLessonRepo) ListGroups(_ context.Context) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[int]bool)
	var out []int
	for _, l := range m.lessons {
		if !seen[l.MenGroup] {
			seen[l.MenGroup] = true
			out = append(out, l.MenGroup)
		}
	}
	sort.Ints(out)
	return out, nil
}

func (m *mockLessonRepo) put(lessons ...model.Lesson) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range lessons {
		m.lessons[l.LessonID] = l
	}
}

func newMockRepository(lessons *mockLessonRepo) *repository.Repository {
	return &repository.Repository{Lesson: lessons}
}

func strPtr(s string) *string { return &s }
