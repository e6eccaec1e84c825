package schedule

import (
	"reflect"
	"testing"
)

func physics(sub int, e Evenness) Lesson {
	return Lesson{
		PairNumber:       1,
		SubjectName:      "Физика",
		TeacherName:      "Петров П.П.",
		ClassRoom:        "528",
		AuditoryLocation: LocationPrimary,
		DayOfWeek:        Monday,
		Evenness:         e,
		SubGroup:         sub,
		MenGroup:         240801,
		ParityList:       ParitiesOf(e),
	}
}

func TestNormalizeSubgroups_CollapsesTwins(t *testing.T) {
	in := []Lesson{physics(1, Odd), physics(2, Odd)}

	out := NormalizeSubgroups(in)

	if len(out) != 1 {
		t.Fatalf("期望 1 节课, 实际 %d", len(out))
	}
	if out[0].SubGroup != SubGroupWhole {
		t.Errorf("期望 subGroup=0, 实际 %d", out[0].SubGroup)
	}
	// 输入不应被修改
	if in[0].SubGroup != 1 || in[1].SubGroup != 2 {
		t.Error("NormalizeSubgroups 修改了输入")
	}
}

func TestNormalizeSubgroups_KeepsSingleSubgroup(t *testing.T) {
	other := physics(2, Odd)
	other.ClassRoom = "530"
	in := []Lesson{physics(1, Odd), other}

	out := NormalizeSubgroups(in)

	if len(out) != 2 {
		t.Fatalf("期望 2 节课, 实际 %d", len(out))
	}
	if out[0].SubGroup != 1 || out[1].SubGroup != 2 {
		t.Errorf("子组不应改变: %d, %d", out[0].SubGroup, out[1].SubGroup)
	}
}

func TestNormalizeSubgroups_DifferentEvennessNotCollapsed(t *testing.T) {
	out := NormalizeSubgroups([]Lesson{physics(1, Odd), physics(2, Even)})
	if len(out) != 2 {
		t.Fatalf("期望 2 节课, 实际 %d", len(out))
	}
}

func TestNormalizeSubgroups_Idempotent(t *testing.T) {
	chem := physics(1, Even)
	chem.SubjectName = "Химия"
	in := []Lesson{physics(1, Odd), physics(2, Odd), chem, physics(1, Always)}

	once := NormalizeSubgroups(in)
	twice := NormalizeSubgroups(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("NormalizeSubgroups 非幂等:\n%+v\n%+v", once, twice)
	}
}

func TestMergeByParity_EvenAndOdd(t *testing.T) {
	out := MergeByParity([]Lesson{physics(0, Even), physics(0, Odd)})

	if len(out) != 1 {
		t.Fatalf("期望 1 节课, 实际 %d", len(out))
	}
	if out[0].Evenness != Always {
		t.Errorf("期望 Always, 实际 %s", out[0].Evenness)
	}
	if !reflect.DeepEqual(out[0].ParityList, []int{0, 1}) {
		t.Errorf("期望 parityList=[0 1], 实际 %v", out[0].ParityList)
	}
}

func TestMergeByParity_SingleParityUnchanged(t *testing.T) {
	in := []Lesson{physics(0, Even)}
	out := MergeByParity(in)
	if !reflect.DeepEqual(in, out) {
		t.Errorf("单一奇偶应原样输出:\n%+v\n%+v", in, out)
	}
}

func TestMergeByParity_AlwaysOnlyUnchanged(t *testing.T) {
	in := []Lesson{physics(0, Always), physics(0, Even)}
	out := MergeByParity(in)
	if len(out) != 2 {
		t.Fatalf("无 Odd 成员时不应合并, 实际 %d", len(out))
	}
}

func TestMergeByParity_DifferentSubgroupsNotMerged(t *testing.T) {
	out := MergeByParity([]Lesson{physics(1, Even), physics(2, Odd)})
	if len(out) != 2 {
		t.Fatalf("期望 2 节课, 实际 %d", len(out))
	}
}

func TestNormalize_FullPipeline(t *testing.T) {
	in := []Lesson{
		physics(1, Odd), physics(2, Odd),
		physics(1, Even), physics(2, Even),
	}

	out := Normalize(in)

	if len(out) != 1 {
		t.Fatalf("期望 1 节课, 实际 %d: %+v", len(out), out)
	}
	got := out[0]
	if got.SubGroup != SubGroupWhole || got.Evenness != Always {
		t.Errorf("期望全组每周, 实际 sub=%d evenness=%s", got.SubGroup, got.Evenness)
	}
	if got.LessonID == "" {
		t.Error("LessonID 不应为空")
	}
}
