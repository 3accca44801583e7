package exams

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/schoolyard-app/schoolyard/internal/shared"
)

type memoryRepo struct {
	nextID int64
	exams  map[int64]Exam
	marks  map[int64]map[int64]Mark // examID -> studentID -> mark
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{nextID: 1, exams: make(map[int64]Exam), marks: make(map[int64]map[int64]Mark)}
}

func (r *memoryRepo) List(ctx context.Context, className string, limit, offset int) ([]Exam, int, error) {
	var result []Exam
	for _, e := range r.exams {
		if className == "" || e.ClassName == className {
			result = append(result, e)
		}
	}
	return result, len(result), nil
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (Exam, error) {
	e, ok := r.exams[id]
	if !ok {
		return Exam{}, shared.ErrNotFound
	}
	return e, nil
}

func (r *memoryRepo) Create(ctx context.Context, e Exam) (Exam, error) {
	e.ID = r.nextID
	r.nextID++
	r.exams[e.ID] = e
	return e, nil
}

func (r *memoryRepo) UpsertMark(ctx context.Context, m Mark) error {
	if r.marks[m.ExamID] == nil {
		r.marks[m.ExamID] = make(map[int64]Mark)
	}
	r.marks[m.ExamID][m.StudentID] = m
	return nil
}

func (r *memoryRepo) MarksForExam(ctx context.Context, examID int64) (map[int64]Mark, error) {
	result := make(map[int64]Mark)
	for id, m := range r.marks[examID] {
		result[id] = m
	}
	return result, nil
}

func (r *memoryRepo) MarksForStudent(ctx context.Context, studentID int64) ([]Exam, []Mark, error) {
	var es []Exam
	var ms []Mark
	for examID, byStudent := range r.marks {
		if m, ok := byStudent[studentID]; ok {
			es = append(es, r.exams[examID])
			ms = append(ms, m)
		}
	}
	return es, ms, nil
}

type recordingAuditor struct {
	actions []string
}

func (a *recordingAuditor) Append(ctx context.Context, event shared.AuditEvent) error {
	a.actions = append(a.actions, event.Action)
	return nil
}

func seedExam(t *testing.T, svc *Service, maxScore int) Exam {
	t.Helper()
	exam, err := svc.Create(context.Background(), 1, Exam{
		Name:      "Midterm",
		ClassName: "8A",
		Subject:   "Mathematics",
		MaxScore:  maxScore,
		HeldOn:    time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return exam
}

func TestCreateRejectsNonPositiveMaxScore(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	_, err := svc.Create(context.Background(), 1, Exam{Name: "Quiz", MaxScore: 0})
	require.Error(t, err)
}

func TestEnterMarksValidatesRangeBeforeWrites(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	exam := seedExam(t, svc, 50)

	err := svc.EnterMarks(context.Background(), 1, exam.ID, map[int64]int{
		10: 45,
		11: 51,
	})
	require.Error(t, err)
	require.Empty(t, repo.marks[exam.ID])

	err = svc.EnterMarks(context.Background(), 1, exam.ID, map[int64]int{10: -1})
	require.Error(t, err)
}

func TestEnterMarksUpsertsAndAudits(t *testing.T) {
	repo := newMemoryRepo()
	auditor := &recordingAuditor{}
	svc := NewService(repo, auditor)
	exam := seedExam(t, svc, 100)
	ctx := context.Background()

	require.NoError(t, svc.EnterMarks(ctx, 1, exam.ID, map[int64]int{10: 61}))
	require.NoError(t, svc.EnterMarks(ctx, 1, exam.ID, map[int64]int{10: 78}))

	marks, err := svc.Marks(ctx, exam.ID)
	require.NoError(t, err)
	require.Len(t, marks, 1)
	require.Equal(t, 78, marks[10].Score)
	require.Equal(t, []string{"exams.create", "exams.marks.enter", "exams.marks.enter"}, auditor.actions)
}

func TestEnterMarksUnknownExam(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil)
	err := svc.EnterMarks(context.Background(), 1, 404, map[int64]int{10: 5})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGradeBands(t *testing.T) {
	cases := map[float64]string{
		100: "A+", 90: "A+", 89.9: "A", 80: "A",
		79: "B", 70: "B", 69: "C", 60: "C",
		59: "D", 50: "D", 49.9: "F", 0: "F",
	}
	for percent, want := range cases {
		require.Equal(t, want, Grade(percent), "percent %v", percent)
	}
}

func TestStudentResultsDeriveGrades(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil)
	exam := seedExam(t, svc, 80)
	ctx := context.Background()

	require.NoError(t, svc.EnterMarks(ctx, 1, exam.ID, map[int64]int{10: 60}))

	es, results, err := svc.StudentResults(ctx, 10)
	require.NoError(t, err)
	require.Len(t, es, 1)
	require.Len(t, results, 1)
	require.InDelta(t, 75.0, results[0].Percent, 0.001)
	require.Equal(t, "B", results[0].Grade)
}
