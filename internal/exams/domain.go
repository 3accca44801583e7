package exams

import "time"

// Exam is a scheduled assessment for one class and subject.
type Exam struct {
	ID        int64
	Name      string
	ClassName string
	Subject   string
	MaxScore  int
	HeldOn    time.Time
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mark is a single student's score on an exam.
type Mark struct {
	ID        int64
	ExamID    int64
	StudentID int64
	Score     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Result pairs a mark with its derived percentage and letter grade.
type Result struct {
	Mark    Mark
	Percent float64
	Grade   string
}

// Percent converts a raw score to a 0..100 percentage.
func Percent(score, maxScore int) float64 {
	if maxScore <= 0 {
		return 0
	}
	return float64(score) * 100 / float64(maxScore)
}

// Grade maps a percentage to a letter band.
func Grade(percent float64) string {
	switch {
	case percent >= 90:
		return "A+"
	case percent >= 80:
		return "A"
	case percent >= 70:
		return "B"
	case percent >= 60:
		return "C"
	case percent >= 50:
		return "D"
	default:
		return "F"
	}
}

// ResultOf derives the display result for a mark on the given exam.
func ResultOf(exam Exam, mark Mark) Result {
	percent := Percent(mark.Score, exam.MaxScore)
	return Result{Mark: mark, Percent: percent, Grade: Grade(percent)}
}
