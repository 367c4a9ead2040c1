package services_test

import (
	"testing"
	"time"

	"cohort-points-system/models"
	"cohort-points-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march10 = time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)

func TestAttendanceCandidate(t *testing.T) {
	tests := []struct {
		status     string
		wantPoints int
		wantReason string
		wantNil    bool
	}{
		{status: "present", wantPoints: 10, wantReason: "attendance_present_2026-03-10"},
		{status: "absent", wantPoints: -10, wantReason: "attendance_absent_2026-03-10"},
		{status: "late", wantNil: true},
		{status: "Present", wantPoints: 10, wantReason: "attendance_present_2026-03-10"},
		{status: "unknown", wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			cand := services.AttendanceCandidate(tt.status, "att-1", march10)
			if tt.wantNil {
				assert.Nil(t, cand, "no entry for %q", tt.status)
				return
			}
			require.NotNil(t, cand)
			assert.Equal(t, tt.wantPoints, cand.Points)
			assert.Equal(t, tt.wantReason, cand.Reason)
			assert.Equal(t, models.SourceAttendance, cand.SourceType)
			assert.Equal(t, "att-1", cand.SourceID)
		})
	}
}

func TestGradeCandidate(t *testing.T) {
	tests := []struct {
		grade      string
		wantPoints int
		wantReason string
		wantNil    bool
	}{
		{grade: "Poor", wantNil: true},
		{grade: "Fair", wantPoints: 25, wantReason: "assignment_grade_fair"},
		{grade: "Good", wantPoints: 50, wantReason: "assignment_grade_good"},
		{grade: "Excellent", wantPoints: 100, wantReason: "assignment_grade_excellent"},
	}

	for _, tt := range tests {
		t.Run(tt.grade, func(t *testing.T) {
			cand := services.GradeCandidate(tt.grade, "grade-7")
			if tt.wantNil {
				assert.Nil(t, cand)
				return
			}
			require.NotNil(t, cand)
			assert.Equal(t, tt.wantPoints, cand.Points)
			assert.Equal(t, tt.wantReason, cand.Reason)
			assert.Equal(t, models.SourceAssignment, cand.SourceType)
			assert.Equal(t, "grade-7", cand.SourceID)
		})
	}
}

func TestQuizCandidates_WeeklyFanOut(t *testing.T) {
	// GIVEN: a week-3 quiz result naming a 1st and 2nd place, 3rd absent
	awards := services.QuizCandidates("q1", 3, services.QuizWinners{
		First:  "student-a",
		Second: "student-b",
	})

	// THEN: exactly two independent candidates at the weekly scale
	require.Len(t, awards, 2)

	assert.Equal(t, "student-a", awards[0].UserID)
	assert.Equal(t, 75, awards[0].Candidate.Points)
	assert.Equal(t, "quiz_weekly_1st_place_week3", awards[0].Candidate.Reason)
	assert.Equal(t, "quiz_q1_first", awards[0].Candidate.SourceID)
	assert.Equal(t, models.SourceAchievement, awards[0].Candidate.SourceType)

	assert.Equal(t, "student-b", awards[1].UserID)
	assert.Equal(t, 50, awards[1].Candidate.Points)
	assert.Equal(t, "quiz_weekly_2nd_place_week3", awards[1].Candidate.Reason)
	assert.Equal(t, "quiz_q1_second", awards[1].Candidate.SourceID)
}

func TestQuizCandidates_FinalWeekScale(t *testing.T) {
	awards := services.QuizCandidates("q8", 8, services.QuizWinners{
		First:  "student-a",
		Second: "student-b",
		Third:  "student-c",
	})

	require.Len(t, awards, 3)
	assert.Equal(t, 400, awards[0].Candidate.Points)
	assert.Equal(t, 200, awards[1].Candidate.Points)
	assert.Equal(t, 100, awards[2].Candidate.Points)
	assert.Equal(t, "quiz_final_1st_place_week8", awards[0].Candidate.Reason)
	assert.Equal(t, "quiz_final_3rd_place_week8", awards[2].Candidate.Reason)
}

func TestQuizCandidates_NoWinners(t *testing.T) {
	awards := services.QuizCandidates("q2", 5, services.QuizWinners{})
	assert.Empty(t, awards)
}

func TestSubmissionTimingCandidate(t *testing.T) {
	due := time.Date(2026, time.April, 1, 23, 59, 0, 0, time.UTC)

	t.Run("on time", func(t *testing.T) {
		cand := services.SubmissionTimingCandidate("sub-1", due.Add(-time.Hour), due)
		assert.Equal(t, 10, cand.Points)
		assert.Equal(t, "assignment_submitted_on_time", cand.Reason)
		assert.Equal(t, "submission_timing_sub-1", cand.SourceID)
	})

	t.Run("exactly at due date counts as on time", func(t *testing.T) {
		cand := services.SubmissionTimingCandidate("sub-1", due, due)
		assert.Equal(t, 10, cand.Points)
	})

	t.Run("late", func(t *testing.T) {
		cand := services.SubmissionTimingCandidate("sub-1", due.Add(time.Minute), due)
		assert.Equal(t, -15, cand.Points)
		assert.Equal(t, "assignment_submitted_late", cand.Reason)
	})
}

func TestExamPassCandidate(t *testing.T) {
	cand := services.ExamPassCandidate("attempt-9")
	assert.Equal(t, 100, cand.Points)
	assert.Equal(t, "exam_passed", cand.Reason)
	assert.Equal(t, models.SourceExam, cand.SourceType)
	assert.Equal(t, "attempt-9", cand.SourceID)
}

func TestLoginMilestoneCandidates_KeyedByDate(t *testing.T) {
	streak := services.StreakBonusCandidate(march10)
	assert.Equal(t, 10, streak.Points)
	assert.Equal(t, "7_day_login_streak_bonus", streak.Reason)
	assert.Equal(t, models.SourceBonus, streak.SourceType)
	assert.Equal(t, "login_streak_2026-03-10", streak.SourceID)

	absence := services.AbsencePenaltyCandidate(march10)
	assert.Equal(t, -15, absence.Points)
	assert.Equal(t, "3_day_absence_penalty", absence.Reason)
	assert.Equal(t, "login_absence_2026-03-10", absence.SourceID)
}
