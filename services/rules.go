// services/rules.go
package services

import (
	"fmt"
	"strings"
	"time"

	"cohort-points-system/models"
)

// DateLayout is the calendar-day format used in reason strings, dedup keys
// and the login mirror.
const DateLayout = "2006-01-02"

// Candidate is the not-yet-written output of the rule table: everything the
// executor needs except the user id, which the caller binds.
type Candidate struct {
	Points     int
	Reason     string
	SourceType models.SourceType
	SourceID   string
}

// Point values. The reason strings built from these rules are an external
// contract: the notification service matches them by prefix, so they must
// stay stable.
const (
	PointsAttendancePresent = 10
	PointsAttendanceAbsent  = -10

	PointsGradeFair      = 25
	PointsGradeGood      = 50
	PointsGradeExcellent = 100

	PointsSubmittedOnTime = 10
	PointsSubmittedLate   = -15

	PointsLoginStreak  = 10
	PointsLoginAbsence = -15
	PointsExamPassed   = 100

	// Week FinalQuizWeek pays the final-quiz scale, all earlier weeks the
	// weekly scale.
	FinalQuizWeek = 8
)

var (
	weeklyQuizPoints = [3]int{75, 50, 25}
	finalQuizPoints  = [3]int{400, 200, 100}

	quizPositionSlots    = [3]string{"first", "second", "third"}
	quizPositionOrdinals = [3]string{"1st", "2nd", "3rd"}
)

// AttendanceCandidate maps an attendance status to a candidate entry.
// "late" carries no points and returns nil: no ledger row is ever written
// for it.
func AttendanceCandidate(status, attendanceID string, date time.Time) *Candidate {
	day := date.Format(DateLayout)
	switch strings.ToLower(status) {
	case "present":
		return &Candidate{
			Points:     PointsAttendancePresent,
			Reason:     "attendance_present_" + day,
			SourceType: models.SourceAttendance,
			SourceID:   attendanceID,
		}
	case "absent":
		return &Candidate{
			Points:     PointsAttendanceAbsent,
			Reason:     "attendance_absent_" + day,
			SourceType: models.SourceAttendance,
			SourceID:   attendanceID,
		}
	default:
		return nil
	}
}

// QuizWinners names the 0–3 placed students of one quiz result. Empty slots
// mean the position was not awarded.
type QuizWinners struct {
	First  string
	Second string
	Third  string
}

func (w QuizWinners) slot(i int) string {
	switch i {
	case 0:
		return w.First
	case 1:
		return w.Second
	default:
		return w.Third
	}
}

// QuizAward binds one placement candidate to its winner, since a single quiz
// result fans out to multiple recipients.
type QuizAward struct {
	UserID    string
	Candidate Candidate
}

// QuizCandidates expands a quiz result into one independent candidate per
// named winner. Weeks 1–7 pay 75/50/25, the final week pays 400/200/100.
func QuizCandidates(quizResultID string, week int, winners QuizWinners) []QuizAward {
	points := weeklyQuizPoints
	prefix := "quiz_weekly"
	if week == FinalQuizWeek {
		points = finalQuizPoints
		prefix = "quiz_final"
	}

	var awards []QuizAward
	for i := 0; i < 3; i++ {
		userID := winners.slot(i)
		if userID == "" {
			continue
		}
		awards = append(awards, QuizAward{
			UserID: userID,
			Candidate: Candidate{
				Points:     points[i],
				Reason:     fmt.Sprintf("%s_%s_place_week%d", prefix, quizPositionOrdinals[i], week),
				SourceType: models.SourceAchievement,
				SourceID:   QuizSourceID(quizResultID, i),
			},
		})
	}
	return awards
}

// QuizSourceID is the dedup key for one placement of one quiz result.
// position is 0-based (0 = first place).
func QuizSourceID(quizResultID string, position int) string {
	return fmt.Sprintf("quiz_%s_%s", quizResultID, quizPositionSlots[position])
}

// GradeCandidate maps a rubric grade to a candidate entry. "Poor" carries no
// points and returns nil.
func GradeCandidate(grade, gradeID string) *Candidate {
	var points int
	switch strings.ToLower(grade) {
	case "fair":
		points = PointsGradeFair
	case "good":
		points = PointsGradeGood
	case "excellent":
		points = PointsGradeExcellent
	default:
		return nil
	}
	return &Candidate{
		Points:     points,
		Reason:     "assignment_grade_" + strings.ToLower(grade),
		SourceType: models.SourceAssignment,
		SourceID:   gradeID,
	}
}

// SubmissionTimingCandidate rewards or penalizes a submission depending on
// whether it landed before its due date.
func SubmissionTimingCandidate(submissionID string, submittedAt, dueAt time.Time) Candidate {
	cand := Candidate{
		SourceType: models.SourceAssignment,
		SourceID:   "submission_timing_" + submissionID,
	}
	if submittedAt.After(dueAt) {
		cand.Points = PointsSubmittedLate
		cand.Reason = "assignment_submitted_late"
	} else {
		cand.Points = PointsSubmittedOnTime
		cand.Reason = "assignment_submitted_on_time"
	}
	return cand
}

// ExamPassCandidate is the fixed credit for a passing exam attempt.
func ExamPassCandidate(attemptID string) Candidate {
	return Candidate{
		Points:     PointsExamPassed,
		Reason:     "exam_passed",
		SourceType: models.SourceExam,
		SourceID:   attemptID,
	}
}

// StreakBonusCandidate is the 7-day login streak bonus, keyed per calendar
// day. The per-user scope comes from the user_id column of the lookup, not
// from the key itself, so the hook path and the nightly sweep dedup against
// the same row.
func StreakBonusCandidate(ref time.Time) Candidate {
	return Candidate{
		Points:     PointsLoginStreak,
		Reason:     "7_day_login_streak_bonus",
		SourceType: models.SourceBonus,
		SourceID:   "login_streak_" + ref.Format(DateLayout),
	}
}

// AbsencePenaltyCandidate is the 3-day absence penalty, keyed per calendar
// day like the streak bonus.
func AbsencePenaltyCandidate(ref time.Time) Candidate {
	return Candidate{
		Points:     PointsLoginAbsence,
		Reason:     "3_day_absence_penalty",
		SourceType: models.SourceBonus,
		SourceID:   "login_absence_" + ref.Format(DateLayout),
	}
}
