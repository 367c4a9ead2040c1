// handlers/hooks.go
package handlers

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cohort-points-system/models"
	"cohort-points-system/services"

	"github.com/gofiber/fiber/v2"
)

// unmarshalPair decodes the data/old_data pair of a façade trigger into one
// typed record and its optional prior value.
func unmarshalPair[T any](data, oldData json.RawMessage, dst *T, oldDst **T) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return err
	}
	if len(oldData) > 0 && string(oldData) != "null" {
		var old T
		if err := json.Unmarshal(oldData, &old); err != nil {
			return err
		}
		*oldDst = &old
	}
	return nil
}

// Lifecycle trigger envelope delivered by the entity store:
// {"event": {"type": "create"|"update", "entity_id": "..."}, "data": {...}, "old_data": {...}}
// old_data is present only for updates.
type eventMeta struct {
	Type     string `json:"type"`
	EntityID string `json:"entity_id"`
}

func (e eventMeta) isUpdate() bool { return e.Type == "update" }

type attendanceRecord struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
	Date      string `json:"date"` // YYYY-MM-DD or RFC3339
}

type attendanceTrigger struct {
	Event   eventMeta         `json:"event"`
	Data    attendanceRecord  `json:"data"`
	OldData *attendanceRecord `json:"old_data"`
}

type quizResultRecord struct {
	ID            string `json:"id"`
	WeekNumber    int    `json:"week_number"`
	FirstPlaceID  string `json:"first_place_id"`
	SecondPlaceID string `json:"second_place_id"`
	ThirdPlaceID  string `json:"third_place_id"`
}

type quizResultTrigger struct {
	Event   eventMeta         `json:"event"`
	Data    quizResultRecord  `json:"data"`
	OldData *quizResultRecord `json:"old_data"`
}

type gradeRecord struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Grade     string `json:"grade"` // Poor | Fair | Good | Excellent
}

type gradeTrigger struct {
	Event   eventMeta    `json:"event"`
	Data    gradeRecord  `json:"data"`
	OldData *gradeRecord `json:"old_data"`
}

type submissionRecord struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	Status      string     `json:"status"`
	SubmittedAt *time.Time `json:"submitted_at"`
	DueDate     *time.Time `json:"due_date"`
}

type submissionTrigger struct {
	Event eventMeta        `json:"event"`
	Data  submissionRecord `json:"data"`
}

type examAttemptRecord struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Passed    bool   `json:"passed"`
}

type examAttemptTrigger struct {
	Event   eventMeta          `json:"event"`
	Data    examAttemptRecord  `json:"data"`
	OldData *examAttemptRecord `json:"old_data"`
}

type loginRecord struct {
	UserID    string     `json:"user_id"`
	LoginTime *time.Time `json:"login_time"`
}

type loginTrigger struct {
	Event eventMeta   `json:"event"`
	Data  loginRecord `json:"data"`
}

// SetupHookRoutes wires the per-event hook endpoints. Handlers only parse,
// validate and branch create-vs-update; every rule and idempotency decision
// lives in the services layer.
func SetupHookRoutes(app *fiber.App, ledger *services.LedgerService) {
	hooks := app.Group("/hooks")

	hooks.Post("/attendance", func(c *fiber.Ctx) error {
		var trig attendanceTrigger
		if err := c.BodyParser(&trig); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		return processAttendance(c, ledger, trig)
	})

	hooks.Post("/quiz-result", func(c *fiber.Ctx) error {
		var trig quizResultTrigger
		if err := c.BodyParser(&trig); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		return processQuizResult(c, ledger, trig)
	})

	hooks.Post("/grade", func(c *fiber.Ctx) error {
		var trig gradeTrigger
		if err := c.BodyParser(&trig); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		return processGrade(c, ledger, trig)
	})

	hooks.Post("/submission", func(c *fiber.Ctx) error {
		var trig submissionTrigger
		if err := c.BodyParser(&trig); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		return processSubmission(c, ledger, trig)
	})

	hooks.Post("/exam-attempt", func(c *fiber.Ctx) error {
		var trig examAttemptTrigger
		if err := c.BodyParser(&trig); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		return processExamAttempt(c, ledger, trig)
	})

	hooks.Post("/login", func(c *fiber.Ctx) error {
		var trig loginTrigger
		if err := c.BodyParser(&trig); err != nil {
			return badRequest(c, "invalid JSON", err)
		}
		return processLogin(c, ledger, trig)
	})

	// Generic façade: one endpoint carrying any of the above trigger kinds.
	hooks.Post("/event", func(c *fiber.Ctx) error {
		var trig struct {
			Kind    string          `json:"kind"`
			Event   eventMeta       `json:"event"`
			Data    json.RawMessage `json:"data"`
			OldData json.RawMessage `json:"old_data"`
		}
		if err := c.BodyParser(&trig); err != nil {
			return badRequest(c, "invalid JSON", err)
		}

		switch trig.Kind {
		case "attendance":
			t := attendanceTrigger{Event: trig.Event}
			if err := unmarshalPair(trig.Data, trig.OldData, &t.Data, &t.OldData); err != nil {
				return badRequest(c, "invalid attendance payload", err)
			}
			return processAttendance(c, ledger, t)
		case "quiz_result":
			t := quizResultTrigger{Event: trig.Event}
			if err := unmarshalPair(trig.Data, trig.OldData, &t.Data, &t.OldData); err != nil {
				return badRequest(c, "invalid quiz result payload", err)
			}
			return processQuizResult(c, ledger, t)
		case "assignment_grade":
			t := gradeTrigger{Event: trig.Event}
			if err := unmarshalPair(trig.Data, trig.OldData, &t.Data, &t.OldData); err != nil {
				return badRequest(c, "invalid grade payload", err)
			}
			return processGrade(c, ledger, t)
		case "submission":
			t := submissionTrigger{Event: trig.Event}
			if err := json.Unmarshal(trig.Data, &t.Data); err != nil {
				return badRequest(c, "invalid submission payload", err)
			}
			return processSubmission(c, ledger, t)
		case "exam_attempt":
			t := examAttemptTrigger{Event: trig.Event}
			if err := unmarshalPair(trig.Data, trig.OldData, &t.Data, &t.OldData); err != nil {
				return badRequest(c, "invalid exam attempt payload", err)
			}
			return processExamAttempt(c, ledger, t)
		case "login":
			t := loginTrigger{Event: trig.Event}
			if err := json.Unmarshal(trig.Data, &t.Data); err != nil {
				return badRequest(c, "invalid login payload", err)
			}
			return processLogin(c, ledger, t)
		default:
			return badRequest(c, fmt.Sprintf("unknown event kind %q", trig.Kind), nil)
		}
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}

func processAttendance(c *fiber.Ctx, ledger *services.LedgerService, trig attendanceTrigger) error {
	if trig.Data.ID == "" || trig.Data.StudentID == "" || trig.Data.Status == "" {
		return badRequest(c, "attendance id, student_id and status are required", nil)
	}
	day, err := parseDay(trig.Data.Date)
	if err != nil {
		return badRequest(c, "invalid attendance date", err)
	}

	next := services.AttendanceCandidate(trig.Data.Status, trig.Data.ID, day)

	if trig.Event.isUpdate() && trig.OldData != nil {
		oldDay := day
		if d, err := parseDay(trig.OldData.Date); err == nil {
			oldDay = d
		}
		// A date or student change also needs a reaward: the reason string
		// carries the date and the stale entry lives under the old student.
		oldOwner := priorOwner(trig.OldData.StudentID, trig.Data.StudentID)
		if sameStatus(trig.OldData.Status, trig.Data.Status) &&
			oldDay.Equal(day) && oldOwner == trig.Data.StudentID {
			return c.JSON(fiber.Map{"skipped": "status unchanged"})
		}
		prior := services.AttendanceCandidate(trig.OldData.Status, trig.Data.ID, oldDay)
		res, err := ledger.Reaward(c.UserContext(), oldOwner, trig.Data.StudentID, prior, next)
		if err != nil {
			return storeFailure(c, err)
		}
		return awardResponse(c, trig.Data.Status, next, res)
	}

	if next == nil {
		return c.JSON(fiber.Map{"skipped": noPointsSkip(trig.Data.Status)})
	}
	res, err := ledger.Award(c.UserContext(), trig.Data.StudentID, *next)
	if err != nil {
		return storeFailure(c, err)
	}
	return awardResponse(c, trig.Data.Status, next, res)
}

func processQuizResult(c *fiber.Ctx, ledger *services.LedgerService, trig quizResultTrigger) error {
	if trig.Data.ID == "" || trig.Data.WeekNumber < 1 {
		return badRequest(c, "quiz result id and week_number are required", nil)
	}

	winners := services.QuizWinners{
		First:  trig.Data.FirstPlaceID,
		Second: trig.Data.SecondPlaceID,
		Third:  trig.Data.ThirdPlaceID,
	}

	// An update re-derives each placement: the stale entry is removed for
	// every position whose winner (or week scale) changed before the new
	// winner is awarded.
	if trig.Event.isUpdate() && trig.OldData != nil {
		old := trig.OldData
		if old.WeekNumber == trig.Data.WeekNumber &&
			old.FirstPlaceID == trig.Data.FirstPlaceID &&
			old.SecondPlaceID == trig.Data.SecondPlaceID &&
			old.ThirdPlaceID == trig.Data.ThirdPlaceID {
			return c.JSON(fiber.Map{"skipped": "status unchanged"})
		}

		oldSlots := [3]string{old.FirstPlaceID, old.SecondPlaceID, old.ThirdPlaceID}
		newSlots := [3]string{trig.Data.FirstPlaceID, trig.Data.SecondPlaceID, trig.Data.ThirdPlaceID}
		for i := 0; i < 3; i++ {
			changed := oldSlots[i] != newSlots[i] || old.WeekNumber != trig.Data.WeekNumber
			if changed && oldSlots[i] != "" {
				sourceID := services.QuizSourceID(trig.Data.ID, i)
				if _, err := ledger.Reverse(c.UserContext(), oldSlots[i], models.SourceAchievement, sourceID); err != nil {
					return storeFailure(c, err)
				}
			}
		}
	}

	awards := services.QuizCandidates(trig.Data.ID, trig.Data.WeekNumber, winners)
	if len(awards) == 0 {
		return c.JSON(fiber.Map{"skipped": "no winners - no points"})
	}

	total, placed, duplicates := 0, 0, 0
	for _, a := range awards {
		res, err := ledger.Award(c.UserContext(), a.UserID, a.Candidate)
		if err != nil {
			return storeFailure(c, err)
		}
		if res.Awarded {
			total += res.Entry.Points
			placed++
		} else {
			duplicates++
		}
	}

	if placed == 0 {
		return c.JSON(fiber.Map{"skipped": "already awarded"})
	}
	return c.JSON(fiber.Map{
		"awarded":         total,
		"winners":         placed,
		"already_awarded": duplicates,
		"week":            trig.Data.WeekNumber,
	})
}

func processGrade(c *fiber.Ctx, ledger *services.LedgerService, trig gradeTrigger) error {
	if trig.Data.ID == "" || trig.Data.StudentID == "" || trig.Data.Grade == "" {
		return badRequest(c, "grade id, student_id and grade are required", nil)
	}

	next := services.GradeCandidate(trig.Data.Grade, trig.Data.ID)

	if trig.Event.isUpdate() && trig.OldData != nil {
		oldOwner := priorOwner(trig.OldData.StudentID, trig.Data.StudentID)
		if sameStatus(trig.OldData.Grade, trig.Data.Grade) && oldOwner == trig.Data.StudentID {
			return c.JSON(fiber.Map{"skipped": "status unchanged"})
		}
		prior := services.GradeCandidate(trig.OldData.Grade, trig.Data.ID)
		res, err := ledger.Reaward(c.UserContext(), oldOwner, trig.Data.StudentID, prior, next)
		if err != nil {
			return storeFailure(c, err)
		}
		return awardResponse(c, trig.Data.Grade, next, res)
	}

	if next == nil {
		return c.JSON(fiber.Map{"skipped": noPointsSkip(trig.Data.Grade)})
	}
	res, err := ledger.Award(c.UserContext(), trig.Data.StudentID, *next)
	if err != nil {
		return storeFailure(c, err)
	}
	return awardResponse(c, trig.Data.Grade, next, res)
}

func processSubmission(c *fiber.Ctx, ledger *services.LedgerService, trig submissionTrigger) error {
	if trig.Data.ID == "" || trig.Data.StudentID == "" || trig.Data.Status == "" {
		return badRequest(c, "submission id, student_id and status are required", nil)
	}
	if !sameStatus(trig.Data.Status, "submitted") {
		return c.JSON(fiber.Map{"skipped": noPointsSkip(trig.Data.Status)})
	}
	if trig.Data.SubmittedAt == nil {
		return badRequest(c, "submitted_at is required for submitted status", nil)
	}
	if trig.Data.DueDate == nil {
		// Referential miss: the assignment template may not exist yet.
		// Redelivery after it does is safe.
		return c.JSON(fiber.Map{"skipped": "assignment due date not found"})
	}

	cand := services.SubmissionTimingCandidate(trig.Data.ID, *trig.Data.SubmittedAt, *trig.Data.DueDate)
	res, err := ledger.Award(c.UserContext(), trig.Data.StudentID, cand)
	if err != nil {
		return storeFailure(c, err)
	}
	if !res.Awarded {
		return c.JSON(fiber.Map{"skipped": "already submitted before"})
	}
	return c.JSON(fiber.Map{
		"awarded": res.Entry.Points,
		"reason":  res.Entry.Reason,
		"user_id": res.Entry.UserID,
	})
}

func processExamAttempt(c *fiber.Ctx, ledger *services.LedgerService, trig examAttemptTrigger) error {
	if trig.Data.ID == "" || trig.Data.StudentID == "" {
		return badRequest(c, "exam attempt id and student_id are required", nil)
	}

	if trig.Event.isUpdate() && trig.OldData != nil {
		if trig.OldData.Passed == trig.Data.Passed {
			return c.JSON(fiber.Map{"skipped": "status unchanged"})
		}
		if !trig.Data.Passed {
			// Pass revoked by a regrade: only the reversal applies.
			if _, err := ledger.Reverse(c.UserContext(), trig.Data.StudentID, models.SourceExam, trig.Data.ID); err != nil {
				return storeFailure(c, err)
			}
			return c.JSON(fiber.Map{"skipped": "exam pass revoked"})
		}
	}

	if !trig.Data.Passed {
		return c.JSON(fiber.Map{"skipped": "not passed - no points"})
	}

	cand := services.ExamPassCandidate(trig.Data.ID)
	res, err := ledger.Award(c.UserContext(), trig.Data.StudentID, cand)
	if err != nil {
		return storeFailure(c, err)
	}
	if !res.Awarded {
		return c.JSON(fiber.Map{"skipped": "already awarded"})
	}
	return c.JSON(fiber.Map{
		"awarded": res.Entry.Points,
		"reason":  res.Entry.Reason,
		"user_id": res.Entry.UserID,
	})
}

func processLogin(c *fiber.Ctx, ledger *services.LedgerService, trig loginTrigger) error {
	if trig.Data.UserID == "" || trig.Data.LoginTime == nil {
		return badRequest(c, "login user_id and login_time are required", nil)
	}

	ctx := c.UserContext()
	if err := ledger.RecordLogin(ctx, trig.Data.UserID, *trig.Data.LoginTime); err != nil {
		return storeFailure(c, err)
	}

	res, err := ledger.CheckLoginMilestones(ctx, trig.Data.UserID, *trig.Data.LoginTime)
	if err != nil {
		return storeFailure(c, err)
	}

	switch {
	case res.StreakAwarded:
		return c.JSON(fiber.Map{
			"awarded":       services.PointsLoginStreak,
			"streak_length": res.StreakLength,
		})
	case res.StreakHit:
		return c.JSON(fiber.Map{"skipped": "already awarded"})
	default:
		return c.JSON(fiber.Map{
			"skipped": fmt.Sprintf("no milestone (streak %d)", res.StreakLength),
		})
	}
}

// awardResponse translates an executor result for single-recipient events.
func awardResponse(c *fiber.Ctx, status string, cand *services.Candidate, res *services.AwardResult) error {
	if cand == nil {
		return c.JSON(fiber.Map{"skipped": noPointsSkip(status)})
	}
	if !res.Awarded {
		return c.JSON(fiber.Map{"skipped": "already awarded"})
	}
	return c.JSON(fiber.Map{
		"awarded": res.Entry.Points,
		"reason":  res.Entry.Reason,
		"user_id": res.Entry.UserID,
	})
}

func noPointsSkip(status string) string {
	return strings.ToLower(status) + " - no points"
}

// priorOwner is the student the stale entry was written under. Old payloads
// may omit student_id; the current owner is the only safe fallback then.
func priorOwner(old, current string) string {
	if old != "" {
		return old
	}
	return current
}

func sameStatus(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// parseDay accepts either a bare calendar date or a full RFC3339 timestamp.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func badRequest(c *fiber.Ctx, msg string, err error) error {
	body := fiber.Map{"error": msg}
	if err != nil {
		body["cause"] = err.Error()
	}
	return c.Status(fiber.StatusBadRequest).JSON(body)
}

// storeFailure surfaces a failed conditional write or delete as a 500 so the
// trigger source can decide to redeliver. No retry happens here.
func storeFailure(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "ledger store failure",
		"cause": err.Error(),
	})
}
