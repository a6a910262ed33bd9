package enrollment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/access"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
	"github.com/trezcool/elimu/core/grading"
	"github.com/trezcool/elimu/core/progression"
	"github.com/trezcool/elimu/core/user"
)

var (
	// errors
	ErrNotFound       = errors.New("enrollment not found")
	ErrExists         = errors.New("enrollment already exists")
	ErrLessonNotFound = errors.New("lesson not found")
)

// conflictRetries bounds the versioned-write retry loop.
const conflictRetries = 3

// PaymentRequiredError is returned by Enroll when the category must be
// purchased first.
type PaymentRequiredError struct {
	Price      int64 // cents
	CategoryID int
}

func (err *PaymentRequiredError) Error() string {
	return fmt.Sprintf("category %d requires payment", err.CategoryID)
}

type (
	Repository interface {
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollmentByID(ctx context.Context, id int) (Enrollment, error)
		GetByStudentAndModule(ctx context.Context, studentID, moduleID int) (Enrollment, error)
		QueryEnrollmentsByStudent(ctx context.Context, studentID int) ([]Enrollment, error)
		// UpdateEnrollment compares-and-swaps on Version and returns
		// core.ErrWriteConflict when the row changed underneath.
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		// CountCompletedByLevel reports completed enrollments per module
		// level for the student within a category. It backs progression
		// reconciliation (progression.CompletionCounter).
		CountCompletedByLevel(ctx context.Context, studentID, categoryID int) (map[catalog.Level]int, error)
	}

	ServiceDeps struct {
		Repo         Repository
		CatalogRepo  catalog.Repository
		UserRepo     user.Repository
		Gate         *access.Gate
		Progression  *progression.Service
		Certificates *certificate.Service
		Mail         core.EmailService
		Notifier     core.NotificationService
		Logger       core.Logger
		Conf         *core.Config
	}

	Service struct {
		repo    Repository
		catRepo catalog.Repository
		usrRepo user.Repository
		gate    *access.Gate
		prog    *progression.Service
		certs   *certificate.Service
		mail    core.EmailService
		notif   core.NotificationService
		logger  core.Logger
		conf    *core.Config
		locks   *keyedMutex
	}

	// finalOutcome carries the branch taken by a grading mutation so side
	// effects can be dispatched after the state write commits.
	finalOutcome struct {
		res          grading.Result
		mod          catalog.Module
		passed       bool
		pending      bool
		repeatForced bool
		cert         *certificate.Certificate
	}
)

func NewService(deps ServiceDeps) *Service {
	return &Service{
		repo:    deps.Repo,
		catRepo: deps.CatalogRepo,
		usrRepo: deps.UserRepo,
		gate:    deps.Gate,
		prog:    deps.Progression,
		certs:   deps.Certificates,
		mail:    deps.Mail,
		notif:   deps.Notifier,
		logger:  deps.Logger,
		conf:    deps.Conf,
		locks:   newKeyedMutex(),
	}
}

// Enroll creates the enrollment for (student, module). Idempotent: an
// existing enrollment is returned unchanged, no access re-check.
func (svc *Service) Enroll(ctx context.Context, usr user.User, moduleID int) (Enrollment, error) {
	mod, err := svc.catRepo.GetModuleByID(ctx, moduleID)
	if err != nil {
		return Enrollment{}, err
	}

	if e, err := svc.repo.GetByStudentAndModule(ctx, usr.ID, moduleID); err == nil {
		return e, nil
	} else if errors.Cause(err) != ErrNotFound {
		return Enrollment{}, err
	}

	d, err := svc.gate.CanEnroll(ctx, usr, mod)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "checking enrollment access")
	}
	switch d.Kind {
	case access.Allowed:
	case access.PaymentRequired:
		return Enrollment{}, &PaymentRequiredError{Price: d.Price, CategoryID: d.CategoryID}
	case access.LevelLocked:
		return Enrollment{}, core.NewInvalidStateError(
			fmt.Sprintf("level %q is locked: %s", d.RequiredLevel, d.Reason))
	default:
		return Enrollment{}, core.NewForbiddenError(d.Reason)
	}

	if _, err = svc.prog.Initialize(ctx, usr.ID, mod.CategoryID); err != nil {
		return Enrollment{}, errors.Wrap(err, "initializing progression")
	}

	now := time.Now().UTC()
	e := Enrollment{
		StudentID: usr.ID,
		ModuleID:  moduleID,
		Status:    StatusEnrolled,
		Lessons:   make([]LessonProgress, len(mod.Lessons)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	e, err = svc.repo.CreateEnrollment(ctx, e)
	if err != nil {
		if errors.Cause(err) == ErrExists { // lost a concurrent enroll race
			return svc.repo.GetByStudentAndModule(ctx, usr.ID, moduleID)
		}
		return Enrollment{}, err
	}

	if err = svc.catRepo.IncrementEnrollmentCount(ctx, moduleID); err != nil {
		svc.logger.Warn(fmt.Sprintf("incrementing enrollment count for module %d: %v", moduleID, err), err)
	}
	return e, nil
}

func (svc *Service) GetByID(ctx context.Context, usr user.User, id int) (Enrollment, error) {
	e, err := svc.repo.GetEnrollmentByID(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if e.StudentID != usr.ID && !usr.IsAdmin() {
		mod, merr := svc.catRepo.GetModuleByID(ctx, e.ModuleID)
		if merr != nil || !mod.HasInstructor(usr.ID) {
			return Enrollment{}, core.NewForbiddenError("this enrollment belongs to another student")
		}
	}
	return e, nil
}

func (svc *Service) QueryMine(ctx context.Context, usr user.User) ([]Enrollment, error) {
	return svc.repo.QueryEnrollmentsByStudent(ctx, usr.ID)
}

// CompleteLesson marks a lesson complete, at most once.
func (svc *Service) CompleteLesson(ctx context.Context, usr user.User, enrollmentID, lessonIdx int) (Enrollment, error) {
	var newlyDone bool
	var mod catalog.Module
	e, err := svc.mutate(ctx, enrollmentID, func(e *Enrollment, m catalog.Module) error {
		if err := checkOwner(*e, usr); err != nil {
			return err
		}
		if lessonIdx < 0 || lessonIdx >= len(e.Lessons) {
			return ErrLessonNotFound
		}
		newlyDone = !e.Lessons[lessonIdx].Completed
		mod = m
		e.completeLesson(lessonIdx, time.Now().UTC())
		return nil
	})
	if err == nil && newlyDone {
		svc.notifyLessonCompleted(e, mod, lessonIdx)
	}
	return e, err
}

// SubmitLessonAssessment grades a lesson quiz; a pass also completes the
// lesson.
func (svc *Service) SubmitLessonAssessment(
	ctx context.Context, usr user.User, enrollmentID, lessonIdx int, answers []string,
) (Enrollment, grading.Result, error) {
	var res grading.Result
	var newlyDone bool
	var module catalog.Module
	e, err := svc.mutate(ctx, enrollmentID, func(e *Enrollment, mod catalog.Module) error {
		if err := checkOwner(*e, usr); err != nil {
			return err
		}
		if lessonIdx < 0 || lessonIdx >= len(e.Lessons) || lessonIdx >= len(mod.Lessons) {
			return ErrLessonNotFound
		}
		assess := mod.Lessons[lessonIdx].Assessment
		if assess == nil {
			return core.NewInvalidStateError("this lesson has no assessment")
		}

		lp := &e.Lessons[lessonIdx]
		if assess.MaxAttempts > 0 && lp.Attempts >= assess.MaxAttempts {
			return core.NewInvalidStateError(
				fmt.Sprintf("attempt limit (%d) reached for this lesson assessment", assess.MaxAttempts))
		}

		res = grading.Grade(assess.Questions, answers, assess.PassingScore)
		lp.Attempts++
		lp.LastScore = res.Score
		if e.Status == StatusEnrolled {
			e.Status = StatusInProgress
		}
		newlyDone = false
		module = mod
		if res.Passed {
			lp.Passed = true
			newlyDone = !lp.Completed
			e.completeLesson(lessonIdx, time.Now().UTC())
		}
		return nil
	})
	if err == nil && newlyDone {
		svc.notifyLessonCompleted(e, module, lessonIdx)
	}
	return e, res, err
}

// SubmitFinalAssessment grades a final-assessment submission, or stores it
// for instructor review when it contains essay answers.
func (svc *Service) SubmitFinalAssessment(
	ctx context.Context, usr user.User, enrollmentID int, answers []string,
) (Enrollment, grading.Result, error) {
	out := &finalOutcome{}
	e, err := svc.mutate(ctx, enrollmentID, func(e *Enrollment, mod catalog.Module) error {
		*out = finalOutcome{mod: mod}
		if err := checkOwner(*e, usr); err != nil {
			return err
		}
		final := mod.Final
		if final == nil || len(final.Questions) == 0 {
			return core.NewInvalidStateError("this module has no final assessment")
		}
		switch e.Status {
		case StatusCompleted:
			return core.NewInvalidStateError("module already completed")
		case StatusPendingReview:
			return core.NewInvalidStateError("a submission is already awaiting instructor review")
		case StatusRepeatRequired:
			return core.NewInvalidStateError("module repeat required: complete all lessons again before resubmitting")
		}
		if !e.AllLessonsCompleted() {
			return core.NewInvalidStateError("all lessons must be completed before taking the final assessment")
		}
		if final.MaxAttempts > 0 && e.FinalAttempts >= final.MaxAttempts {
			return core.NewInvalidStateError(
				fmt.Sprintf("attempt limit (%d) reached for the final assessment", final.MaxAttempts))
		}

		now := time.Now().UTC()
		out.res = grading.Grade(final.Questions, answers, final.PassingScore)
		e.FinalAttempts++
		result := AttemptResult{
			Attempt:     e.FinalAttempts,
			Cycle:       e.RepeatCount,
			Score:       out.res.Score,
			GradedBy:    GradedAuto,
			Answers:     answers,
			Results:     out.res.Results,
			SubmittedAt: now,
		}

		if out.res.PendingReview {
			// essay answers: no verdict until an instructor grades them
			result.PendingReview = true
			e.Results = append(e.Results, result)
			e.Status = StatusPendingReview
			out.pending = true
			return nil
		}

		result.Passed = out.res.Passed
		result.GradedAt = null.TimeFrom(now)
		e.Results = append(e.Results, result)
		e.FinalScore = out.res.Score

		if out.res.Passed {
			return svc.applyPass(ctx, e, mod, out.res.Score, out)
		}
		if final.MaxAttempts > 0 && e.FinalAttempts >= final.MaxAttempts {
			e.resetForRepeat()
			out.repeatForced = true
		}
		return nil
	})
	if err != nil {
		return Enrollment{}, grading.Result{}, err
	}
	svc.dispatchOutcome(ctx, e, out)
	return e, out.res, nil
}

// GradeEssay applies an instructor verdict to the submission awaiting review.
func (svc *Service) GradeEssay(
	ctx context.Context, instructor user.User, enrollmentID int, req GradeEssayRequest,
) (Enrollment, error) {
	out := &finalOutcome{}
	e, err := svc.mutate(ctx, enrollmentID, func(e *Enrollment, mod catalog.Module) error {
		*out = finalOutcome{mod: mod}
		if !mod.HasInstructor(instructor.ID) && !instructor.IsAdmin() {
			return core.NewForbiddenError("only an instructor assigned to this module can grade it")
		}
		if e.Status != StatusPendingReview {
			return core.NewInvalidStateError("no submission awaiting instructor review")
		}
		pending := e.pendingResult()
		if pending == nil {
			return core.NewInvalidStateError("no submission awaiting instructor review")
		}

		now := time.Now().UTC()
		score := pending.Score // auto-graded portion
		if req.Score != nil {
			score = *req.Score
		}
		pending.PendingReview = false
		pending.GradedBy = GradedInstructor
		pending.GradedByID = instructor.ID
		pending.Feedback = req.Feedback
		pending.Score = score
		pending.Passed = req.Passed
		pending.GradedAt = null.TimeFrom(now)
		e.FinalScore = score

		if req.Passed {
			return svc.applyPass(ctx, e, mod, score, out)
		}
		if mod.Final != nil && mod.Final.MaxAttempts > 0 && e.FinalAttempts >= mod.Final.MaxAttempts {
			e.resetForRepeat()
			out.repeatForced = true
		} else {
			e.Status = StatusInProgress
		}
		return nil
	})
	if err != nil {
		return Enrollment{}, err
	}
	svc.dispatchOutcome(ctx, e, out)
	return e, nil
}

// RemainingAttempts reports final-assessment attempts left in the current
// cycle; -1 means unlimited.
func RemainingAttempts(e Enrollment, mod catalog.Module) int {
	if mod.Final == nil || mod.Final.MaxAttempts == 0 {
		return -1
	}
	left := mod.Final.MaxAttempts - e.FinalAttempts
	if left < 0 {
		return 0
	}
	return left
}

// applyPass flips the enrollment to completed and mints the certificate.
// Called inside the mutation so the certificate id commits with the state
// change; re-runs after a write conflict reuse the already-minted record.
func (svc *Service) applyPass(ctx context.Context, e *Enrollment, mod catalog.Module, score int, out *finalOutcome) error {
	cert, err := svc.issueCertificate(ctx, *e, mod, score)
	if err != nil {
		return errors.Wrap(err, "issuing certificate")
	}
	e.Status = StatusCompleted
	e.FinalPassed = true
	e.FinalScore = score
	e.CertificateEarned = true
	e.CertificatePublicID = cert.PublicID
	out.passed = true
	out.cert = &cert
	return nil
}

func (svc *Service) issueCertificate(ctx context.Context, e Enrollment, mod catalog.Module, score int) (certificate.Certificate, error) {
	stu, err := svc.usrRepo.GetUserByID(ctx, e.StudentID)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "loading student")
	}
	cat, err := svc.catRepo.GetCategoryByID(ctx, mod.CategoryID)
	if err != nil {
		return certificate.Certificate{}, errors.Wrap(err, "loading category")
	}
	var instructorName string
	if len(mod.InstructorIDs) > 0 {
		if instr, err := svc.usrRepo.GetUserByID(ctx, mod.InstructorIDs[0]); err == nil {
			instructorName = instr.Name
		}
	}

	cert, err := svc.certs.Issue(ctx, certificate.IssueInput{
		StudentID:      e.StudentID,
		ModuleID:       mod.ID,
		EnrollmentID:   e.ID,
		StudentName:    stu.Name,
		ModuleName:     mod.Title,
		Level:          mod.Level,
		CategoryName:   cat.Name,
		InstructorName: instructorName,
		Score:          score,
	})
	if errors.Cause(err) == certificate.ErrAlreadyIssued {
		return svc.certs.GetByEnrollment(ctx, e.ID)
	}
	return cert, err
}

// mutate serializes a read-modify-write of one enrollment: in-process
// single writer per id plus a versioned write, retried on conflict.
func (svc *Service) mutate(ctx context.Context, enrollmentID int, fn func(e *Enrollment, mod catalog.Module) error) (Enrollment, error) {
	svc.locks.lock(enrollmentID)
	defer svc.locks.unlock(enrollmentID)

	for attempt := 0; ; attempt++ {
		e, err := svc.repo.GetEnrollmentByID(ctx, enrollmentID)
		if err != nil {
			return Enrollment{}, err
		}
		mod, err := svc.catRepo.GetModuleByID(ctx, e.ModuleID)
		if err != nil {
			return Enrollment{}, errors.Wrap(err, "loading module")
		}
		if err = fn(&e, mod); err != nil {
			return Enrollment{}, err
		}
		e.UpdatedAt = time.Now().UTC()

		saved, err := svc.repo.UpdateEnrollment(ctx, e)
		if err != nil {
			if errors.Cause(err) == core.ErrWriteConflict && attempt < conflictRetries {
				continue
			}
			return Enrollment{}, err
		}
		return saved, nil
	}
}

func checkOwner(e Enrollment, usr user.User) error {
	if e.StudentID != usr.ID && !usr.IsAdmin() {
		return core.NewForbiddenError("this enrollment belongs to another student")
	}
	return nil
}
