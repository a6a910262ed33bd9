package enrollment

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/certificate"
)

// Side-effect dispatch. Everything here runs after the state write commits;
// failures are logged and swallowed — they never undo or block a grading
// decision.

func (svc *Service) dispatchOutcome(ctx context.Context, e Enrollment, out *finalOutcome) {
	switch {
	case out.passed:
		var unlocked *catalog.Level
		newly, err := svc.prog.OnModuleCompleted(ctx, e.StudentID, out.mod)
		if err != nil {
			svc.logger.Error(fmt.Sprintf("recording module completion for %s: %v", &e, err), err)
		} else {
			unlocked = newly
		}
		svc.notifyCompleted(ctx, e, out.mod, out.cert, unlocked)
	case out.pending:
		svc.notifyPendingReview(ctx, e, out.mod)
	case out.repeatForced:
		svc.notif.Notify(e.StudentID, core.NotifRepeatRequired,
			"Module repeat required",
			fmt.Sprintf("You have used all attempts for %q. Complete all lessons again to retry the final assessment.", out.mod.Title),
			"")
	}
}

func (svc *Service) notifyLessonCompleted(e Enrollment, mod catalog.Module, lessonIdx int) {
	svc.notif.Notify(e.StudentID, core.NotifLessonCompleted,
		"Lesson completed",
		fmt.Sprintf("You completed lesson %d of %q. Module progress: %d%%.", lessonIdx+1, mod.Title, e.ProgressPct),
		"")
}

func (svc *Service) notifyCompleted(ctx context.Context, e Enrollment, mod catalog.Module, cert *certificate.Certificate, unlocked *catalog.Level) {
	svc.notif.Notify(e.StudentID, core.NotifModuleCompleted,
		"Module completed",
		fmt.Sprintf("Congratulations! You completed %q with a score of %d%%.", mod.Title, e.FinalScore),
		"")
	if unlocked != nil {
		svc.notif.Notify(e.StudentID, core.NotifLevelUnlocked,
			"New level unlocked",
			fmt.Sprintf("You unlocked the %s level. New modules are waiting for you.", *unlocked),
			"")
	}
	if cert == nil {
		return
	}
	svc.notif.Notify(e.StudentID, core.NotifCertificateIssued,
		"Certificate issued",
		fmt.Sprintf("Your certificate %s for %q is ready.", cert.Number, mod.Title),
		"/certificates/"+cert.PublicID)

	stu, err := svc.usrRepo.GetUserByID(ctx, e.StudentID)
	if err != nil || stu.Email == "" {
		svc.logger.Warn(fmt.Sprintf("skipping completion email for %s: %v", &e, err))
		return
	}
	svc.mail.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: stu.Name, Address: stu.Email}},
		Subject:      fmt.Sprintf("Certificate for %s", mod.Title),
		TemplateName: "module-completed",
		TemplateData: struct {
			StudentName string
			ModuleTitle string
			Score       int
			CertNumber  string
			CertLink    string
		}{stu.Name, mod.Title, e.FinalScore, cert.Number, "/certificates/" + cert.PublicID},
	})
}

func (svc *Service) notifyPendingReview(ctx context.Context, e Enrollment, mod catalog.Module) {
	recipients := make([]mail.Address, 0, len(mod.InstructorIDs)+1)
	for _, id := range mod.InstructorIDs {
		svc.notif.Notify(id, core.NotifPendingReview,
			"Assessment awaiting review",
			fmt.Sprintf("A final assessment for %q needs manual grading.", mod.Title),
			fmt.Sprintf("/enrollments/%d", e.ID))

		instr, err := svc.usrRepo.GetUserByID(ctx, id)
		if err != nil || instr.Email == "" {
			continue
		}
		recipients = append(recipients, mail.Address{Name: instr.Name, Address: instr.Email})
	}
	// the configured admin inbox always gets a copy
	recipients = append(recipients, svc.conf.AdminEmail)

	svc.mail.SendMessages(&core.EmailMessage{
		To:           recipients,
		Subject:      fmt.Sprintf("Essay submission for %s", mod.Title),
		TemplateName: "essay-submitted",
		TemplateData: struct {
			ModuleTitle  string
			EnrollmentID int
		}{mod.Title, e.ID},
	})
}
