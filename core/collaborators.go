package core

// External collaborators consumed by the enrollment engine.
// Implementations live under services/ (real, console, recording mocks);
// the engine only ever sees these interfaces.

// Notification kinds dispatched by the enrollment engine.
const (
	NotifLessonCompleted   = "lesson_completed"
	NotifModuleCompleted   = "module_completed"
	NotifLevelUnlocked     = "level_unlocked"
	NotifRepeatRequired    = "module_repeat_required"
	NotifPendingReview     = "assessment_pending_review"
	NotifCertificateIssued = "certificate_issued"
)

// NotificationService dispatches in-app notifications.
// Fire-and-forget: failures must be swallowed (and logged) by implementations.
type NotificationService interface {
	Notify(userID int, kind, title, body, link string)
}

// PaymentChecker answers category purchase/eligibility questions.
type PaymentChecker interface {
	HasAccess(studentID, categoryID int) (bool, error)
	// Price returns the category price in cents.
	Price(categoryID int) (int64, error)
}
