// Package notifsvc implements core.NotificationService.
package notifsvc

import (
	"sync"

	"github.com/trezcool/elimu/core"
)

type consoleService struct {
	logger core.Logger
}

var _ core.NotificationService = (*consoleService)(nil)

// NewConsoleService logs notifications instead of delivering them. It stands
// in until a push/websocket channel exists.
func NewConsoleService(logger core.Logger) core.NotificationService {
	return &consoleService{logger: logger}
}

func (svc consoleService) Notify(userID int, kind, title, body, link string) {
	svc.logger.Info(
		"notification: "+title,
		map[string]interface{}{"user_id": userID, "kind": kind, "body": body, "link": link},
	)
}

// Notification is a captured Notify call.
type Notification struct {
	UserID int
	Kind   string
	Title  string
	Body   string
	Link   string
}

// RecorderService captures notifications for assertions in tests.
type RecorderService struct {
	mu   sync.Mutex
	sent []Notification
}

var _ core.NotificationService = (*RecorderService)(nil)

func NewRecorderService() *RecorderService {
	return &RecorderService{}
}

func (svc *RecorderService) Notify(userID int, kind, title, body, link string) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sent = append(svc.sent, Notification{UserID: userID, Kind: kind, Title: title, Body: body, Link: link})
}

// Sent returns a copy of the captured notifications.
func (svc *RecorderService) Sent() []Notification {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	sent := make([]Notification, len(svc.sent))
	copy(sent, svc.sent)
	return sent
}

// Clear resets the capture buffer between tests.
func (svc *RecorderService) Clear() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.sent = svc.sent[:0]
}
