package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/lehigh-university-libraries/img2pdf/internal/models"
)

// Kinds of notification presented to the user.
const (
	Warning = "warning"
	Success = "success"
	Error   = "error"
)

// Notifier presents the outcome of an operation to the user.
type Notifier interface {
	Notify(n models.Notification)
}

// LogNotifier only logs notifications.
type LogNotifier struct{}

func (LogNotifier) Notify(n models.Notification) {
	switch n.Kind {
	case Success:
		slog.Info(n.Message, "path", n.Path)
	case Warning:
		slog.Warn(n.Message)
	default:
		slog.Error(n.Message, "path", n.Path, "details", n.Details)
	}
}

// TerminalNotifier prints notifications as single lines and logs them.
type TerminalNotifier struct {
	Out io.Writer
}

func NewTerminalNotifier(out io.Writer) *TerminalNotifier {
	return &TerminalNotifier{Out: out}
}

func (t *TerminalNotifier) Notify(n models.Notification) {
	LogNotifier{}.Notify(n)

	switch n.Kind {
	case Success:
		fmt.Fprintf(t.Out, "%s\n  %s\n", n.Message, n.Path)
	case Warning:
		fmt.Fprintf(t.Out, "Warning: %s\n", n.Message)
	default:
		fmt.Fprintf(t.Out, "Error: %s\n", n.Message)
		for _, d := range n.Details {
			fmt.Fprintf(t.Out, "  - %s\n", d)
		}
	}
}

// Recorder keeps every notification it receives.
type Recorder struct {
	mu            sync.Mutex
	notifications []models.Notification
}

func (r *Recorder) Notify(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *Recorder) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Notification(nil), r.notifications...)
}

// Last returns the most recent notification, if any.
func (r *Recorder) Last() (models.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return models.Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}
