package core

// NotificationLevel is the kind of toast shown to the user.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelInfo    NotificationLevel = "info"
)

// Toast is a transient user-facing message.
type Toast struct {
	Level       NotificationLevel `json:"level"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
}

// Notifier surfaces toasts to whoever is looking at the view.
type Notifier interface {
	Notify(t Toast)
}

// NotifierFunc adapts a function to a Notifier.
type NotifierFunc func(t Toast)

func (f NotifierFunc) Notify(t Toast) { f(t) }
