package notify

import (
	"time"

	"github.com/lithammer/shortuuid/v4"
)

const (
	Title       = "AI Bracelet Meditation"
	DefaultBody = "Time for your meditation session!"
	Icon        = "/icons/icon-192x192.png"
	Badge       = "/icons/icon-96x96.png"

	ActionExplore = "explore"
	ActionClose   = "close"

	// SyncTag is the background sync tag the app registers for session data.
	SyncTag = "sync-meditation-data"
)

// Action is a button shown on a notification.
type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon,omitempty"`
}

type Data struct {
	DateOfArrival int64 `json:"dateOfArrival"`
	PrimaryKey    int   `json:"primaryKey"`
}

// Notification is what a page displays for one push message.
type Notification struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Body    string   `json:"body"`
	Icon    string   `json:"icon"`
	Badge   string   `json:"badge"`
	Vibrate []int    `json:"vibrate"`
	Data    Data     `json:"data"`
	Actions []Action `json:"actions"`
	Closed  bool     `json:"closed"`
}

// NewNotification builds the meditation reminder for a push payload.
// An empty payload gets the default reminder text.
func NewNotification(payload string, now time.Time) Notification {
	body := payload
	if body == "" {
		body = DefaultBody
	}
	return Notification{
		ID:      shortuuid.New(),
		Title:   Title,
		Body:    body,
		Icon:    Icon,
		Badge:   Badge,
		Vibrate: []int{100, 50, 100},
		Data: Data{
			DateOfArrival: now.UnixMilli(),
			PrimaryKey:    1,
		},
		Actions: []Action{
			{Action: ActionExplore, Title: "Start Meditation", Icon: Icon},
			{Action: ActionClose, Title: "Close", Icon: Icon},
		},
	}
}

// CreatedAt returns the arrival time.
func (n Notification) CreatedAt() time.Time {
	return time.UnixMilli(n.Data.DateOfArrival)
}
