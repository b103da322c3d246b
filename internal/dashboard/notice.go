package dashboard

import "time"

type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeSuccess
	NoticeError
)

// Notice is the single transient user-facing message.
type Notice struct {
	Kind    NoticeKind
	Message string
	At      time.Time
}

func (n Notice) IsZero() bool { return n.Message == "" }

func (n Notice) expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(n.At) > ttl
}
