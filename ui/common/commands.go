package common

type SessionState uint

const (
	ComposeView SessionState = iota
	TimelineView
	FollowersView
	FollowView
	QueueView
	// NoteSaved is sent as a message after a note was stored, so that
	// open views can reload.
	NoteSaved
)
