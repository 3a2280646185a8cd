package domain

// Channel names a wake-up signal stream.
type Channel string

const (
	// ChannelNewMessage carries the id of every inserted message.
	ChannelNewMessage Channel = "new_message"
	// ChannelDeadMessage carries the id of every archive record whose outcome is not success.
	ChannelDeadMessage Channel = "dead_message"
)

// HandledByReclaimer is recorded as handled_by on records written by the reclaimer.
const HandledByReclaimer = "reclaimer"

// Signal is a best-effort hint delivered to subscribers. Reconnected marks the first
// signal after a (re)connection, when missed hints must be recovered by a rescan.
type Signal struct {
	Channel     Channel
	ID          int64
	Reconnected bool
}
