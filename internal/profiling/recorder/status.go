package recorder

// Status is the value of a Recorder's writer status word.
type Status int32

const (
	// StatusIdle means the log is quiescent and any operation may begin.
	StatusIdle Status = iota

	// StatusApplying means the owner is applying an entry or exit event.
	StatusApplying

	// StatusSnapshot means a reader is compacting and copying the log.
	StatusSnapshot

	// StatusQueuing means the delayed queue is locked, either to append a
	// deferred event (entered from applying or snapshot) or to drain it
	// (entered from idle).
	StatusQueuing

	// StatusResetting means a reader is discarding the log.
	StatusResetting
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusApplying:
		return "applying"
	case StatusSnapshot:
		return "snapshot"
	case StatusQueuing:
		return "queuing"
	case StatusResetting:
		return "resetting"
	default:
		return "unknown"
	}
}
