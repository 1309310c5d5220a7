package backup

// Phase is a stage of a backup or restore.
type Phase int

const (
	PhasePreparing Phase = iota
	PhaseEncrypting
	PhaseWriting
	PhaseReading
	PhaseImporting
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhasePreparing:
		return "preparing"
	case PhaseEncrypting:
		return "encrypting"
	case PhaseWriting:
		return "writing"
	case PhaseReading:
		return "reading"
	case PhaseImporting:
		return "importing"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// Progress is reported to a ProgressFunc. Phases arrive in order and
// Current never decreases within a phase. For PhaseReading, Current and
// Total count bytes of the container.
type Progress struct {
	Phase   Phase
	Current int64
	Total   int64
	Item    string
}

// ProgressFunc receives progress updates. It is called synchronously.
type ProgressFunc func(Progress)

func (f ProgressFunc) report(phase Phase, current, total int64, item string) {
	if f != nil {
		f(Progress{Phase: phase, Current: current, Total: total, Item: item})
	}
}
