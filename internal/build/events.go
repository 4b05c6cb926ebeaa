package build

// Stage identifies a pipeline phase for progress reporting.
type Stage uint8

const (
	StageDecode Stage = iota
	StageResolve
	StageLower
	StageEmit
)

// Status qualifies a stage event.
type Status uint8

const (
	StatusQueued Status = iota
	StatusWorking
	StatusDone
	StatusError
)

// Event is one progress notification. Unit is the package path of the unit
// being compiled (or its list label when the package is empty).
type Event struct {
	Unit   string
	Stage  Stage
	Status Status
}

func (o Options) notify(unit string, stage Stage, status Status) {
	if o.Events == nil {
		return
	}
	o.Events <- Event{Unit: unit, Stage: stage, Status: status}
}
