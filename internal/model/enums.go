package model

// Vocal types accepted by a generation request
type VocalType string

const (
	VocalMale   VocalType = "Male"
	VocalFemale VocalType = "Female"
	VocalDuet   VocalType = "Duet"
	VocalChoir  VocalType = "Choir"
	VocalKids   VocalType = "Kids"
)

var ValidVocalTypes = []VocalType{
	VocalMale, VocalFemale, VocalDuet, VocalChoir, VocalKids,
}

// Label is the tag text used in the [Style: ...] header.
func (v VocalType) Label() string {
	switch v {
	case VocalMale:
		return "Male Vocal"
	case VocalFemale:
		return "Female Vocal"
	case VocalKids:
		return "Kids Vocal"
	case VocalDuet, VocalChoir:
		return string(v)
	}
	return string(v) + " Vocal"
}

// BPMAuto lets the downstream service pick the tempo.
const BPMAuto = "AUTO"

// Job status
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)
