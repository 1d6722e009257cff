package domain

// JobStatus enumerates job lifecycle states. Starting, processing, succeeded,
// failed and canceled come from the provider; created and timed_out are local.
type JobStatus string

const (
	JobStatusCreated    JobStatus = "created"
	JobStatusStarting   JobStatus = "starting"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSucceeded  JobStatus = "succeeded"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCanceled   JobStatus = "canceled"
	JobStatusTimedOut   JobStatus = "timed_out"
)

// Pending reports whether the provider is still working on the job.
func (s JobStatus) Pending() bool {
	return s == JobStatusStarting || s == JobStatusProcessing
}

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCanceled, JobStatusTimedOut:
		return true
	}
	return false
}
