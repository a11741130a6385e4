package domain

import "time"

// FetchState is the lifecycle state of a background story download.
type FetchState string

const (
	FetchPending    FetchState = "pending"
	FetchInProgress FetchState = "in_progress"
	FetchSucceeded  FetchState = "succeeded"
	FetchFailed     FetchState = "failed"
)

// Terminal reports whether the job will not change state again.
func (s FetchState) Terminal() bool {
	return s == FetchSucceeded || s == FetchFailed
}

// FetchJob downloads one story into the favorites area of the mirror.
// Jobs are created when a user favorites a story whose local copy is missing or stale.
type FetchJob struct {
	ID      string `json:"id"`
	StoryID string `json:"story_id"`
	// Target is the story directory relative to the mirror root.
	Target string `json:"target"`
	Debug  bool   `json:"debug"`

	State FetchState `json:"state"`
	// Status is a human readable progress line, set while in progress.
	Status string `json:"status,omitempty"`

	// Path is set on success.
	Path string `json:"path,omitempty"`

	// Error, StoryURL and AuthorURL are set on failure.
	Error     string `json:"error,omitempty"`
	StoryURL  string `json:"story_url,omitempty"`
	AuthorURL string `json:"author_url,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewFetchJob creates a pending job.
func NewFetchJob(id, storyID, target string, debug bool) *FetchJob {
	return &FetchJob{
		ID:        id,
		StoryID:   storyID,
		Target:    target,
		Debug:     debug,
		State:     FetchPending,
		CreatedAt: time.Now(),
	}
}

// MarkInProgress transitions the job to in_progress.
func (j *FetchJob) MarkInProgress(status string) {
	j.State = FetchInProgress
	j.Status = status
	now := time.Now()
	j.StartedAt = &now
}

// SetStatus updates the progress line.
func (j *FetchJob) SetStatus(status string) {
	j.Status = status
}

// MarkSucceeded records the downloaded path.
func (j *FetchJob) MarkSucceeded(path string) {
	j.State = FetchSucceeded
	j.Status = ""
	j.Path = path
	now := time.Now()
	j.CompletedAt = &now
}

// MarkFailed records the failure and the remote pages it concerned.
func (j *FetchJob) MarkFailed(err, storyURL, authorURL string) {
	j.State = FetchFailed
	j.Status = ""
	j.Error = err
	j.StoryURL = storyURL
	j.AuthorURL = authorURL
	now := time.Now()
	j.CompletedAt = &now
}

// Requeue puts an interrupted job back to pending.
func (j *FetchJob) Requeue() {
	j.State = FetchPending
	j.Status = ""
	j.StartedAt = nil
}
