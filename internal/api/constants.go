package api

// Route prefixes used to build Location headers.
const (
	authorsPath   = "/api/v1/authors"
	storiesPath   = "/api/v1/stories"
	fetchJobsPath = "/api/v1/fetch-jobs"
)
