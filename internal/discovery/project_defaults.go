package discovery

const (
	DefaultScrapeDir   = "output"
	DefaultMaxAttempts = 5
	DefaultExportJobs  = 1
)
