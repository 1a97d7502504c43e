package constants

// JobStatus is the canonical status for rows in parse_jobs.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusQueued  JobStatus = "QUEUED"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusParsed  JobStatus = "PARSED" // record validated and stored
	JobStatusFailed  JobStatus = "FAILED" // terminal failure
)

// TextSource records how the text of a document was obtained.
type TextSource string

const (
	SourceDirectDecode   TextSource = "DIRECT_DECODE"
	SourceDirectPdfLayer TextSource = "DIRECT_PDF_LAYER"
	SourceOCR            TextSource = "OCR"
)
