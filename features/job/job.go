package job

import (
	"time"
)

// Job is an ingestion or reindex that stopped after its document was stored.
type Job struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Stage      string    `json:"stage"`
	Error      string    `json:"error"`
	Indexed    int       `json:"indexed"`
	Retries    int       `json:"retries"`
	CreatedAt  time.Time `json:"created_at"`
}
