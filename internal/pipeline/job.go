package pipeline

import (
	"encoding/json"
	"path"
	"strings"

	"github.com/morse-fitness/morse-worker/internal/errors"
)

// Job is one file to process, as queued by the upload API or found by a
// database scan.
type Job struct {
	AudioFileID      string `json:"audioFileId"`
	FilePath         string `json:"filePath"`
	UserID           string `json:"userId"`
	DeviceUUID       string `json:"deviceUuid"`
	OriginalFilename string `json:"originalFilename"`
}

// DecodeJob parses a queued job payload.
func DecodeJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, errors.New(err).
			Component(component).
			Category(errors.CategoryJobQueue).
			Context("operation", "decode_job").
			Build()
	}
	if job.AudioFileID == "" {
		return Job{}, errors.Newf("job payload has no audioFileId").
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	return job, nil
}

// RewritePath maps an upload path as seen by the API host to the path
// mounted in the worker. Paths under from become to/<basename>; anything
// else is returned unchanged.
func RewritePath(p, from, to string) string {
	if from == "" || !strings.HasPrefix(p, from) {
		return p
	}
	return path.Join(to, path.Base(p))
}
