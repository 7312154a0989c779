package transcribe

import (
	"net/http"

	"bitbucket.org/aleksas/scribe/internal/pkg/blobstore"
	"github.com/pkg/errors"
)

//Workflow stages used to tag failures
const (
	stgStorage    = "storage"
	stgSubmit     = "submit"
	stgTranscribe = "transcribe"
	stgPersist    = "persist"
)

//ErrNoFile indicates a request without an audio payload
var ErrNoFile = errors.New("no audio file provided")

//ErrTimeout indicates the transcription job did not finish in time
var ErrTimeout = errors.New("transcription timed out")

type stageError struct {
	stage string
	err   error
}

func newStageError(stage string, err error) *stageError {
	return &stageError{stage: stage, err: err}
}

func (e *stageError) Error() string {
	return e.stage + ": " + e.err.Error()
}

func (e *stageError) Cause() error {
	return e.err
}

//errorResult maps a workflow failure to an HTTP code and a short
//user-facing message. Provider payloads never cross this boundary.
func errorResult(err error) (int, string) {
	if errors.Cause(err) == ErrNoFile {
		return http.StatusBadRequest, "No file uploaded"
	}
	if se, ok := err.(*stageError); ok {
		switch se.stage {
		case stgStorage:
			if errors.Cause(se.err) == blobstore.ErrRejected {
				return http.StatusInternalServerError, "Audio file rejected by storage"
			}
			return http.StatusInternalServerError, "Can't store audio file"
		case stgSubmit:
			return http.StatusInternalServerError, "Can't start transcription"
		case stgTranscribe:
			if errors.Cause(se.err) == ErrTimeout {
				return http.StatusInternalServerError, "Transcription timed out"
			}
			return http.StatusInternalServerError, "Transcription failed"
		case stgPersist:
			return http.StatusInternalServerError, "Can't save transcript"
		}
	}
	return http.StatusInternalServerError, "Service error"
}
