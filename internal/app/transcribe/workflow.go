package transcribe

import (
	"time"

	"bitbucket.org/aleksas/scribe/internal/app/transcribe/api"
	"bitbucket.org/aleksas/scribe/internal/pkg/cmdapp"
	"bitbucket.org/aleksas/scribe/internal/pkg/persistence"
	"bitbucket.org/aleksas/scribe/internal/pkg/sttapi"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
)

type (
	// BlobSaver uploads audio bytes and returns a public URL
	BlobSaver interface {
		Store(name, mimeType string, data []byte) (string, error)
	}

	// Transcriber submits a transcription job and polls its status
	Transcriber interface {
		Submit(audioURL string) (string, error)
		Poll(ID string) (*sttapi.JobStatus, error)
	}

	// TranscriptSaver appends one completed transcription
	TranscriptSaver interface {
		Save(text, fileURL string) (*persistence.Transcript, error)
	}

	// TranscriptProvider retrieves the transcription history, newest first
	TranscriptProvider interface {
		List() ([]persistence.Transcript, error)
	}
)

//extra poll attempts on a transport failure before the request fails
const pollTransportRetries = 2

// Workflow runs the store - submit - poll - persist pipeline for one upload.
// It is safe for concurrent use, every call is independent.
type Workflow struct {
	BlobSaver   BlobSaver
	Transcriber Transcriber
	DB          TranscriptSaver

	PollInterval time.Duration
	MaxWait      time.Duration
}

// Run takes one audio submission through the pipeline. Failures are
// stage-tagged. On a persist failure the transcription is still
// returned - the external work succeeded, only the history is short one
// record, and that is logged.
func (w *Workflow) Run(fileName, mimeType string, data []byte) (*api.Result, error) {
	if len(data) == 0 {
		return nil, ErrNoFile
	}

	fileURL, err := w.BlobSaver.Store(fileName, mimeType, data)
	if err != nil {
		return nil, newStageError(stgStorage, err)
	}
	cmdapp.Log.Infof("Stored audio: %s", fileURL)

	ID, err := w.Transcriber.Submit(fileURL)
	if err != nil {
		return nil, newStageError(stgSubmit, err)
	}
	cmdapp.Log.Infof("Submitted transcription job %s", ID)

	text, err := w.waitForResult(ID)
	if err != nil {
		return nil, newStageError(stgTranscribe, err)
	}

	res := &api.Result{Transcription: text, FileURL: fileURL}
	rec, err := w.DB.Save(text, fileURL)
	if err != nil {
		cmdapp.Log.Error(errors.Wrap(err, "can't save transcript"))
		return res, nil
	}
	res.ID = rec.ID
	res.Created = &rec.Created
	return res, nil
}

func (w *Workflow) waitForResult(ID string) (string, error) {
	deadline := time.Now().Add(w.MaxWait)
	for {
		st, err := w.poll(ID)
		if err != nil {
			return "", err
		}
		if st.Status == sttapi.StCompleted {
			return st.Text, nil
		}
		if st.Status == sttapi.StError {
			return "", errors.Errorf("transcription failed: %s", st.ErrorDetail)
		}
		if time.Now().After(deadline) {
			return "", errors.Wrapf(ErrTimeout, "job %s", ID)
		}
		time.Sleep(w.PollInterval)
	}
}

func (w *Workflow) poll(ID string) (*sttapi.JobStatus, error) {
	var res *sttapi.JobStatus
	op := func() error {
		var err error
		res, err = w.Transcriber.Poll(ID)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(w.PollInterval), pollTransportRetries)
	err := backoff.Retry(op, bo)
	if err != nil {
		return nil, errors.Wrap(err, "can't get job status")
	}
	return res, nil
}
