package sttapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"bitbucket.org/aleksas/scribe/internal/pkg/cmdapp"
	"bitbucket.org/aleksas/scribe/internal/pkg/utils"
	"github.com/pkg/errors"
)

//Job statuses reported by the transcription provider
const (
	StQueued     = "queued"
	StProcessing = "processing"
	StCompleted  = "completed"
	StError      = "error"
)

//JobStatus is one poll result for a transcription job
type JobStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Text        string `json:"text"`
	ErrorDetail string `json:"error"`
}

//Terminal returns true if no further transition can occur
func (st *JobStatus) Terminal() bool {
	return st.Status == StCompleted || st.Status == StError
}

//Client communicates with the transcription provider
type Client struct {
	//plain http client - a submit must never be silently retried,
	//every submission starts a new billable job
	httpclient *http.Client
	transcURL  string
	key        string
}

//NewClient creates a transcription api client
func NewClient() (*Client, error) {
	res := Client{}
	urlStr, err := utils.GetURLFromConfig("stt.url")
	if err != nil {
		return nil, err
	}
	res.key = cmdapp.Config.GetString("stt.key")
	if res.key == "" {
		return nil, errors.New("No stt.key setting provided")
	}
	res.transcURL = utils.URLJoin(urlStr, "v2/transcript")
	res.httpclient = &http.Client{Timeout: time.Minute}

	return &res, nil
}

type submitRequest struct {
	AudioURL string `json:"audio_url"`
}

type submitResponse struct {
	ID string `json:"id"`
}

//Submit starts a new transcription job for audio at the given URL.
//Exactly one external call is made, failures are returned to the caller.
func (sp *Client) Submit(audioURL string) (string, error) {
	cmdapp.Log.Infof("Submit transcription to: %s", sp.transcURL)

	bytesData, err := json.Marshal(submitRequest{AudioURL: audioURL})
	if err != nil {
		return "", errors.Wrap(err, "Can't marshal request")
	}
	req, err := http.NewRequest("POST", sp.transcURL, bytes.NewBuffer(bytesData))
	if err != nil {
		return "", errors.Wrap(err, "Can't prepare request")
	}
	req.Header.Set("Authorization", sp.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sp.httpclient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "Can't submit transcription")
	}
	defer resp.Body.Close()
	err = utils.ValidateResponse(resp)
	if err != nil {
		return "", errors.Wrap(err, "Can't submit transcription")
	}
	var respData submitResponse
	err = json.NewDecoder(resp.Body).Decode(&respData)
	if err != nil {
		return "", errors.Wrap(err, "Can't decode response")
	}
	if respData.ID == "" {
		return "", errors.New("No job ID in response")
	}
	return respData.ID, nil
}

//Poll gets the current status of a transcription job
func (sp *Client) Poll(ID string) (*JobStatus, error) {
	urlStr := utils.URLJoin(sp.transcURL, ID)
	cmdapp.Log.Debugf("Get job status: %s", urlStr)

	req, err := http.NewRequest("GET", urlStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Can't prepare request")
	}
	req.Header.Set("Authorization", sp.key)

	resp, err := sp.httpclient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "Can't get job status")
	}
	defer resp.Body.Close()
	err = utils.ValidateResponse(resp)
	if err != nil {
		return nil, errors.Wrap(err, "Can't get job status")
	}
	var result JobStatus
	err = json.NewDecoder(resp.Body).Decode(&result)
	if err != nil {
		return nil, errors.Wrap(err, "Can't decode response")
	}
	if result.Status == "" {
		return nil, errors.New("No status in response")
	}
	return &result, nil
}
