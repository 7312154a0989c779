package blobstore

import (
	"path"
	"path/filepath"
	"strings"

	"bitbucket.org/aleksas/scribe/internal/pkg/cmdapp"
	"bitbucket.org/aleksas/scribe/internal/pkg/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hashicorp/go-retryablehttp"
)

//ErrUnavailable indicates the blob store could not be reached
var ErrUnavailable = errors.New("Blob store unavailable")

//ErrRejected indicates the blob store refused the content
var ErrRejected = errors.New("Blob store rejected content")

//Client uploads audio to the object store and returns public URLs
type Client struct {
	httpclient *retryablehttp.Client
	uploadURL  string
	publicURL  string
	key        string
	prefix     string
}

//NewClient creates a blob store client
func NewClient() (*Client, error) {
	res := Client{}
	urlStr, err := utils.GetURLFromConfig("blobStore.url")
	if err != nil {
		return nil, err
	}
	res.key = cmdapp.Config.GetString("blobStore.key")
	if res.key == "" {
		return nil, errors.New("No blobStore.key setting provided")
	}
	bucket := cmdapp.Config.GetString("blobStore.bucket")
	if bucket == "" {
		return nil, errors.New("No blobStore.bucket setting provided")
	}
	res.prefix = strings.Trim(cmdapp.Config.GetString("blobStore.prefix"), "/")
	res.uploadURL = utils.URLJoin(urlStr, "storage/v1/object", bucket)
	res.publicURL = utils.URLJoin(urlStr, "storage/v1/object/public", bucket)
	res.httpclient = retryablehttp.NewClient()
	res.httpclient.RetryMax = 3
	res.httpclient.Logger = nil

	return &res, nil
}

//Store uploads data and returns a public URL for the new object.
//The object path is unique per call, so a transport level retry
//overwrites the same path (upsert) and never duplicates the blob.
func (sp *Client) Store(name, mimeType string, data []byte) (string, error) {
	objPath := sp.newPath(name)
	urlStr := utils.URLJoin(sp.uploadURL, objPath)
	cmdapp.Log.Infof("Upload audio to: %s", urlStr)

	req, err := retryablehttp.NewRequest("POST", urlStr, data)
	if err != nil {
		return "", errors.Wrap(err, "Can't prepare request")
	}
	req.Header.Set("Authorization", "Bearer "+sp.key)
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("x-upsert", "true")

	resp, err := sp.httpclient.Do(req)
	if err != nil {
		return "", errors.Wrapf(ErrUnavailable, "can't upload: %s", err.Error())
	}
	defer resp.Body.Close()
	err = utils.ValidateResponse(resp)
	if err != nil {
		if errors.Cause(err) == utils.ErrWrongHTTPCall {
			return "", errors.Wrapf(ErrRejected, "upload failed: %s", err.Error())
		}
		return "", errors.Wrapf(ErrUnavailable, "upload failed: %s", err.Error())
	}
	return utils.URLJoin(sp.publicURL, objPath), nil
}

func (sp *Client) newPath(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return path.Join(sp.prefix, uuid.New().String()+ext)
}
