package sttapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testResp struct {
	code int
	resp string
}

type testReq struct {
	URL  string
	auth string
	body string
}

func newTestR(code int, resp string) testResp {
	return testResp{code: code, resp: resp}
}

func initTestServer(t *testing.T, rData map[string]testResp) (*Client, *httptest.Server, *[]testReq) {
	t.Helper()
	resRequest := make([]testReq, 0)
	rLock := &sync.Mutex{}
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, req *http.Request) {
		rLock.Lock()
		defer rLock.Unlock()
		b, _ := io.ReadAll(req.Body)
		resRequest = append(resRequest, testReq{URL: req.URL.String(),
			auth: req.Header.Get("Authorization"), body: string(b)})
		resp, f := rData[req.URL.String()]
		if f {
			rw.WriteHeader(resp.code)
			rw.Write([]byte(resp.resp))
		}
	}))
	api := Client{}
	api.httpclient = server.Client()
	api.transcURL = server.URL + "/v2/transcript"
	api.key = "test-key"
	return &api, server, &resRequest
}

func testCalled(t *testing.T, URL string, tReq []testReq) {
	t.Helper()
	assert.GreaterOrEqual(t, len(tReq), 1)
	str := ""
	for _, r := range tReq {
		str = r.URL
		if str == URL {
			return
		}
	}
	assert.Equal(t, URL, str)
}

func TestSubmit(t *testing.T) {
	api, server, tReq := initTestServer(t, map[string]testResp{"/v2/transcript": newTestR(200, `{"id":"j1","status":"queued"}`)})
	defer server.Close()

	r, err := api.Submit("https://store/recordings/abc123.wav")

	assert.Nil(t, err)
	assert.Equal(t, "j1", r)
	testCalled(t, "/v2/transcript", *tReq)
	assert.Equal(t, "test-key", (*tReq)[0].auth)
	var req submitRequest
	json.Unmarshal([]byte((*tReq)[0].body), &req)
	assert.Equal(t, "https://store/recordings/abc123.wav", req.AudioURL)
}

func TestSubmit_NoID_Fails(t *testing.T) {
	api, server, tReq := initTestServer(t, map[string]testResp{"/v2/transcript": newTestR(200, `{"id":""}`)})
	defer server.Close()

	r, err := api.Submit("https://store/a.wav")

	assert.NotNil(t, err)
	assert.Equal(t, "", r)
	testCalled(t, "/v2/transcript", *tReq)
}

func TestSubmit_WrongCode_Fails(t *testing.T) {
	api, server, tReq := initTestServer(t, map[string]testResp{"/v2/transcript": newTestR(401, "")})
	defer server.Close()

	r, err := api.Submit("https://store/a.wav")

	assert.NotNil(t, err)
	assert.Equal(t, "", r)
	testCalled(t, "/v2/transcript", *tReq)
}

func TestSubmit_WrongJSON_Fails(t *testing.T) {
	api, server, tReq := initTestServer(t, map[string]testResp{"/v2/transcript": newTestR(200, "olia")})
	defer server.Close()

	r, err := api.Submit("https://store/a.wav")

	assert.NotNil(t, err)
	assert.Equal(t, "", r)
	testCalled(t, "/v2/transcript", *tReq)
}

func TestSubmit_OneCallOnly(t *testing.T) {
	api, server, tReq := initTestServer(t, map[string]testResp{"/v2/transcript": newTestR(500, "")})
	defer server.Close()

	_, err := api.Submit("https://store/a.wav")

	assert.NotNil(t, err)
	assert.Equal(t, 1, len(*tReq))
}

func TestPoll_Completed(t *testing.T) {
	api, server, tReq := initTestServer(t, map[string]testResp{"/v2/transcript/j1": newTestR(200,
		`{"id":"j1","status":"completed","text":"hello world"}`)})
	defer server.Close()

	r, err := api.Poll("j1")

	assert.Nil(t, err)
	assert.Equal(t, "j1", r.ID)
	assert.Equal(t, StCompleted, r.Status)
	assert.Equal(t, "hello world", r.Text)
	assert.True(t, r.Terminal())
	testCalled(t, "/v2/transcript/j1", *tReq)
	assert.Equal(t, "test-key", (*tReq)[0].auth)
}

func TestPoll_Processing(t *testing.T) {
	api, server, _ := initTestServer(t, map[string]testResp{"/v2/transcript/j1": newTestR(200,
		`{"id":"j1","status":"processing"}`)})
	defer server.Close()

	r, err := api.Poll("j1")

	assert.Nil(t, err)
	assert.Equal(t, StProcessing, r.Status)
	assert.False(t, r.Terminal())
}

func TestPoll_Error(t *testing.T) {
	api, server, _ := initTestServer(t, map[string]testResp{"/v2/transcript/j1": newTestR(200,
		`{"id":"j1","status":"error","error":"audio too quiet"}`)})
	defer server.Close()

	r, err := api.Poll("j1")

	assert.Nil(t, err)
	assert.Equal(t, StError, r.Status)
	assert.Equal(t, "audio too quiet", r.ErrorDetail)
	assert.True(t, r.Terminal())
}

func TestPoll_WrongCode_Fails(t *testing.T) {
	api, server, tReq := initTestServer(t, map[string]testResp{"/v2/transcript/j1": newTestR(500, "")})
	defer server.Close()

	r, err := api.Poll("j1")

	assert.NotNil(t, err)
	assert.Nil(t, r)
	testCalled(t, "/v2/transcript/j1", *tReq)
}

func TestPoll_WrongJSON_Fails(t *testing.T) {
	api, server, _ := initTestServer(t, map[string]testResp{"/v2/transcript/j1": newTestR(200, "olia")})
	defer server.Close()

	r, err := api.Poll("j1")

	assert.NotNil(t, err)
	assert.Nil(t, r)
}

func TestPoll_NoStatus_Fails(t *testing.T) {
	api, server, _ := initTestServer(t, map[string]testResp{"/v2/transcript/j1": newTestR(200, `{"id":"j1"}`)})
	defer server.Close()

	r, err := api.Poll("j1")

	assert.NotNil(t, err)
	assert.Nil(t, r)
}
