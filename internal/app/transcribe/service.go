package transcribe

import (
	"encoding/json"
	"io"
	"log"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/aleksas/scribe/internal/app/transcribe/api"
	"bitbucket.org/aleksas/scribe/internal/pkg/cmdapp"
	"bitbucket.org/aleksas/scribe/internal/pkg/metrics"
	"github.com/facebookgo/grace/gracehttp"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/heptiolabs/healthcheck"
)

type serviceMetric struct {
	transcribeResponseDur prometheus.ObserverVec
	transcribeRequestSize prometheus.ObserverVec

	historyResponseDur prometheus.ObserverVec
}

// ServiceData keeps data required for service work
type ServiceData struct {
	Workflow *Workflow
	History  TranscriptProvider

	Port        int
	CorsOrigins []string
	health      healthcheck.Handler
	metrics     serviceMetric
}

//StartWebServer starts the HTTP service and listens for the requests
func StartWebServer(data *ServiceData) error {
	cmdapp.Log.Infof("Starting HTTP service at %d", data.Port)
	r := NewRouter(data)

	c := handlers.CORS(handlers.AllowedOrigins(data.CorsOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
		handlers.AllowCredentials())

	portStr := strconv.Itoa(data.Port)
	srv := http.Server{
		Addr:              ":" + portStr,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       180 * time.Second,
		// the transcription workflow polls an external job, a response
		// may legitimately take minutes
		WriteTimeout: 15 * time.Minute,
		Handler:      c(r),
	}

	w := cmdapp.Log.Writer()
	defer w.Close()
	l := log.New(w, "", 0)
	gracehttp.SetLogger(l)

	return gracehttp.Serve(&srv)
}

//NewRouter creates the router for HTTP service
func NewRouter(data *ServiceData) *mux.Router {
	initMetrics(&data.metrics)
	router := mux.NewRouter().StrictSlash(true)
	th := promhttp.InstrumentHandlerDuration(data.metrics.transcribeResponseDur,
		promhttp.InstrumentHandlerRequestSize(data.metrics.transcribeRequestSize, transcribeHandler{data: data}))
	hh := promhttp.InstrumentHandlerDuration(data.metrics.historyResponseDur, historyHandler{data: data})
	router.Methods("POST").Path("/api/transcribe").Handler(th)
	router.Methods("GET").Path("/api/transcribe/history").Handler(hh)
	// earlier route variant, kept for old clients
	router.Methods("GET").Path("/api/history").Handler(hh)
	router.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
	if data.health != nil {
		router.Methods("GET").Path("/live").HandlerFunc(data.health.LiveEndpoint)
		router.Methods("GET").Path("/ready").HandlerFunc(data.health.ReadyEndpoint)
	}
	return router
}

func initMetrics(m *serviceMetric) {
	trDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "transcribe_request_duration_seconds",
		Help: "Transcribe request duration",
	}, nil)
	trSize := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "transcribe_request_size_bytes",
		Help:    "Transcribe request size",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	}, nil)
	hiDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "history_request_duration_seconds",
		Help: "History request duration",
	}, nil)
	cmdapp.LogIf(metrics.Register(trDur))
	cmdapp.LogIf(metrics.Register(trSize))
	cmdapp.LogIf(metrics.Register(hiDur))
	m.transcribeResponseDur = trDur
	m.transcribeRequestSize = trSize
	m.historyResponseDur = hiDur
}

var allowedMimeTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/webm":  true,
	"audio/ogg":   true,
}

var extMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
	".ogg":  "audio/ogg",
}

type transcribeHandler struct {
	data *ServiceData
}

func (h transcribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmdapp.Log.Infof("Transcribe request from %s", r.Host)

	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		setError(w, http.StatusBadRequest, "No file uploaded")
		cmdapp.Log.Error(errors.Wrap(err, "Can't parse MultipartForm"))
		return
	}
	defer cleanFiles(r.MultipartForm)

	file, handler, err := r.FormFile(api.PrmAudio)
	if err != nil {
		setError(w, http.StatusBadRequest, "No file uploaded")
		cmdapp.Log.Error(errors.Wrap(err, "no form param "+api.PrmAudio))
		return
	}
	defer file.Close()

	mimeType := audioMimeType(handler)
	if !allowedMimeTypes[mimeType] {
		setError(w, http.StatusBadRequest, "Unsupported audio type")
		cmdapp.Log.Errorf("Unsupported audio type '%s' for '%s'", mimeType, handler.Filename)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		setError(w, http.StatusInternalServerError, "Can't read file")
		cmdapp.Log.Error(err)
		return
	}

	res, err := h.data.Workflow.Run(handler.Filename, mimeType, data)
	if err != nil {
		code, msg := errorResult(err)
		setError(w, code, msg)
		cmdapp.Log.Error(err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	err = encoder.Encode(res)
	if err != nil {
		setError(w, http.StatusInternalServerError, "Can't prepare result")
		cmdapp.Log.Error(err)
		return
	}
}

type historyHandler struct {
	data *ServiceData
}

func (h historyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmdapp.Log.Infof("History request from %s", r.Host)

	list, err := h.data.History.List()
	if err != nil {
		setError(w, http.StatusInternalServerError, "Can't retrieve history")
		cmdapp.Log.Error(err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	err = encoder.Encode(list)
	if err != nil {
		setError(w, http.StatusInternalServerError, "Can't prepare result")
		cmdapp.Log.Error(err)
		return
	}
}

// audioMimeType takes the client declared type, falling back to the file
// extension when the part carries none. The declared type is a hint,
// the allow list is the gate.
func audioMimeType(handler *multipart.FileHeader) string {
	ct := handler.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		mt, _, err := mime.ParseMediaType(ct)
		if err == nil {
			return mt
		}
	}
	return extMimeTypes[strings.ToLower(filepath.Ext(handler.Filename))]
}

type errorResponse struct {
	Error string `json:"error"`
}

func setError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	cmdapp.LogIf(json.NewEncoder(w).Encode(errorResponse{Error: msg}))
}

func cleanFiles(f *multipart.Form) {
	if f != nil {
		f.RemoveAll()
	}
}
