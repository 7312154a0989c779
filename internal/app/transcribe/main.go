package transcribe

import (
	"time"

	"bitbucket.org/aleksas/scribe/internal/pkg/blobstore"
	"bitbucket.org/aleksas/scribe/internal/pkg/cmdapp"
	"bitbucket.org/aleksas/scribe/internal/pkg/mongo"
	"bitbucket.org/aleksas/scribe/internal/pkg/sttapi"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/heptiolabs/healthcheck"
)

var rootCmd = &cobra.Command{
	Use:   "transcriptionService",
	Short: "Scribe Transcription Service",
	Long:  `HTTP server to upload audio, transcribe it and keep the transcription history`,
	Run:   run,
}

func init() {
	cmdapp.InitApplication(rootCmd)
	rootCmd.PersistentFlags().Int32P("port", "", 8000, "Default service port")
	cmdapp.Config.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	cmdapp.Config.SetDefault("port", 8000)
	cmdapp.Config.SetDefault("blobStore.bucket", "audio-files")
	cmdapp.Config.SetDefault("blobStore.prefix", "recordings")
	cmdapp.Config.SetDefault("stt.url", "https://api.assemblyai.com")
	cmdapp.Config.SetDefault("stt.pollInterval", "3s")
	cmdapp.Config.SetDefault("stt.timeout", "5m")
}

//Execute starts the server
func Execute() {
	cmdapp.Execute(rootCmd)
}

func run(cmd *cobra.Command, args []string) {
	cmdapp.Log.Info("Starting transcriptionService")
	var data ServiceData
	var err error
	data.health = healthcheck.NewHandler()

	bs, err := blobstore.NewClient()
	cmdapp.CheckOrPanic(err, "Can't init blob store client")

	stt, err := sttapi.NewClient()
	cmdapp.CheckOrPanic(err, "Can't init transcription client")

	mongoSessionProvider, err := mongo.NewSessionProvider()
	cmdapp.CheckOrPanic(err, "Can't init mongo")
	defer mongoSessionProvider.Close()
	data.health.AddLivenessCheck("mongo", healthcheck.Async(mongoSessionProvider.Healthy, 10*time.Second))

	transcripts, err := mongo.NewTranscripts(mongoSessionProvider)
	cmdapp.CheckOrPanic(err, "Can't init transcript repository")

	data.Workflow = &Workflow{BlobSaver: bs, Transcriber: stt, DB: transcripts,
		PollInterval: cmdapp.Config.GetDuration("stt.pollInterval"),
		MaxWait:      cmdapp.Config.GetDuration("stt.timeout")}
	data.History = transcripts

	data.CorsOrigins = cmdapp.Config.GetStringSlice("cors.origins")
	if len(data.CorsOrigins) == 0 {
		cmdapp.CheckOrPanic(errors.New("no value"), "No cors.origins configured")
	}
	data.Port = cmdapp.Config.GetInt("port")

	err = StartWebServer(&data)
	cmdapp.CheckOrPanic(err, "Can't start web server")
}
