package mongo

const (
	store           = "scribe"
	transcriptTable = "transcripts"
	counterTable    = "counters"
)

var indexData = []IndexData{
	newIndexData(transcriptTable, "created_at", false)}
