package api

import "time"

//PrmAudio is the multipart form field carrying the audio file
const PrmAudio = "audio"

// Result - transcription POST method response in JSON.
// ID and Created are left out when the transcript could not be persisted.
type Result struct {
	Transcription string     `json:"transcription"`
	FileURL       string     `json:"file_url"`
	ID            int64      `json:"id,omitempty"`
	Created       *time.Time `json:"created_at,omitempty"`
}
