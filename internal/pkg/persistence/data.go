package persistence

import "time"

type (
	// Transcript is one completed transcription kept in the history store
	Transcript struct {
		ID      int64     `json:"id" bson:"ID"`
		Text    string    `json:"transcription" bson:"text"`
		FileURL string    `json:"file_url" bson:"fileURL"`
		Created time.Time `json:"created_at" bson:"created_at"`
	}
)
