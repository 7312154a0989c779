package mongo

import (
	"context"
	"time"

	"bitbucket.org/aleksas/scribe/internal/pkg/cmdapp"
	"bitbucket.org/aleksas/scribe/internal/pkg/persistence"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	mongoDrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Transcripts keeps the transcription history in mongo db
type Transcripts struct {
	SessionProvider *SessionProvider
}

//NewTranscripts creates Transcripts instance
func NewTranscripts(sessionProvider *SessionProvider) (*Transcripts, error) {
	f := Transcripts{SessionProvider: sessionProvider}
	return &f, nil
}

// Save inserts one completed transcription and returns the persisted record
func (ts *Transcripts) Save(text, fileURL string) (*persistence.Transcript, error) {
	cmdapp.Log.Infof("Saving transcript for %s", fileURL)

	ctx, cancel := mongoContext()
	defer cancel()

	session, err := ts.SessionProvider.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(context.Background())

	id, err := nextID(ctx, session.Client())
	if err != nil {
		return nil, errors.Wrap(err, "can't get next transcript ID")
	}

	res := &persistence.Transcript{ID: id, Text: text, FileURL: fileURL, Created: time.Now().UTC()}
	c := session.Client().Database(store).Collection(transcriptTable)
	_, err = c.InsertOne(ctx, res)
	if err != nil {
		return nil, errors.Wrap(err, "can't insert transcript")
	}
	return res, nil
}

// List returns all transcripts ordered by creation time, newest first
func (ts *Transcripts) List() ([]persistence.Transcript, error) {
	ctx, cancel := mongoContext()
	defer cancel()

	session, err := ts.SessionProvider.NewSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(context.Background())

	c := session.Client().Database(store).Collection(transcriptTable)
	cursor, err := c.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, errors.Wrap(err, "can't get transcripts")
	}
	res := []persistence.Transcript{}
	err = cursor.All(ctx, &res)
	if err != nil {
		return nil, errors.Wrap(err, "can't decode transcripts")
	}
	return res, nil
}

// nextID assigns the next int ID from the counters collection, one atomic $inc per record
func nextID(ctx context.Context, client *mongoDrv.Client) (int64, error) {
	c := client.Database(store).Collection(counterTable)
	var res struct {
		Value int64 `bson:"value"`
	}
	err := c.FindOneAndUpdate(ctx,
		bson.M{"_id": transcriptTable},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)).Decode(&res)
	if err != nil {
		return 0, err
	}
	return res.Value, nil
}
