package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"returns-reconciliation-service/internal/model"
)

var ErrHistoryNotFound = errors.New("no status history for return")

// MongoJournal keeps the operator status history of each return and the sync run reports.
type MongoJournal struct {
	histories *mongo.Collection
	runs      *mongo.Collection
}

func NewMongoJournal(db *mongo.Database) *MongoJournal {
	return &MongoJournal{
		histories: db.Collection("return_status_history"),
		runs:      db.Collection("sync_runs"),
	}
}

// EnsureIndexes creates the lookup indexes used by the journal queries.
func (m *MongoJournal) EnsureIndexes(ctx context.Context) error {
	_, err := m.histories.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "return_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return err
	}
	_, err = m.runs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "started_at", Value: -1}},
	})
	return err
}

// AppendStatus clears the current marker of the previous entry and pushes the new one.
func (m *MongoJournal) AppendStatus(ctx context.Context, returnID uint64, record model.StatusRecord) error {
	record.Current = true
	now := time.Now().UTC()

	filter := bson.M{
		"return_id":       returnID,
		"history.current": true,
	}
	unset := bson.M{
		"$set": bson.M{"history.$.current": false},
	}
	if _, err := m.histories.UpdateOne(ctx, filter, unset); err != nil {
		return err
	}

	push := bson.M{
		"$set":         bson.M{"updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
		"$push":        bson.M{"history": record},
	}
	_, err := m.histories.UpdateOne(ctx, bson.M{"return_id": returnID}, push, options.Update().SetUpsert(true))
	return err
}

func (m *MongoJournal) History(ctx context.Context, returnID uint64) (*model.ReturnHistory, error) {
	var res model.ReturnHistory
	err := m.histories.FindOne(ctx, bson.M{"return_id": returnID}).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrHistoryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (m *MongoJournal) SaveRun(ctx context.Context, run model.SyncRun) error {
	filter := bson.M{"run_id": run.RunID}
	update := bson.M{"$set": run}
	_, err := m.runs.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// RecentRuns returns the latest sync reports, newest first.
func (m *MongoJournal) RecentRuns(ctx context.Context, limit int64) ([]model.SyncRun, error) {
	opts := options.Find().SetSort(bson.D{{Key: "started_at", Value: -1}}).SetLimit(limit)
	cur, err := m.runs.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []model.SyncRun
	for cur.Next(ctx) {
		var v model.SyncRun
		if err := cur.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, cur.Err()
}
