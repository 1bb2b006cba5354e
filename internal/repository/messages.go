package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/logger"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

type MessageRepository struct {
	col *mongo.Collection
	pub dataservice.Publisher
	log *zap.Logger
}

// NewMessageRepository returns the messages store. When pub is set every mutation is also
// published as a feed event.
func NewMessageRepository(ctx context.Context, db *mongo.Database, pub dataservice.Publisher, log *zap.Logger) (*MessageRepository, error) {
	col := db.Collection(messagesCollection)
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "sender_id", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "receiver_id", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return nil, err
	}
	return &MessageRepository{col: col, pub: pub, log: logger.OrNop(log)}, nil
}

func (r *MessageRepository) publish(ctx context.Context, ev dataservice.Event) {
	if r.pub == nil {
		return
	}
	if err := r.pub.Publish(ctx, ev); err != nil {
		r.log.Warn("publish feed event", zap.String("type", string(ev.Type)), zap.String("message_id", ev.ID), zap.Error(err))
	}
}

func (r *MessageRepository) ListForUser(ctx context.Context, userID string) ([]*domain.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	filter := bson.M{"$or": []bson.M{{"sender_id": userID}, {"receiver_id": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var m domain.Message
		if err := cur.Decode(&m); err != nil {
			return nil, err
		}
		m.Normalize()
		out = append(out, &m)
	}
	return out, cur.Err()
}

func (r *MessageRepository) InsertMessage(ctx context.Context, m *domain.Message) (*domain.Message, error) {
	rec := m.Clone()
	rec.ID = utils.NewID()
	// mongo keeps millisecond precision
	rec.CreatedAt = utils.NowUTC().Truncate(time.Millisecond)
	rec.Normalize()

	octx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if _, err := r.col.InsertOne(octx, rec); err != nil {
		return nil, err
	}
	r.publish(ctx, dataservice.Event{Type: dataservice.EventInsert, ID: rec.ID, Record: rec.Clone()})
	return rec, nil
}

func (r *MessageRepository) update(ctx context.Context, id string, update bson.M) (*domain.Message, error) {
	octx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var m domain.Message
	err := r.col.FindOneAndUpdate(octx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, dataservice.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Normalize()
	r.publish(ctx, dataservice.Event{Type: dataservice.EventUpdate, ID: m.ID, Record: m.Clone()})
	return &m, nil
}

func (r *MessageRepository) EditMessage(ctx context.Context, id, content string, at time.Time) (*domain.Message, error) {
	return r.update(ctx, id, bson.M{"$set": bson.M{"content": content, "edited_at": at.UTC()}})
}

func (r *MessageRepository) SetReactions(ctx context.Context, id string, reactions []domain.Reaction) (*domain.Message, error) {
	if reactions == nil {
		reactions = []domain.Reaction{}
	}
	return r.update(ctx, id, bson.M{"$set": bson.M{"reactions": reactions}})
}

func (r *MessageRepository) SoftDelete(ctx context.Context, id, userID string) (*domain.Message, error) {
	// older rows may carry a null deleted_for, which $addToSet rejects
	octx, cancel := context.WithTimeout(ctx, opTimeout)
	_, err := r.col.UpdateOne(octx,
		bson.M{"_id": id, "deleted_for": bson.M{"$not": bson.M{"$type": "array"}}},
		bson.M{"$set": bson.M{"deleted_for": []string{}}},
	)
	cancel()
	if err := ignoreNoDocuments(err); err != nil {
		return nil, err
	}
	return r.update(ctx, id, bson.M{"$addToSet": bson.M{"deleted_for": userID}})
}

// ignoreNoDocuments treats a filter that matched nothing as success.
func ignoreNoDocuments(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	return err
}

func (r *MessageRepository) DeleteMessage(ctx context.Context, id string) error {
	octx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	res, err := r.col.DeleteOne(octx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return dataservice.ErrNotFound
	}
	r.publish(ctx, dataservice.Event{Type: dataservice.EventDelete, ID: id})
	return nil
}

func (r *MessageRepository) DeleteConversation(ctx context.Context, a, b string) (int64, error) {
	filter := bson.M{"$or": []bson.M{
		{"sender_id": a, "receiver_id": b},
		{"sender_id": b, "receiver_id": a},
	}}

	octx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	var ids []string
	if r.pub != nil {
		cur, err := r.col.Find(octx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
		if err != nil {
			return 0, err
		}
		var rows []struct {
			ID string `bson:"_id"`
		}
		if err := cur.All(octx, &rows); err != nil {
			return 0, err
		}
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
	}

	res, err := r.col.DeleteMany(octx, filter)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		r.publish(ctx, dataservice.Event{Type: dataservice.EventDelete, ID: id})
	}
	return res.DeletedCount, nil
}
