package repository

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/realaloky/Fast-chat-app/internal/dataservice"
	"github.com/realaloky/Fast-chat-app/internal/domain"
	"github.com/realaloky/Fast-chat-app/internal/utils"
)

type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(ctx context.Context, db *mongo.Database) (*UserRepository, error) {
	col := db.Collection(usersCollection)
	_, err := col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_code", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return nil, err
	}
	return &UserRepository{col: col}, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var u domain.User
	err := r.col.FindOne(ctx, filter).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, dataservice.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *UserRepository) FindByCode(ctx context.Context, code string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"user_code": code})
}

func (r *UserRepository) GetUsers(ctx context.Context, ids []string) ([]*domain.User, error) {
	if len(ids) == 0 {
		return []*domain.User{}, nil
	}
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, options.Find())
}

func (r *UserRepository) SearchUsers(ctx context.Context, query, excludeID string, limit int64) ([]*domain.User, error) {
	filter := bson.M{
		"_id": bson.M{"$ne": excludeID},
		"$or": []bson.M{
			{"username": bson.M{"$regex": regexp.QuoteMeta(query), "$options": "i"}},
			{"user_code": query},
		},
	}
	opts := options.Find().SetSort(bson.D{{Key: "username", Value: 1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	return r.find(ctx, filter, opts)
}

func (r *UserRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.User{}
	for cur.Next(ctx) {
		var u domain.User
		if err := cur.Decode(&u); err != nil {
			return nil, err
		}
		out = append(out, &u)
	}
	return out, cur.Err()
}

func (r *UserRepository) CreateUser(ctx context.Context, u *domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if u.ID == "" {
		u.ID = utils.NewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = utils.NowUTC()
	}
	_, err := r.col.InsertOne(ctx, u)
	if mongo.IsDuplicateKeyError(err) {
		return dataservice.ErrConflict
	}
	return err
}

func (r *UserRepository) UpdateUser(ctx context.Context, id string, upd domain.UserUpdate) (*domain.User, error) {
	if upd.Empty() {
		return r.GetUser(ctx, id)
	}
	set := bson.M{}
	if upd.FullName != nil {
		set["full_name"] = *upd.FullName
	}
	if upd.AvatarURL != nil {
		set["avatar_url"] = *upd.AvatarURL
	}
	if upd.Bio != nil {
		set["bio"] = *upd.Bio
	}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.IsOnline != nil {
		set["is_online"] = *upd.IsOnline
	}
	if upd.LastSeen != nil {
		set["last_seen"] = upd.LastSeen.UTC().Truncate(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	var u domain.User
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, dataservice.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
