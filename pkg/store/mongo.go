/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type adminDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	PasswordHash string             `bson:"password_hash"`
	Name         string             `bson:"name"`
	Role         string             `bson:"role"`
	CreatedAt    time.Time          `bson:"created_at"`
	LastLogin    *time.Time         `bson:"last_login"`
}

type subscriberDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Email        string             `bson:"email"`
	SubscribedAt time.Time          `bson:"subscribed_at"`
	Source       string             `bson:"source"`
	IPAddress    string             `bson:"ip_address"`
}

type inquiryDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Email       string             `bson:"email"`
	InquiryType string             `bson:"inquiryType"`
	Message     string             `bson:"message"`
	SubmittedAt time.Time          `bson:"submitted_at"`
	Status      string             `bson:"status"`
	Source      string             `bson:"source"`
	IPAddress   string             `bson:"ip_address"`
}

// Mongo is the MongoDB-backed Store.
type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.SugaredLogger
}

var _ Store = (*Mongo)(nil)

// MongoOptions configures NewMongo.
type MongoOptions struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

// NewMongo connects to MongoDB and verifies the connection with a ping.
func NewMongo(ctx context.Context, opts MongoOptions, log *zap.SugaredLogger) (*Mongo, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.ConnectTimeout).
		SetServerSelectionTimeout(opts.ConnectTimeout))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	log.Infow("Connected to MongoDB", "database", opts.Database)
	return &Mongo{client: client, db: client.Database(opts.Database), log: log}, nil
}

// EnsureIndexes creates the unique email indexes admin provisioning and
// subscription rely on. It is safe to call on every start.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	for _, coll := range []string{CollectionAdmins, CollectionSubscribers} {
		name, err := m.db.Collection(coll).Indexes().CreateOne(ctx, mongo.IndexModel{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: unique,
		})
		if err != nil {
			return fmt.Errorf("creating email index on %s: %w", coll, err)
		}
		m.log.Debugw("Ensured index", "collection", coll, "index", name)
	}
	return nil
}

func (m *Mongo) FindAdminByEmail(ctx context.Context, email string) (*Admin, error) {
	var doc adminDoc
	err := m.db.Collection(CollectionAdmins).FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding admin: %w", err)
	}
	return &Admin{
		ID:           doc.ID.Hex(),
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		Name:         doc.Name,
		Role:         doc.Role,
		CreatedAt:    doc.CreatedAt,
		LastLogin:    doc.LastLogin,
	}, nil
}

func (m *Mongo) InsertAdmin(ctx context.Context, admin *Admin) (string, error) {
	res, err := m.db.Collection(CollectionAdmins).InsertOne(ctx, adminDoc{
		Email:        admin.Email,
		PasswordHash: admin.PasswordHash,
		Name:         admin.Name,
		Role:         admin.Role,
		CreatedAt:    admin.CreatedAt,
		LastLogin:    admin.LastLogin,
	})
	if err != nil {
		return "", insertError("admin", err)
	}
	return insertedID(res), nil
}

func (m *Mongo) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid admin id %q: %w", id, err)
	}
	res, err := m.db.Collection(CollectionAdmins).UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"last_login": at}})
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *Mongo) FindSubscriberByEmail(ctx context.Context, email string) (*Subscriber, error) {
	var doc subscriberDoc
	err := m.db.Collection(CollectionSubscribers).FindOne(ctx, bson.M{"email": email}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding subscriber: %w", err)
	}
	s := doc.toSubscriber()
	return &s, nil
}

func (m *Mongo) InsertSubscriber(ctx context.Context, sub *Subscriber) (string, error) {
	res, err := m.db.Collection(CollectionSubscribers).InsertOne(ctx, subscriberDoc{
		Email:        sub.Email,
		SubscribedAt: sub.SubscribedAt,
		Source:       sub.Source,
		IPAddress:    sub.IPAddress,
	})
	if err != nil {
		return "", insertError("subscriber", err)
	}
	return insertedID(res), nil
}

func (m *Mongo) RecentSubscribers(ctx context.Context, limit int) ([]Subscriber, error) {
	var docs []subscriberDoc
	if err := m.findRecent(ctx, CollectionSubscribers, "subscribed_at", limit, &docs); err != nil {
		return nil, err
	}
	out := make([]Subscriber, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toSubscriber())
	}
	return out, nil
}

func (m *Mongo) CountSubscribers(ctx context.Context, since time.Time) (int64, error) {
	return m.countSince(ctx, CollectionSubscribers, "subscribed_at", since)
}

func (m *Mongo) InsertInquiry(ctx context.Context, inq *Inquiry) (string, error) {
	res, err := m.db.Collection(CollectionInquiries).InsertOne(ctx, inquiryDoc{
		Name:        inq.Name,
		Email:       inq.Email,
		InquiryType: inq.InquiryType,
		Message:     inq.Message,
		SubmittedAt: inq.SubmittedAt,
		Status:      inq.Status,
		Source:      inq.Source,
		IPAddress:   inq.IPAddress,
	})
	if err != nil {
		return "", insertError("inquiry", err)
	}
	return insertedID(res), nil
}

func (m *Mongo) InquiriesExist(ctx context.Context) (bool, error) {
	names, err := m.db.ListCollectionNames(ctx, bson.M{"name": CollectionInquiries})
	if err != nil {
		return false, fmt.Errorf("listing collections: %w", err)
	}
	return len(names) > 0, nil
}

func (m *Mongo) RecentInquiries(ctx context.Context, limit int) ([]Inquiry, error) {
	var docs []inquiryDoc
	if err := m.findRecent(ctx, CollectionInquiries, "submitted_at", limit, &docs); err != nil {
		return nil, err
	}
	out := make([]Inquiry, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toInquiry())
	}
	return out, nil
}

func (m *Mongo) CountInquiries(ctx context.Context, since time.Time) (int64, error) {
	return m.countSince(ctx, CollectionInquiries, "submitted_at", since)
}

func (m *Mongo) CountInquiriesByType(ctx context.Context) ([]TypeCount, error) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$inquiryType"},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := m.db.Collection(CollectionInquiries).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregating inquiries by type: %w", err)
	}
	out := []TypeCount{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decoding inquiry type counts: %w", err)
	}
	return out, nil
}

func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *Mongo) findRecent(ctx context.Context, coll, sortField string, limit int, into any) error {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := m.db.Collection(coll).Find(ctx, bson.M{}, opts)
	if err != nil {
		return fmt.Errorf("querying %s: %w", coll, err)
	}
	if err := cur.All(ctx, into); err != nil {
		return fmt.Errorf("decoding %s: %w", coll, err)
	}
	return nil
}

func (m *Mongo) countSince(ctx context.Context, coll, field string, since time.Time) (int64, error) {
	filter := bson.M{}
	if !since.IsZero() {
		filter[field] = bson.M{"$gte": since}
	}
	n, err := m.db.Collection(coll).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("counting %s: %w", coll, err)
	}
	return n, nil
}

func insertError(what string, err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("inserting %s: %w", what, ErrDuplicate)
	}
	return fmt.Errorf("inserting %s: %w", what, err)
}

func insertedID(res *mongo.InsertOneResult) string {
	if oid, ok := res.InsertedID.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(res.InsertedID)
}

func (d subscriberDoc) toSubscriber() Subscriber {
	return Subscriber{
		ID:           d.ID.Hex(),
		Email:        d.Email,
		SubscribedAt: d.SubscribedAt,
		Source:       d.Source,
		IPAddress:    d.IPAddress,
	}
}

func (d inquiryDoc) toInquiry() Inquiry {
	return Inquiry{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Email:       d.Email,
		InquiryType: d.InquiryType,
		Message:     d.Message,
		SubmittedAt: d.SubmittedAt,
		Status:      d.Status,
		Source:      d.Source,
		IPAddress:   d.IPAddress,
	}
}
