package document

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ragline/internal/rag"
)

const CollectionName = "documents"

type mongoDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Text      string             `bson:"text"`
	Source    string             `bson:"source"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (m mongoDocument) toDocument() rag.Document {
	return rag.Document{
		ID:        m.ID.Hex(),
		Text:      m.Text,
		Source:    rag.SourceKind(m.Source),
		CreatedAt: m.CreatedAt,
	}
}

type MongoRepo struct {
	coll *mongo.Collection
}

func NewMongoRepo(coll *mongo.Collection) *MongoRepo {
	return &MongoRepo{coll: coll}
}

func (r *MongoRepo) Save(ctx context.Context, doc *rag.Document) error {
	m := mongoDocument{
		ID:        primitive.NewObjectID(),
		Text:      doc.Text,
		Source:    string(doc.Source),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return err
	}
	doc.ID = m.ID.Hex()
	doc.CreatedAt = m.CreatedAt
	return nil
}

func (r *MongoRepo) Get(ctx context.Context, id string) (*rag.Document, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, rag.ErrNotFound
	}
	var m mongoDocument
	err = r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, rag.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d := m.toDocument()
	return &d, nil
}

func (r *MongoRepo) List(ctx context.Context, limit int) ([]rag.Document, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	cur, err := r.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, err
	}
	var found []mongoDocument
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}
	docs := make([]rag.Document, 0, len(found))
	for _, m := range found {
		docs = append(docs, m.toDocument())
	}
	return docs, nil
}

func (r *MongoRepo) Count(ctx context.Context) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{})
	return int(n), err
}
