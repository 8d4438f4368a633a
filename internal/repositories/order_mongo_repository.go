package repositories

import (
	"context"
	"fmt"

	"storefront/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoOrderDocument struct {
	ID                   primitive.ObjectID `bson:"_id,omitempty"`
	models.OrderDocument `bson:",inline"`
}

// MongoOrderStore is a MongoDB implementation of OrderStore.
type MongoOrderStore struct {
	db *mongo.Database
}

// NewMongoOrderStore creates a new instance of MongoOrderStore.
func NewMongoOrderStore(db *mongo.Database) *MongoOrderStore {
	return &MongoOrderStore{db: db}
}

func (m *MongoOrderStore) Insert(ctx context.Context, collection string, doc models.OrderDocument) (string, error) {
	res, err := m.db.Collection(collection).InsertOne(ctx, mongoOrderDocument{OrderDocument: doc})
	if err != nil {
		return "", fmt.Errorf("failed to insert order: %w", err)
	}

	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	return id.Hex(), nil
}

func (m *MongoOrderStore) Query(ctx context.Context, collection string, filter models.Filter) ([]models.OrderDocument, error) {
	query, err := mongoFilter(filter)
	if err != nil {
		return nil, err
	}

	cursor, err := m.db.Collection(collection).Find(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer cursor.Close(ctx)

	var found []mongoOrderDocument
	if err := cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}

	docs := make([]models.OrderDocument, 0, len(found))
	for _, f := range found {
		doc := f.OrderDocument
		doc.ID = f.ID.Hex()
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *MongoOrderStore) UpdateFulfillment(ctx context.Context, collection string, update models.FulfillmentUpdate) error {
	id, err := primitive.ObjectIDFromHex(update.OrderID)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, update.OrderID)
	}

	set := bson.M{}
	if update.Status != "" {
		set["status"] = update.Status
	}
	if update.ShippingProvider != "" {
		set["shippingProvider"] = update.ShippingProvider
	}
	if update.TrackingNumber != "" {
		set["trackingNumber"] = update.TrackingNumber
	}
	if len(set) == 0 {
		return nil
	}

	result, err := m.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update order fulfillment: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, update.OrderID)
	}
	return nil
}

// CreateIndexes adds the customer email index used by order history lookups.
func (m *MongoOrderStore) CreateIndexes(ctx context.Context) error {
	index := mongo.IndexModel{
		Keys:    bson.D{{Key: models.CustomerEmailField, Value: 1}},
		Options: options.Index().SetName("customer_email"),
	}
	if _, err := m.db.Collection(models.OrdersCollection).Indexes().CreateOne(ctx, index); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func mongoFilter(filter models.Filter) (bson.M, error) {
	switch filter.Field {
	case "_id", "id":
		id, err := primitive.ObjectIDFromHex(filter.Value)
		if err != nil {
			// no document can match an id that is not an ObjectID
			return bson.M{"_id": primitive.NilObjectID}, nil
		}
		return bson.M{"_id": id}, nil
	case models.CustomerEmailField, "customer.name", "status":
		return bson.M{filter.Field: filter.Value}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, filter.Field)
	}
}
