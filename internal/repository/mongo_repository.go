package repository

import (
	"context"
	"time"

	"github.com/fjod/go_cart/storefront-cart/internal/domain"
	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const cartTTL = 90 * 24 * time.Hour

type mongoRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

func NewMongoRepository(db *mongo.Database) CartRepository {
	return &mongoRepository{
		collection: db.Collection("carts"),
		now:        time.Now,
	}
}

func (m *mongoRepository) FetchCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	res := m.collection.FindOne(ctx, bson.M{"owner_id": ownerID})
	cart, err := decodeCart(res)
	return cart, domain.NewTransportError("fetch", err)
}

// ReplaceCart overwrites the owner's lines, creating the cart if needed.
func (m *mongoRepository) ReplaceCart(ctx context.Context, ownerID string, cart *domain.Cart) (*domain.Cart, error) {
	now := m.now()
	lines := []domain.CartLine{}
	if cart != nil {
		lines = domain.Normalize(cart.Lines)
	}

	update := bson.M{
		"$set":         bson.M{"lines": lines, "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	res := m.collection.FindOneAndUpdate(ctx, bson.M{"owner_id": ownerID}, update, upsertAfter())
	replaced, err := decodeCart(res)
	return replaced, domain.NewTransportError("replace", err)
}

// AppendLine increments the matching line, or pushes a new one when no line
// with the same product and size exists. A missing cart is created.
func (m *mongoRepository) AppendLine(ctx context.Context, ownerID, productID, size string, quantity int) (*domain.Cart, error) {
	if err := domain.ValidateLine(productID, quantity); err != nil {
		return nil, err
	}
	key := domain.NewLineKey(productID, size)
	now := m.now()
	match := bson.M{"product_id": key.ProductID, "size": key.Size}

	// Existing line
	res := m.collection.FindOneAndUpdate(ctx,
		bson.M{"owner_id": ownerID, "lines": bson.M{"$elemMatch": match}},
		bson.M{
			"$inc": bson.M{"lines.$.quantity": quantity},
			"$set": bson.M{"updated_at": now},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	cart, err := decodeCart(res)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, domain.NewTransportError("append", err)
	}

	// New line, possibly in a new cart
	line := domain.CartLine{ProductID: key.ProductID, Size: key.Size, Quantity: quantity}
	res = m.collection.FindOneAndUpdate(ctx,
		bson.M{"owner_id": ownerID, "lines": bson.M{"$not": bson.M{"$elemMatch": match}}},
		bson.M{
			"$push":        bson.M{"lines": line},
			"$set":         bson.M{"updated_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		upsertAfter(),
	)
	cart, err = decodeCart(res)
	return cart, domain.NewTransportError("append", err)
}

// UpdateLineQuantity sets the quantity of an existing line. A quantity <= 0 removes it.
// An unknown line is left alone.
func (m *mongoRepository) UpdateLineQuantity(ctx context.Context, ownerID string, key domain.LineKey, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return m.RemoveLine(ctx, ownerID, key)
	}

	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"elem.product_id": key.ProductID, "elem.size": key.Size},
			},
		})
	res := m.collection.FindOneAndUpdate(ctx,
		bson.M{"owner_id": ownerID},
		bson.M{"$set": bson.M{
			"lines.$[elem].quantity": quantity,
			"updated_at":             m.now(),
		}},
		opts,
	)
	cart, err := decodeCart(res)
	return cart, domain.NewTransportError("update", err)
}

func (m *mongoRepository) RemoveLine(ctx context.Context, ownerID string, key domain.LineKey) (*domain.Cart, error) {
	res := m.collection.FindOneAndUpdate(ctx,
		bson.M{"owner_id": ownerID},
		bson.M{
			"$pull": bson.M{"lines": bson.M{"product_id": key.ProductID, "size": key.Size}},
			"$set":  bson.M{"updated_at": m.now()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	cart, err := decodeCart(res)
	return cart, domain.NewTransportError("remove", err)
}

// ClearCart empties the cart. The document is kept.
func (m *mongoRepository) ClearCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	res := m.collection.FindOneAndUpdate(ctx,
		bson.M{"owner_id": ownerID},
		bson.M{"$set": bson.M{"lines": []domain.CartLine{}, "updated_at": m.now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	cart, err := decodeCart(res)
	return cart, domain.NewTransportError("clear", err)
}

func (m *mongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "owner_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

// IndexCreator is implemented by repositories that need indexes at startup.
type IndexCreator interface {
	CreateIndexes(ctx context.Context) error
}

func upsertAfter() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
}

func decodeCart(res *mongo.SingleResult) (*domain.Cart, error) {
	var cart domain.Cart
	if err := res.Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, errors.Wrap(err, "decode cart")
	}
	if cart.Lines == nil {
		cart.Lines = []domain.CartLine{}
	}
	return &cart, nil
}
