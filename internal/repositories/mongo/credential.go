package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radek-zitek-cloud/sentinel-auth/internal/models"
	"github.com/radek-zitek-cloud/sentinel-auth/internal/repositories"
)

// CredentialRepository is the Mongo-backed repositories.CredentialRepository.
type CredentialRepository struct {
	collection *mongo.Collection
}

func NewCredentialRepository(db *mongo.Database) *CredentialRepository {
	return &CredentialRepository{collection: db.Collection("credentials")}
}

func (r *CredentialRepository) Create(ctx context.Context, credential *models.Credential) error {
	if credential.CreatedAt.IsZero() {
		credential.CreatedAt = time.Now().UTC()
	}
	_, err := r.collection.InsertOne(ctx, credential)
	if mongo.IsDuplicateKeyError(err) {
		return repositories.ErrDuplicate
	}
	return err
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	var cred models.Credential
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&cred)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, repositories.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *CredentialRepository) ListByUser(ctx context.Context, userID string) ([]*models.Credential, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var creds []*models.Credential
	if err := cursor.All(ctx, &creds); err != nil {
		return nil, err
	}
	return creds, nil
}

func (r *CredentialRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"user_id": userID})
}

// UpdateSignCount performs the compare-and-swap required by invariant C1: it
// only advances SignCount when the stored value still matches
// expectedPrevious, so a concurrent or replayed assertion can never both
// succeed against the same prior count.
func (r *CredentialRepository) UpdateSignCount(ctx context.Context, credentialID string, expectedPrevious, newValue uint32, usedAt time.Time) (bool, error) {
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": credentialID, "sign_count": expectedPrevious},
		bson.M{"$set": bson.M{"sign_count": newValue, "last_used_at": usedAt}},
	)
	if err != nil {
		return false, err
	}
	return result.ModifiedCount == 1, nil
}

func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
