package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"imnci-mentorship/internal/domain"
)

// SessionStore keeps one document per session in MongoDB.
type SessionStore struct {
	collection *mongo.Collection
}

func NewSessionStore(client *mongo.Client, database string) *SessionStore {
	return &SessionStore{
		collection: client.Database(database).Collection("checklist_sessions"),
	}
}

// Save upserts the session unless a complete document already holds its id. The filter excludes
// complete documents, so the upsert collides on _id and the duplicate-key error signals the refusal.
func (s *SessionStore) Save(ctx context.Context, session domain.Session) (string, error) {
	filter := bson.M{"_id": session.ID, "status": bson.M{"$ne": string(domain.StatusComplete)}}
	opts := options.Replace().SetUpsert(true)
	_, err := s.collection.ReplaceOne(ctx, filter, session, opts)
	if mongo.IsDuplicateKeyError(err) {
		return "", domain.ErrSessionCompleted
	}
	if err != nil {
		return "", fmt.Errorf("save session: %w", err)
	}
	return session.ID, nil
}

func (s *SessionStore) Load(ctx context.Context, id string) (domain.Session, error) {
	var session domain.Session
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("load session: %w", err)
	}
	return session, nil
}
