package repository

import (
	"context"
	"fmt"
	"time"

	"labbook/pkg/config"
	"labbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AnswerRepository interface {
	InsertMany(ctx context.Context, answers []model.Answer) error
	FindByBooking(ctx context.Context, bookingID string) ([]model.Answer, error)
}

type mongoAnswerRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAnswerRepository(cfg *config.Config) AnswerRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAnswerRepository{
		cfg:        cfg,
		collection: db.Collection("Answers"),
	}
}

func (r *mongoAnswerRepository) InsertMany(ctx context.Context, answers []model.Answer) error {
	if len(answers) == 0 {
		return nil
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(answers))
	for i := range answers {
		answers[i].CreatedAt = now
		docs = append(docs, answers[i])
	}

	if _, err := r.collection.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert answers: %w", err)
	}
	return nil
}

func (r *mongoAnswerRepository) FindByBooking(ctx context.Context, bookingID string) ([]model.Answer, error) {
	opts := options.Find().SetSort(bson.D{{Key: "question_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find answers: %w", err)
	}
	defer cursor.Close(ctx)

	var answers []model.Answer
	if err = cursor.All(ctx, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers: %w", err)
	}

	return answers, nil
}
