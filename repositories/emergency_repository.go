package repositories

import (
	"context"
	"time"

	"lifeline/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EmergencyRepository stores one history record per emergency episode.
type EmergencyRepository struct {
	collection *mongo.Collection
}

func NewEmergencyRepository(database *mongo.Database) *EmergencyRepository {
	return &EmergencyRepository{
		collection: database.Collection("emergencies"),
	}
}

// SaveEmergency upserts the record for its episode. Records carry a revision
// and an older revision never overwrites a newer one.
func (er *EmergencyRepository) SaveEmergency(ctx context.Context, record *models.EmergencyRecord) error {
	filter := bson.M{
		"episodeId": record.EpisodeID,
		"revision":  bson.M{"$lt": record.Revision},
	}
	update := bson.M{
		"$set": bson.M{
			"userId":              record.UserID,
			"state":               record.State,
			"startedAt":           record.StartedAt,
			"endedAt":             record.EndedAt,
			"durationSeconds":     record.DurationSeconds,
			"location":            record.Location,
			"locationFailure":     record.LocationFailure,
			"directoryError":      record.DirectoryError,
			"dispatchOrder":       record.DispatchOrder,
			"notificationResults": record.NotificationResults,
			"dispatchOutcome":     record.DispatchOutcome,
			"cancelReason":        record.CancelReason,
			"resolution":          record.Resolution,
			"resolvedBy":          record.ResolvedBy,
			"revision":            record.Revision,
			"updatedAt":           time.Now(),
		},
		"$setOnInsert": bson.M{
			"createdAt": record.CreatedAt,
		},
	}

	_, err := er.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		// A newer revision is already stored.
		return nil
	}
	if err != nil {
		logrus.Errorf("Failed to save emergency %s: %v", record.EpisodeID, err)
		return err
	}
	return nil
}

func (er *EmergencyRepository) GetUserEmergencies(ctx context.Context, userID string, limit int64) ([]models.EmergencyRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "startedAt", Value: -1}}).
		SetLimit(limit)

	cursor, err := er.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		logrus.Errorf("Failed to get user emergencies: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	records := []models.EmergencyRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
