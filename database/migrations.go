package database

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	Up          func(context.Context, *mongo.Database) error
}

// migrationRecord tracks applied migrations
type migrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"appliedAt"`
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Create emergency contacts collection with indexes",
		Up:          createEmergencyContactsCollection,
	},
	{
		Version:     2,
		Description: "Create emergencies collection with indexes",
		Up:          createEmergenciesCollection,
	},
}

func RunMigrations(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	migrationsCol := db.Collection("migrations")

	currentVersion := getCurrentMigrationVersion(ctx, migrationsCol)
	logrus.Infof("📋 Current migration version: %d", currentVersion)

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logrus.Infof("🔄 Running migration %d: %s", migration.Version, migration.Description)

		if err := migration.Up(ctx, db); err != nil {
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err := migrationsCol.InsertOne(ctx, migrationRecord{
			Version:   migration.Version,
			AppliedAt: time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		logrus.Infof("✅ Migration %d completed", migration.Version)
	}

	return nil
}

func getCurrentMigrationVersion(ctx context.Context, col *mongo.Collection) int {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var record migrationRecord
	if err := col.FindOne(ctx, bson.D{}, opts).Decode(&record); err != nil {
		return 0 // No migrations applied yet
	}
	return record.Version
}

func createEmergencyContactsCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			// storage order used by the directory
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "phone", Value: 1}},
		},
	}

	_, err := db.Collection("emergency_contacts").Indexes().CreateMany(ctx, indexes)
	return err
}

func createEmergenciesCollection(ctx context.Context, db *mongo.Database) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "episodeId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "startedAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "state", Value: 1}},
		},
	}

	_, err := db.Collection("emergencies").Indexes().CreateMany(ctx, indexes)
	return err
}
