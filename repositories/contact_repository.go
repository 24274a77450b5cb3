package repositories

import (
	"context"
	"errors"
	"time"

	"lifeline/models"
	"lifeline/utils"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const listContactsMaxTime = 5 * time.Second

type ContactRepository struct {
	collection *mongo.Collection
}

func NewContactRepository(database *mongo.Database) *ContactRepository {
	return &ContactRepository{
		collection: database.Collection("emergency_contacts"),
	}
}

// ListContacts returns the user's contacts in storage order (creation time, then id).
func (cr *ContactRepository) ListContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	userObjectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.NewInvalidIDError("user")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}}).
		SetMaxTime(listContactsMaxTime)
	cursor, err := cr.collection.Find(ctx, bson.M{"userId": userObjectID}, opts)
	if err != nil {
		logrus.Errorf("Failed to list emergency contacts: %v", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	contacts := []models.EmergencyContact{}
	if err := cursor.All(ctx, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func (cr *ContactRepository) GetContact(ctx context.Context, userID, contactID string) (*models.EmergencyContact, error) {
	filter, err := contactFilter(userID, contactID)
	if err != nil {
		return nil, err
	}

	var contact models.EmergencyContact
	if err := cr.collection.FindOne(ctx, filter).Decode(&contact); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewContactNotFoundError()
		}
		logrus.Errorf("Failed to get emergency contact: %v", err)
		return nil, err
	}
	return &contact, nil
}

func (cr *ContactRepository) CreateContact(ctx context.Context, contact *models.EmergencyContact) error {
	now := time.Now()
	contact.ID = primitive.NewObjectID()
	contact.CreatedAt = now
	contact.UpdatedAt = now

	if _, err := cr.collection.InsertOne(ctx, contact); err != nil {
		logrus.Errorf("Failed to create emergency contact: %v", err)
		return utils.NewDatabaseError("insert", err)
	}
	return nil
}

func (cr *ContactRepository) UpdateContact(ctx context.Context, userID, contactID string, req *models.UpdateEmergencyContactRequest) (*models.EmergencyContact, error) {
	filter, err := contactFilter(userID, contactID)
	if err != nil {
		return nil, err
	}

	set := bson.M{"updatedAt": time.Now()}
	if req.Name != nil {
		set["name"] = *req.Name
	}
	if req.Phone != nil {
		set["phone"] = *req.Phone
	}
	if req.Email != nil {
		set["email"] = *req.Email
	}
	if req.Relationship != nil {
		set["relationship"] = *req.Relationship
	}
	if req.IsPrimary != nil {
		set["isPrimary"] = *req.IsPrimary
	}
	if req.IsOnline != nil {
		set["isOnline"] = *req.IsOnline
		if *req.IsOnline {
			set["lastSeen"] = time.Now()
		}
	}
	if req.DeviceToken != nil {
		set["deviceToken"] = *req.DeviceToken
	}
	if req.NotifyMethods != nil {
		set["notifyMethods"] = req.NotifyMethods
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var contact models.EmergencyContact
	err = cr.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&contact)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, utils.NewContactNotFoundError()
		}
		logrus.Errorf("Failed to update emergency contact: %v", err)
		return nil, utils.NewDatabaseError("update", err)
	}
	return &contact, nil
}

func (cr *ContactRepository) DeleteContact(ctx context.Context, userID, contactID string) error {
	filter, err := contactFilter(userID, contactID)
	if err != nil {
		return err
	}

	result, err := cr.collection.DeleteOne(ctx, filter)
	if err != nil {
		logrus.Errorf("Failed to delete emergency contact: %v", err)
		return utils.NewDatabaseError("delete", err)
	}
	if result.DeletedCount == 0 {
		return utils.NewContactNotFoundError()
	}
	return nil
}

func contactFilter(userID, contactID string) (bson.M, error) {
	userObjectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, utils.NewInvalidIDError("user")
	}
	contactObjectID, err := primitive.ObjectIDFromHex(contactID)
	if err != nil {
		return nil, utils.NewInvalidIDError("contact")
	}
	return bson.M{"_id": contactObjectID, "userId": userObjectID}, nil
}
