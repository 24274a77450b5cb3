package services

import (
	"context"
	"sort"
	"time"

	"lifeline/models"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ContactStore is the persistence behind the directory. ListContacts must
// return contacts in storage order.
type ContactStore interface {
	ListContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error)
	GetContact(ctx context.Context, userID, contactID string) (*models.EmergencyContact, error)
	CreateContact(ctx context.Context, contact *models.EmergencyContact) error
	UpdateContact(ctx context.Context, userID, contactID string, req *models.UpdateEmergencyContactRequest) (*models.EmergencyContact, error)
	DeleteContact(ctx context.Context, userID, contactID string) error
}

// ContactLister is the read side a coordinator needs.
type ContactLister interface {
	List(ctx context.Context) ([]models.EmergencyContact, error)
}

// ContactDirectory serves ordered contact snapshots from a short lived cache.
type ContactDirectory struct {
	store ContactStore
	cache *gocache.Cache
}

func NewContactDirectory(store ContactStore, ttl time.Duration) *ContactDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &ContactDirectory{
		store: store,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// List returns the user's contacts, primaries first, each group in storage order.
func (d *ContactDirectory) List(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	if cached, ok := d.cache.Get(userID); ok {
		return copyContacts(cached.([]models.EmergencyContact)), nil
	}

	contacts, err := d.store.ListContacts(ctx, userID)
	if err != nil {
		logrus.WithField("user_id", userID).Errorf("Failed to load emergency contacts: %v", err)
		return nil, &DirectoryUnavailableError{Cause: err}
	}

	ordered := OrderContacts(contacts)
	d.cache.SetDefault(userID, ordered)
	return copyContacts(ordered), nil
}

func (d *ContactDirectory) Invalidate(userID string) {
	d.cache.Delete(userID)
}

// ForUser binds the directory to one owner.
func (d *ContactDirectory) ForUser(userID string) ContactLister {
	return userContacts{dir: d, userID: userID}
}

func (d *ContactDirectory) Get(ctx context.Context, userID, contactID string) (*models.EmergencyContact, error) {
	return d.store.GetContact(ctx, userID, contactID)
}

func (d *ContactDirectory) Create(ctx context.Context, contact *models.EmergencyContact) error {
	if err := d.store.CreateContact(ctx, contact); err != nil {
		return err
	}
	d.Invalidate(contact.UserID.Hex())
	return nil
}

func (d *ContactDirectory) Update(ctx context.Context, userID, contactID string, req *models.UpdateEmergencyContactRequest) (*models.EmergencyContact, error) {
	contact, err := d.store.UpdateContact(ctx, userID, contactID, req)
	if err != nil {
		return nil, err
	}
	d.Invalidate(userID)
	return contact, nil
}

func (d *ContactDirectory) Delete(ctx context.Context, userID, contactID string) error {
	if err := d.store.DeleteContact(ctx, userID, contactID); err != nil {
		return err
	}
	d.Invalidate(userID)
	return nil
}

type userContacts struct {
	dir    *ContactDirectory
	userID string
}

func (u userContacts) List(ctx context.Context) ([]models.EmergencyContact, error) {
	return u.dir.List(ctx, u.userID)
}

// OrderContacts returns a copy sorted primary-first; ties keep their input order.
func OrderContacts(contacts []models.EmergencyContact) []models.EmergencyContact {
	ordered := copyContacts(contacts)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].IsPrimary && !ordered[j].IsPrimary
	})
	return ordered
}

func copyContacts(contacts []models.EmergencyContact) []models.EmergencyContact {
	out := make([]models.EmergencyContact, len(contacts))
	copy(out, contacts)
	return out
}
