package services

import (
	"context"
	"testing"
	"time"

	"lifeline/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memoryContactStore struct {
	contacts []models.EmergencyContact
	lists    int
	err      error
}

func (m *memoryContactStore) ListContacts(ctx context.Context, userID string) ([]models.EmergencyContact, error) {
	m.lists++
	if m.err != nil {
		return nil, m.err
	}
	var out []models.EmergencyContact
	for _, c := range m.contacts {
		if c.UserID.Hex() == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryContactStore) GetContact(ctx context.Context, userID, contactID string) (*models.EmergencyContact, error) {
	for _, c := range m.contacts {
		if c.ID.Hex() == contactID && c.UserID.Hex() == userID {
			contact := c
			return &contact, nil
		}
	}
	return nil, errStoreDown
}

func (m *memoryContactStore) CreateContact(ctx context.Context, contact *models.EmergencyContact) error {
	contact.ID = primitive.NewObjectID()
	m.contacts = append(m.contacts, *contact)
	return nil
}

func (m *memoryContactStore) UpdateContact(ctx context.Context, userID, contactID string, req *models.UpdateEmergencyContactRequest) (*models.EmergencyContact, error) {
	for i, c := range m.contacts {
		if c.ID.Hex() == contactID {
			if req.IsPrimary != nil {
				m.contacts[i].IsPrimary = *req.IsPrimary
			}
			contact := m.contacts[i]
			return &contact, nil
		}
	}
	return nil, errStoreDown
}

func (m *memoryContactStore) DeleteContact(ctx context.Context, userID, contactID string) error {
	for i, c := range m.contacts {
		if c.ID.Hex() == contactID {
			m.contacts = append(m.contacts[:i], m.contacts[i+1:]...)
			return nil
		}
	}
	return errStoreDown
}

func TestOrderContacts_PrimaryFirstStable(t *testing.T) {
	s1 := newContact("s1", false)
	p1 := newContact("p1", true)
	s2 := newContact("s2", false)
	p2 := newContact("p2", true)

	ordered := OrderContacts([]models.EmergencyContact{s1, p1, s2, p2})

	names := make([]string, len(ordered))
	for i, c := range ordered {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"p1", "p2", "s1", "s2"}, names)
}

func TestContactDirectory_ListCachesAndInvalidates(t *testing.T) {
	owner := primitive.NewObjectID()
	s := newContact("s", false)
	s.UserID = owner
	p := newContact("p", true)
	p.UserID = owner
	store := &memoryContactStore{contacts: []models.EmergencyContact{s, p}}
	dir := NewContactDirectory(store, time.Minute)
	ctx := context.Background()

	contacts, err := dir.List(ctx, owner.Hex())
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "p", contacts[0].Name)

	_, err = dir.ForUser(owner.Hex()).List(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, store.lists)

	contacts[0].Name = "mutated"
	again, _ := dir.List(ctx, owner.Hex())
	assert.Equal(t, "p", again[0].Name)

	newcomer := models.EmergencyContact{UserID: owner, Name: "n", IsPrimary: true}
	require.NoError(t, dir.Create(ctx, &newcomer))

	contacts, err = dir.List(ctx, owner.Hex())
	require.NoError(t, err)
	assert.Equal(t, 2, store.lists)
	require.Len(t, contacts, 3)
	assert.Equal(t, []string{"p", "n", "s"}, []string{contacts[0].Name, contacts[1].Name, contacts[2].Name})

	require.NoError(t, dir.Delete(ctx, owner.Hex(), p.ID.Hex()))
	contacts, _ = dir.List(ctx, owner.Hex())
	assert.Len(t, contacts, 2)
}

func TestContactDirectory_StoreErrorIsDirectoryUnavailable(t *testing.T) {
	dir := NewContactDirectory(&memoryContactStore{err: errStoreDown}, time.Minute)

	contacts, err := dir.List(context.Background(), "someone")
	assert.Nil(t, contacts)
	var du *DirectoryUnavailableError
	require.ErrorAs(t, err, &du)
	assert.ErrorIs(t, err, errStoreDown)
}
