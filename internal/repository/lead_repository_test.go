package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/docstore"
	"github.com/Santiago1927/LuisFernandoRealtor-sub000/internal/models"
)

func setupLeadRepository(t *testing.T) (*leadRepository, *docstore.MemoryStore) {
	t.Helper()
	store := docstore.NewMemoryStore()
	repo := NewLeadRepository(store).(*leadRepository)
	repo.now = newTestClock().Now
	return repo, store
}

func TestLeadRepository_CreateFillsMeta(t *testing.T) {
	repo, store := setupLeadRepository(t)
	ctx := context.Background()

	lead := &models.OwnerLead{
		ContactInfo: models.ContactInfo{Name: "Marta", Email: "marta@example.com", Phone: "3109876543"},
		Address:     "Av 6N # 23-50",
		City:        "Cali",
		AskingPrice: 400000000,
	}
	require.NoError(t, repo.Create(ctx, lead))

	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, models.LeadOwner, lead.UserType)
	assert.False(t, lead.CreatedAt.IsZero())

	doc, err := store.Collection("owners").Get(ctx, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, "owner", doc.Fields["userType"])
	assert.Equal(t, "Av 6N # 23-50", doc.Fields["address"])
}

func TestLeadRepository_ListNewestFirst(t *testing.T) {
	repo, _ := setupLeadRepository(t)
	ctx := context.Background()

	for _, msg := range []string{"primero", "segundo"} {
		require.NoError(t, repo.Create(ctx, &models.ContactLead{
			ContactInfo: models.ContactInfo{Name: "Ana", Email: "ana@example.com", Phone: "3001234567"},
			Message:     msg,
		}))
	}
	require.NoError(t, repo.Create(ctx, &models.BuyerLead{
		ContactInfo: models.ContactInfo{Name: "Juan", Email: "juan@example.com", Phone: "3001234567"},
		City:        "Cali",
		Rooms:       intPtr(3),
	}))

	contacts, err := repo.List(ctx, models.LeadContact)
	require.NoError(t, err)
	require.Len(t, contacts, 2)

	newest, ok := contacts[0].(*models.ContactLead)
	require.True(t, ok)
	assert.Equal(t, "segundo", newest.Message)
	assert.Equal(t, "Ana", newest.Name)
	assert.Equal(t, models.LeadContact, newest.UserType)
	assert.NotEmpty(t, newest.ID)

	buyers, err := repo.List(ctx, models.LeadBuyer)
	require.NoError(t, err)
	require.Len(t, buyers, 1)
	buyer := buyers[0].(*models.BuyerLead)
	require.NotNil(t, buyer.Rooms)
	assert.Equal(t, 3, *buyer.Rooms)
}

func TestLeadRepository_ListUnknownKind(t *testing.T) {
	repo, store := setupLeadRepository(t)
	ctx := context.Background()
	_, err := store.Collection("tenants").Insert(ctx, map[string]interface{}{"name": "x"})
	require.NoError(t, err)

	_, err = repo.List(ctx, models.LeadKind("tenant"))
	assert.Error(t, err)
}

func TestLeadRepository_StoreFailure(t *testing.T) {
	repo, store := setupLeadRepository(t)
	store.FailNext("buyers", docstore.ErrPermissionDenied)

	err := repo.Create(context.Background(), &models.BuyerLead{City: "Cali"})
	assert.ErrorIs(t, err, docstore.ErrPermissionDenied)
}
