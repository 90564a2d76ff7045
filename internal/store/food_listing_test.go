package store

import (
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

var claimNow = time.Date(2025, 6, 10, 9, 30, 0, 0, time.UTC)

type testStores struct {
	providers *ProviderStore
	receivers *ReceiverStore
	listings  *FoodListingStore
	claims    *ClaimStore
}

func setupListingTestDB(t *testing.T) testStores {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s := testStores{
		providers: NewProviderStore(db),
		receivers: NewReceiverStore(db),
		listings:  NewFoodListingStore(db),
		claims:    NewClaimStore(db, clock.NewStub(claimNow)),
	}
	if _, err := s.providers.Create(model.Provider{ID: 1, Name: "A", Type: "Restaurant", City: "City X"}); err != nil {
		t.Fatalf("seed provider: %v", err)
	}
	if _, err := s.receivers.Create(model.Receiver{ID: 1, Name: "R", Type: "NGO", City: "City X"}); err != nil {
		t.Fatalf("seed receiver: %v", err)
	}
	return s
}

func rice() model.FoodListing {
	return model.FoodListing{
		Name:         "Rice",
		Quantity:     10,
		ExpiryDate:   "2099-01-01",
		ProviderID:   1,
		ProviderType: "Restaurant",
		Location:     "City X",
		FoodType:     model.FoodTypeVegetarian,
		MealType:     model.MealTypeLunch,
	}
}

func TestFoodListingCRUD(t *testing.T) {
	s := setupListingTestDB(t)

	// Create
	f, err := s.listings.Create(rice())
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if f.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if f.FoodType != model.FoodTypeVegetarian {
		t.Errorf("food_type = %q, want %q", f.FoodType, model.FoodTypeVegetarian)
	}
	if f.ExpiryDate != "2099-01-01" {
		t.Errorf("expiry = %q, want 2099-01-01", f.ExpiryDate)
	}

	// Update
	qty := int64(4)
	loc := "Delhi"
	updated, err := s.listings.Update(f.ID, model.FoodListingUpdate{Quantity: &qty, Location: &loc})
	if err != nil {
		t.Fatalf("update listing: %v", err)
	}
	if updated.Quantity != 4 {
		t.Errorf("quantity = %d, want 4", updated.Quantity)
	}
	if updated.Location != "Delhi" {
		t.Errorf("location = %q, want Delhi", updated.Location)
	}
	if updated.ExpiryDate != "2099-01-01" {
		t.Errorf("expiry changed to %q", updated.ExpiryDate)
	}

	// Delete
	if err := s.listings.Delete(f.ID); err != nil {
		t.Fatalf("delete listing: %v", err)
	}
	got, err := s.listings.GetByID(f.ID)
	if err != nil {
		t.Fatalf("get deleted listing: %v", err)
	}
	if got != nil {
		t.Error("expected nil for deleted listing")
	}
}

func TestFoodListingZeroQuantityIsExhausted(t *testing.T) {
	s := setupListingTestDB(t)

	f := rice()
	f.Quantity = 0
	created, err := s.listings.Create(f)
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if !created.Exhausted() {
		t.Error("expected listing with quantity 0 to be exhausted")
	}
}

func TestFoodListingUnknownProvider(t *testing.T) {
	s := setupListingTestDB(t)

	f := rice()
	f.ProviderID = 99
	_, err := s.listings.Create(f)
	if !errors.Is(err, database.ErrSchemaViolation) {
		t.Errorf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestFoodListingValidation(t *testing.T) {
	s := setupListingTestDB(t)

	tests := []struct {
		name   string
		mutate func(*model.FoodListing)
	}{
		{"blank name", func(f *model.FoodListing) { f.Name = "  " }},
		{"negative quantity", func(f *model.FoodListing) { f.Quantity = -1 }},
		{"no provider", func(f *model.FoodListing) { f.ProviderID = 0 }},
		{"bad expiry", func(f *model.FoodListing) { f.ExpiryDate = "01/02/2099" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := rice()
			tt.mutate(&f)
			_, err := s.listings.Create(f)
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("err = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestFoodListingUpdateNotFound(t *testing.T) {
	s := setupListingTestDB(t)

	qty := int64(3)
	_, err := s.listings.Update(404, model.FoodListingUpdate{Quantity: &qty})
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFoodListingUpdateEmpty(t *testing.T) {
	s := setupListingTestDB(t)

	f, _ := s.listings.Create(rice())
	_, err := s.listings.Update(f.ID, model.FoodListingUpdate{})
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("err = %v, want ErrInvalid", err)
	}
}

func TestFoodListingDeleteNotFound(t *testing.T) {
	s := setupListingTestDB(t)

	err := s.listings.Delete(404)
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFoodListingDeleteWithClaims(t *testing.T) {
	s := setupListingTestDB(t)

	f, _ := s.listings.Create(rice())
	if _, err := s.claims.Create(model.Claim{FoodID: f.ID, ReceiverID: 1, Status: model.ClaimStatusPending}); err != nil {
		t.Fatalf("create claim: %v", err)
	}

	err := s.listings.Delete(f.ID)
	if !errors.Is(err, database.ErrSchemaViolation) {
		t.Errorf("err = %v, want ErrSchemaViolation", err)
	}
}

func TestFoodListingListOrderedByExpiry(t *testing.T) {
	s := setupListingTestDB(t)

	for _, expiry := range []string{"2099-03-01", "2099-01-01", "2099-02-01"} {
		f := rice()
		f.ExpiryDate = expiry
		if _, err := s.listings.Create(f); err != nil {
			t.Fatalf("create listing: %v", err)
		}
	}

	listings, err := s.listings.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listings) != 3 {
		t.Fatalf("len = %d, want 3", len(listings))
	}
	if listings[0].ExpiryDate != "2099-01-01" || listings[2].ExpiryDate != "2099-03-01" {
		t.Errorf("order = %s, %s, %s", listings[0].ExpiryDate, listings[1].ExpiryDate, listings[2].ExpiryDate)
	}
}
