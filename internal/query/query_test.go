package query

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
	"github.com/dukerupert/surplus/internal/store"
)

// fixedNow is noon UTC so expiry differences land on half days.
var fixedNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	db        *sql.DB
	exec      *Executor
	reports   *Reports
	providers *store.ProviderStore
	receivers *store.ReceiverStore
	listings  *store.FoodListingStore
	claims    *store.ClaimStore
}

func setupQueryTestDB(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exec := NewExecutor(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &fixture{
		db:        db,
		exec:      exec,
		reports:   NewReports(exec, clock.NewStub(fixedNow)),
		providers: store.NewProviderStore(db),
		receivers: store.NewReceiverStore(db),
		listings:  store.NewFoodListingStore(db),
		claims:    store.NewClaimStore(db, clock.NewStub(fixedNow)),
	}
}

func (f *fixture) provider(t *testing.T, id int64, name, typ, city string) {
	t.Helper()
	_, err := f.providers.Create(model.Provider{ID: id, Name: name, Type: typ, City: city, Contact: name + "@example.com"})
	require.NoError(t, err)
}

func (f *fixture) receiver(t *testing.T, id int64, name, city string) {
	t.Helper()
	_, err := f.receivers.Create(model.Receiver{ID: id, Name: name, Type: "NGO", City: city})
	require.NoError(t, err)
}

func (f *fixture) listing(t *testing.T, id int64, name string, qty int64, expiry string, providerID int64, meal model.MealType) {
	t.Helper()
	_, err := f.listings.Create(model.FoodListing{
		ID: id, Name: name, Quantity: qty, ExpiryDate: expiry, ProviderID: providerID,
		ProviderType: "Restaurant", Location: "City X", FoodType: model.FoodTypeVegetarian, MealType: meal,
	})
	require.NoError(t, err)
}

func (f *fixture) claim(t *testing.T, foodID, receiverID int64, status model.ClaimStatus) {
	t.Helper()
	_, err := f.claims.Create(model.Claim{FoodID: foodID, ReceiverID: receiverID, Status: status})
	require.NoError(t, err)
}

func TestRunBindsParameters(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")

	got, err := f.exec.Run(context.Background(), "SELECT Name FROM providers WHERE City = ?", "City X")
	require.NoError(t, err)
	assert.Equal(t, []string{"Name"}, got.Columns)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "A", got.Value(0, "Name"))

	got, err = f.exec.Run(context.Background(), "SELECT Name FROM providers WHERE City = ?", "x' OR '1'='1")
	require.NoError(t, err)
	assert.True(t, got.Empty(), "bound value must not be interpreted as SQL")
}

func TestRunMalformedSQL(t *testing.T) {
	f := setupQueryTestDB(t)

	for _, stmt := range []string{"", "SELEC * FROM providers", "SELECT * FROM nowhere", "SELECT FROM"} {
		got, err := f.exec.Run(context.Background(), stmt)
		require.ErrorIs(t, err, database.ErrQueryFailure, "stmt %q", stmt)
		assert.NotEmpty(t, err.Error())
		require.NotNil(t, got)
		assert.True(t, got.Empty())
	}
}

func TestRunRejectsWrites(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")

	for _, stmt := range []string{
		"DELETE FROM providers",
		"SELECT 1; DELETE FROM providers",
		"WITH doomed AS (SELECT 1) DELETE FROM providers",
	} {
		_, err := f.exec.Run(context.Background(), stmt)
		assert.ErrorIs(t, err, database.ErrQueryFailure, "stmt %q", stmt)
	}

	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM providers").Scan(&n))
	assert.Equal(t, 1, n)

	// query_only must be switched back off for the stores.
	f.provider(t, 2, "B", "Grocery Store", "City Y")
}

func TestRunTrailingSemicolon(t *testing.T) {
	f := setupQueryTestDB(t)
	got, err := f.exec.Run(context.Background(), "SELECT 1 AS One;")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Value(0, "One"))
}

func TestRunQuotedSemicolonAndComments(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "a;b", "Restaurant", "City X")
	f.provider(t, 2, "it's", "Restaurant", "City X")

	tests := []struct {
		name string
		stmt string
		want string
	}{
		{"semicolon in literal", "SELECT Name FROM providers WHERE Name = 'a;b'", "a;b"},
		{"doubled quote", "SELECT Name FROM providers WHERE Name = 'it''s'", "it's"},
		{"leading line comment", "-- top\nSELECT Name FROM providers WHERE Provider_ID = 1", "a;b"},
		{"leading block comment", "/* lookup; by id */ SELECT Name FROM providers WHERE Provider_ID = 2", "it's"},
		{"trailing comment", "SELECT Name FROM providers WHERE Provider_ID = 1; -- done", "a;b"},
		{"quoted alias", `SELECT Name AS "x;y" FROM providers WHERE Provider_ID = 1`, "a;b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.exec.Run(context.Background(), tt.stmt)
			require.NoError(t, err)
			require.Equal(t, 1, got.Len())
			assert.Equal(t, tt.want, got.Rows[0][0])
		})
	}
}

func TestReadOnlyStatement(t *testing.T) {
	tests := []struct {
		stmt string
		ok   bool
	}{
		{"select 1", true},
		{"  WITH x AS (SELECT 1) SELECT * FROM x ;;", true},
		{"-- only a comment", false},
		{"/* c */ DELETE FROM providers", false},
		{"SELECT 1; /* c */ DELETE FROM providers", false},
		{"SELECT 'x'; UPDATE providers SET Name = 'y'", false},
		{"SELECTED", false},
		{";", false},
	}
	for _, tt := range tests {
		_, err := readOnlyStatement(tt.stmt)
		assert.Equal(t, tt.ok, err == nil, "stmt %q: err = %v", tt.stmt, err)
	}
}

func TestReadTable(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 2, "B", "Restaurant", "City X")
	f.provider(t, 1, "A", "Restaurant", "City X")

	got, err := f.exec.ReadTable(context.Background(), model.TableProviders)
	require.NoError(t, err)
	assert.Equal(t, "Provider_ID", got.Columns[0])
	require.Equal(t, 2, got.Len())
	assert.Equal(t, int64(1), got.Value(0, "Provider_ID"))

	_, err = f.exec.ReadTable(context.Background(), "sqlite_master")
	assert.ErrorIs(t, err, database.ErrQueryFailure)
}

func TestBuilder(t *testing.T) {
	stmt, args, err := NewBuilder("SELECT * FROM food_listings", "Food_Type", "Meal_Type", "Location").
		WhereSelected("Food_Type", "Vegan").
		WhereSelected("Meal_Type", AllOption).
		WhereSelected("Location", "  ").
		OrderBy("Location", true).
		Build()
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM food_listings WHERE Food_Type = ? ORDER BY Location DESC", stmt)
	assert.Equal(t, []any{"Vegan"}, args)

	_, _, err = NewBuilder("SELECT * FROM food_listings", "Food_Type").
		Where("1=1 OR Food_Type", "x").
		Build()
	assert.Error(t, err)
}

func TestFilterListings(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.listing(t, 1, "Rice", 10, "2025-06-20", 1, model.MealTypeLunch)
	f.listing(t, 2, "Bread", 5, "2025-06-12", 1, model.MealTypeBreakfast)

	got, err := f.exec.FilterListings(context.Background(), ListingFilter{FoodType: AllOption, MealType: "Lunch"})
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "Rice", got.Value(0, "Food_Name"))

	got, err = f.exec.FilterListings(context.Background(), ListingFilter{})
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "Bread", got.Value(0, "Food_Name"), "soonest expiry first")
}

func TestUnclaimedAndTotalsScenario(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	ctx := context.Background()

	unclaimed, err := f.reports.UnclaimedFood(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, unclaimed.Len())
	assert.Equal(t, "Rice", unclaimed.Value(0, "Food_Name"))
	assert.Equal(t, "A", unclaimed.Value(0, "Provider_Name"))

	totals, err := f.reports.TotalFoodQuantity(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, totals.Len())
	assert.Equal(t, int64(10), totals.Value(0, "Total_Available_Quantity"))
	assert.Equal(t, int64(1), totals.Value(0, "Total_Food_Items"))
	assert.Equal(t, int64(1), totals.Value(0, "Active_Providers"))
	assert.InDelta(t, 10.0, totals.Value(0, "Avg_Quantity_Per_Item"), 0.001)
}

func TestUnclaimedExcludesAnyClaim(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.listing(t, 2, "Dal", 4, "2099-01-02", 1, model.MealTypeDinner)
	f.claim(t, 1, 1, model.ClaimStatusCancelled)

	got, err := f.reports.UnclaimedFood(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "Dal", got.Value(0, "Food_Name"))
}

func TestExpiringFoodStatuses(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.listing(t, 1, "Safe", 1, "2025-06-15", 1, model.MealTypeLunch)
	f.listing(t, 2, "Warning", 1, "2025-06-13", 1, model.MealTypeLunch)
	f.listing(t, 3, "Critical", 1, "2025-06-11", 1, model.MealTypeLunch)
	f.listing(t, 4, "Expired", 1, "2025-06-09", 1, model.MealTypeLunch)
	f.listing(t, 5, "Later", 1, "2025-06-20", 1, model.MealTypeLunch)

	got, err := f.reports.ExpiringFood(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, got.Len(), "listings beyond five days are excluded")

	want := []struct {
		status string
		days   float64
	}{
		{"Expired", -1.5},
		{"Critical", 0.5},
		{"Warning", 2.5},
		{"Safe", 4.5},
	}
	for i, w := range want {
		assert.Equal(t, w.status, got.Value(i, "Status"))
		assert.Equal(t, w.status, got.Value(i, "Food_Name"))
		assert.InDelta(t, w.days, got.Value(i, "Days_Until_Expiry"), 0.0001)
	}
}

func TestExpiringFoodYesterdayIsExpired(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	yesterday := fixedNow.AddDate(0, 0, -1).Format(model.DateLayout)
	f.listing(t, 1, "Milk", 2, yesterday, 1, model.MealTypeBreakfast)

	got, err := f.reports.ExpiringFood(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "Expired", got.Value(0, "Status"))
}

func TestSuccessfulProvidersExcludesUnclaimed(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.provider(t, 2, "B", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.listing(t, 2, "Dal", 10, "2099-01-01", 2, model.MealTypeLunch)
	f.claim(t, 1, 1, model.ClaimStatusCompleted)
	f.claim(t, 1, 1, model.ClaimStatusCompleted)
	f.claim(t, 1, 1, model.ClaimStatusPending)

	got, err := f.reports.SuccessfulProviders(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, "A", got.Value(0, "Name"))
	assert.Equal(t, int64(3), got.Value(0, "Total_Claims"))
	assert.Equal(t, int64(2), got.Value(0, "Successful_Claims"))
	assert.InDelta(t, 66.67, got.Value(0, "Success_Rate_Percent"), 0.001)
}

func TestClaimStatusDistribution(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.claim(t, 1, 1, model.ClaimStatusCompleted)
	f.claim(t, 1, 1, model.ClaimStatusCompleted)
	f.claim(t, 1, 1, model.ClaimStatusCancelled)

	got, err := f.reports.ClaimStatusDistribution(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, "Completed", got.Value(0, "Status"))
	assert.InDelta(t, 66.67, got.Value(0, "Percentage"), 0.001)
	assert.InDelta(t, 33.33, got.Value(1, "Percentage"), 0.001)
}

// listingAt is listing with an explicit location and food type.
func (f *fixture) listingAt(t *testing.T, id int64, name string, qty int64, providerID int64, location string, food model.FoodType) {
	t.Helper()
	_, err := f.listings.Create(model.FoodListing{
		ID: id, Name: name, Quantity: qty, ExpiryDate: "2099-01-01", ProviderID: providerID,
		Location: location, FoodType: food, MealType: model.MealTypeLunch,
	})
	require.NoError(t, err)
}

func TestClaimsPerFoodItemScenario(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.listing(t, 2, "Dal", 4, "2099-01-01", 1, model.MealTypeDinner)
	f.claim(t, 1, 1, model.ClaimStatusCompleted)
	f.claim(t, 1, 1, model.ClaimStatusPending)

	got, err := f.reports.ClaimsPerFoodItem(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Food_Name", "Available_Quantity", "Location", "Total_Claims",
		"Completed_Claims", "Pending_Claims", "Cancelled_Claims"}, got.Columns)
	require.Equal(t, 2, got.Len())
	assert.Equal(t, []any{"Rice", int64(10), "City X", int64(2), int64(1), int64(1), int64(0)}, got.Rows[0])

	assert.Equal(t, "Dal", got.Value(1, "Food_Name"))
	assert.Equal(t, int64(0), got.Value(1, "Total_Claims"))
	assert.Equal(t, int64(0), got.Value(1, "Completed_Claims"))
}

func TestProviderTypeContribution(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.provider(t, 2, "B", "Grocery Store", "City Y")
	f.provider(t, 3, "C", "Catering Service", "City Y")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.listing(t, 2, "Dal", 4, "2099-01-01", 1, model.MealTypeDinner)
	f.listing(t, 3, "Apples", 20, "2099-01-01", 2, model.MealTypeSnacks)

	got, err := f.reports.ProviderTypeContribution(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Len(), "provider types without listings are omitted")

	assert.Equal(t, "Grocery Store", got.Value(0, "Provider_Type"))
	assert.Equal(t, int64(20), got.Value(0, "Total_Quantity"))
	assert.Equal(t, int64(1), got.Value(0, "Total_Items"))
	assert.InDelta(t, 20.0, got.Value(0, "Avg_Quantity"), 0.001)

	assert.Equal(t, "Restaurant", got.Value(1, "Provider_Type"))
	assert.Equal(t, int64(14), got.Value(1, "Total_Quantity"))
	assert.Equal(t, int64(2), got.Value(1, "Total_Items"))
	assert.InDelta(t, 7.0, got.Value(1, "Avg_Quantity"), 0.001)
}

func TestCityFoodListings(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.listingAt(t, 1, "Rice", 10, 1, "City X", model.FoodTypeVegetarian)
	f.listingAt(t, 2, "Dal", 5, 1, "City X", model.FoodTypeVegetarian)
	f.listingAt(t, 3, "Bread", 30, 1, "City Y", model.FoodTypeVegan)

	got, err := f.reports.CityFoodListings(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	assert.Equal(t, "City X", got.Value(0, "City"))
	assert.Equal(t, int64(2), got.Value(0, "Total_Listings"))
	assert.Equal(t, int64(15), got.Value(0, "Total_Quantity"))
	assert.InDelta(t, 7.5, got.Value(0, "Avg_Quantity"), 0.001)

	assert.Equal(t, "City Y", got.Value(1, "City"))
	assert.Equal(t, int64(1), got.Value(1, "Total_Listings"))
	assert.InDelta(t, 30.0, got.Value(1, "Avg_Quantity"), 0.001)
}

func TestCommonFoodTypesPercentage(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.listingAt(t, 1, "Rice", 10, 1, "City X", model.FoodTypeVegetarian)
	f.listingAt(t, 2, "Dal", 5, 1, "City X", model.FoodTypeVegetarian)
	f.listingAt(t, 3, "Tofu", 30, 1, "City X", model.FoodTypeVegan)
	f.listingAt(t, 4, "Chicken", 1, 1, "City X", model.FoodTypeNonVegetarian)

	got, err := f.reports.CommonFoodTypes(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())

	want := []struct {
		food     string
		items    int64
		quantity int64
		avg      float64
		percent  float64
	}{
		{"Vegan", 1, 30, 30.0, 25.0},
		{"Vegetarian", 2, 15, 7.5, 50.0},
		{"Non-Vegetarian", 1, 1, 1.0, 25.0},
	}
	for i, w := range want {
		assert.Equal(t, w.food, got.Value(i, "Food_Type"))
		assert.Equal(t, w.items, got.Value(i, "Total_Items"))
		assert.Equal(t, w.quantity, got.Value(i, "Total_Quantity"))
		assert.InDelta(t, w.avg, got.Value(i, "Avg_Quantity"), 0.001)
		assert.InDelta(t, w.percent, got.Value(i, "Percentage"), 0.001)
	}
}

func TestAvgQuantityPerReceiver(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.receiver(t, 1, "Busy", "City X")
	f.receiver(t, 2, "Cancelled Only", "City X")
	f.receiver(t, 3, "Idle", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.listing(t, 2, "Dal", 4, "2099-01-01", 1, model.MealTypeDinner)
	f.claim(t, 1, 1, model.ClaimStatusCompleted)
	f.claim(t, 2, 1, model.ClaimStatusCompleted)
	f.claim(t, 2, 1, model.ClaimStatusPending)
	f.claim(t, 2, 2, model.ClaimStatusCancelled)

	got, err := f.reports.AvgQuantityPerReceiver(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Len(), "receivers without claims are filtered out")

	assert.Equal(t, "Busy", got.Value(0, "Name"))
	assert.Equal(t, int64(3), got.Value(0, "Total_Claims"))
	assert.Equal(t, int64(14), got.Value(0, "Total_Food_Received"))
	// Average over Completed claims only: (10 + 4) / 2.
	assert.InDelta(t, 7.0, got.Value(0, "Avg_Quantity_Per_Claim"), 0.001)

	assert.Equal(t, "Cancelled Only", got.Value(1, "Name"))
	assert.Equal(t, int64(1), got.Value(1, "Total_Claims"))
	assert.Equal(t, int64(0), got.Value(1, "Total_Food_Received"))
	assert.Nil(t, got.Value(1, "Avg_Quantity_Per_Claim"))
}

func TestPopularMealTypesClaimRate(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.listing(t, 2, "Dal", 4, "2099-01-01", 1, model.MealTypeLunch)
	f.listing(t, 3, "Milk", 2, "2099-01-01", 1, model.MealTypeBreakfast)
	f.claim(t, 1, 1, model.ClaimStatusCompleted)
	f.claim(t, 1, 1, model.ClaimStatusPending)

	got, err := f.reports.PopularMealTypes(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, got.Len())

	assert.Equal(t, "Lunch", got.Value(0, "Meal_Type"))
	assert.Equal(t, int64(2), got.Value(0, "Total_Claims"))
	assert.Equal(t, int64(10), got.Value(0, "Quantity_Claimed"))
	// Rice is counted once per claim row: 10 + 10 + 4.
	assert.Equal(t, int64(24), got.Value(0, "Total_Available"))
	assert.InDelta(t, 41.67, got.Value(0, "Claim_Rate_Percent"), 0.001)

	assert.Equal(t, "Breakfast", got.Value(1, "Meal_Type"))
	assert.Equal(t, int64(0), got.Value(1, "Total_Claims"))
	assert.Equal(t, int64(2), got.Value(1, "Total_Available"))
	assert.InDelta(t, 0.0, got.Value(1, "Claim_Rate_Percent"), 0.001)
}

func TestStatusMatchIsCaseSensitive(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	_, err := f.db.Exec(`INSERT INTO claims (Food_ID, Receiver_ID, Status) VALUES (1, 1, 'completed')`)
	require.NoError(t, err)

	got, err := f.reports.TopClaimingReceivers(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, int64(1), got.Value(0, "Total_Claims"))
	assert.Equal(t, int64(0), got.Value(0, "Food_Received"))
}

func TestProviderDonationsGuardsZero(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")

	got, err := f.reports.ProviderDonations(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, got.Len())
	assert.Equal(t, int64(0), got.Value(0, "Items_Listed"))
	assert.Nil(t, got.Value(0, "Donation_Rate_Percent"))
}

func TestProviderContactsByCity(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "Zed", "Restaurant", "City X")
	f.provider(t, 2, "Abe", "Restaurant", "City X")
	f.provider(t, 3, "Cat", "Grocery Store", "City X")
	f.provider(t, 4, "Dan", "Restaurant", "City Y")

	got, err := f.reports.ProviderContactsByCity(context.Background(), "City X")
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Type", "Address", "Contact"}, got.Columns)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, "Cat", got.Value(0, "Name"))
	assert.Equal(t, "Abe", got.Value(1, "Name"))
	assert.Equal(t, "Zed", got.Value(2, "Name"))

	_, err = f.reports.ProviderContactsByCity(context.Background(), "")
	assert.ErrorIs(t, err, database.ErrQueryFailure)
}

func TestProvidersReceiversByCity(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City Y")
	f.provider(t, 2, "B", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")

	got, err := f.reports.ProvidersReceiversByCity(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, []any{"City X", int64(1), "Providers"}, got.Rows[0])
	assert.Equal(t, []any{"City X", int64(1), "Receivers"}, got.Rows[1])
	assert.Equal(t, []any{"City Y", int64(1), "Providers"}, got.Rows[2])
}

func TestEveryReportRunsOnEmptyDatabase(t *testing.T) {
	f := setupQueryTestDB(t)
	ctx := context.Background()

	for _, rep := range Catalog() {
		got, err := f.reports.Run(ctx, rep.ID, Params{City: "City X"})
		require.NoError(t, err, rep.Slug)
		assert.NotEmpty(t, got.Columns, rep.Slug)
	}
}

func TestRunAll(t *testing.T) {
	f := setupQueryTestDB(t)
	results := f.reports.RunAll(context.Background())
	require.Len(t, results, 14)
	for _, r := range results {
		assert.NotEqual(t, 3, r.Report.ID)
		assert.NoError(t, r.Err)
	}
}

func TestCatalogLookup(t *testing.T) {
	assert.Len(t, Catalog(), 15)

	r, ok := BySlug("expiring-food")
	require.True(t, ok)
	assert.Equal(t, 14, r.ID)

	r, ok = BySlug("7")
	require.True(t, ok)
	assert.Equal(t, "common-food-types", r.Slug)

	_, ok = ByID(16)
	assert.False(t, ok)

	_, err := NewReports(nil, nil).Run(context.Background(), 99, Params{})
	assert.ErrorIs(t, err, database.ErrQueryFailure)
}

func TestSummary(t *testing.T) {
	f := setupQueryTestDB(t)
	f.provider(t, 1, "A", "Restaurant", "City X")
	f.receiver(t, 1, "R", "City X")
	f.listing(t, 1, "Rice", 10, "2099-01-01", 1, model.MealTypeLunch)
	f.claim(t, 1, 1, model.ClaimStatusPending)

	got, err := f.reports.Summary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Value(0, "Total_Quantity"))
	assert.Equal(t, int64(1), got.Value(0, "Pending_Claims"))
}
