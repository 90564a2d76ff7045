package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

// Report describes one of the fixed analytical queries.
type Report struct {
	ID        int    `json:"id"`
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	NeedsCity bool   `json:"needs_city,omitempty"`

	sql      string
	needsNow bool
}

// Params carries report inputs. City is only read by reports with NeedsCity.
type Params struct {
	City string
}

// Result pairs a report with its output, as produced by RunAll.
type Result struct {
	Report Report       `json:"report"`
	Table  *model.Table `json:"table"`
	Err    error        `json:"-"`
}

// Reports runs the catalog through an Executor. Reports that compare against
// the current time read it from the clock and bind it as a parameter.
type Reports struct {
	exec  *Executor
	clock clock.Clock
}

func NewReports(exec *Executor, clk clock.Clock) *Reports {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Reports{exec: exec, clock: clk}
}

// Catalog returns the reports in display order.
func Catalog() []Report {
	return append([]Report(nil), catalog...)
}

// ByID looks a report up by its number.
func ByID(id int) (Report, bool) {
	for _, r := range catalog {
		if r.ID == id {
			return r, true
		}
	}
	return Report{}, false
}

// BySlug looks a report up by slug, falling back to a numeric id.
func BySlug(key string) (Report, bool) {
	for _, r := range catalog {
		if r.Slug == key {
			return r, true
		}
	}
	if id, err := strconv.Atoi(key); err == nil {
		return ByID(id)
	}
	return Report{}, false
}

// Run executes report id. Unknown ids and a missing city are query failures.
func (r *Reports) Run(ctx context.Context, id int, p Params) (*model.Table, error) {
	rep, ok := ByID(id)
	if !ok {
		return model.NewTable(), fmt.Errorf("%w: unknown report %d", database.ErrQueryFailure, id)
	}

	var args []any
	if rep.NeedsCity {
		city := strings.TrimSpace(p.City)
		if city == "" {
			return model.NewTable(), fmt.Errorf("%w: report %d needs a city", database.ErrQueryFailure, id)
		}
		args = append(args, city)
	}
	if rep.needsNow {
		args = append(args, r.now())
	}
	return r.exec.run(ctx, rep.Slug, rep.sql, args)
}

// RunAll executes every report that takes no input, in catalog order. A
// failing report yields an empty table and its error; the rest still run.
func (r *Reports) RunAll(ctx context.Context) []Result {
	results := make([]Result, 0, len(catalog))
	for _, rep := range catalog {
		if rep.NeedsCity {
			continue
		}
		t, err := r.Run(ctx, rep.ID, Params{})
		results = append(results, Result{Report: rep, Table: t, Err: err})
	}
	return results
}

// Summary returns single-row headline counts for the dashboard.
func (r *Reports) Summary(ctx context.Context) (*model.Table, error) {
	return r.exec.run(ctx, "summary", summarySQL, nil)
}

func (r *Reports) now() string {
	return r.clock.Now().UTC().Format(model.TimestampLayout)
}

func (r *Reports) ProvidersReceiversByCity(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 1, Params{})
}

func (r *Reports) ProviderTypeContribution(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 2, Params{})
}

func (r *Reports) ProviderContactsByCity(ctx context.Context, city string) (*model.Table, error) {
	return r.Run(ctx, 3, Params{City: city})
}

func (r *Reports) TopClaimingReceivers(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 4, Params{})
}

func (r *Reports) TotalFoodQuantity(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 5, Params{})
}

func (r *Reports) CityFoodListings(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 6, Params{})
}

func (r *Reports) CommonFoodTypes(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 7, Params{})
}

func (r *Reports) ClaimsPerFoodItem(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 8, Params{})
}

func (r *Reports) SuccessfulProviders(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 9, Params{})
}

func (r *Reports) ClaimStatusDistribution(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 10, Params{})
}

func (r *Reports) AvgQuantityPerReceiver(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 11, Params{})
}

func (r *Reports) PopularMealTypes(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 12, Params{})
}

func (r *Reports) ProviderDonations(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 13, Params{})
}

// ExpiringFood lists listings expiring within five days, including ones
// already past expiry.
func (r *Reports) ExpiringFood(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 14, Params{})
}

// UnclaimedFood lists listings no claim has ever referenced.
func (r *Reports) UnclaimedFood(ctx context.Context) (*model.Table, error) {
	return r.Run(ctx, 15, Params{})
}

const summarySQL = `
SELECT
    (SELECT COUNT(*) FROM providers) AS Providers,
    (SELECT COUNT(*) FROM receivers) AS Receivers,
    (SELECT COUNT(*) FROM food_listings) AS Food_Listings,
    (SELECT COUNT(*) FROM claims) AS Claims,
    (SELECT COALESCE(SUM(Quantity), 0) FROM food_listings) AS Total_Quantity,
    (SELECT COUNT(*) FROM claims WHERE Status = 'Pending') AS Pending_Claims`

var catalog = []Report{
	{
		ID: 1, Slug: "providers-receivers-by-city", Title: "Providers & Receivers by City",
		sql: `
SELECT City, COUNT(*) AS Count, 'Providers' AS Type
FROM providers
GROUP BY City
UNION ALL
SELECT City, COUNT(*) AS Count, 'Receivers' AS Type
FROM receivers
GROUP BY City
ORDER BY City, Type`,
	},
	{
		ID: 2, Slug: "provider-type-contribution", Title: "Provider Type Contributions",
		sql: `
SELECT p.Type AS Provider_Type,
       SUM(fl.Quantity) AS Total_Quantity,
       COUNT(fl.Food_ID) AS Total_Items,
       ROUND(AVG(fl.Quantity), 2) AS Avg_Quantity
FROM providers p
JOIN food_listings fl ON p.Provider_ID = fl.Provider_ID
GROUP BY p.Type
ORDER BY Total_Quantity DESC`,
	},
	{
		ID: 3, Slug: "provider-contacts", Title: "Provider Contacts by City", NeedsCity: true,
		sql: `
SELECT Name, Type, Address, Contact
FROM providers
WHERE City = ?
ORDER BY Type, Name`,
	},
	{
		ID: 4, Slug: "top-receivers", Title: "Top Claiming Receivers",
		sql: `
SELECT r.Name, r.Type, r.City,
       COUNT(c.Claim_ID) AS Total_Claims,
       SUM(CASE WHEN c.Status = 'Completed' THEN fl.Quantity ELSE 0 END) AS Food_Received,
       SUM(CASE WHEN c.Status = 'Pending' THEN fl.Quantity ELSE 0 END) AS Food_Pending
FROM receivers r
LEFT JOIN claims c ON r.Receiver_ID = c.Receiver_ID
LEFT JOIN food_listings fl ON c.Food_ID = fl.Food_ID
GROUP BY r.Receiver_ID, r.Name, r.Type, r.City
ORDER BY Food_Received DESC`,
	},
	{
		ID: 5, Slug: "total-food-quantity", Title: "Total Food Quantity",
		sql: `
SELECT SUM(Quantity) AS Total_Available_Quantity,
       COUNT(Food_ID) AS Total_Food_Items,
       COUNT(DISTINCT Provider_ID) AS Active_Providers,
       ROUND(AVG(Quantity), 2) AS Avg_Quantity_Per_Item
FROM food_listings`,
	},
	{
		ID: 6, Slug: "city-food-listings", Title: "City Food Listings",
		sql: `
SELECT Location AS City,
       COUNT(Food_ID) AS Total_Listings,
       SUM(Quantity) AS Total_Quantity,
       ROUND(AVG(Quantity), 2) AS Avg_Quantity
FROM food_listings
GROUP BY Location
ORDER BY Total_Listings DESC`,
	},
	{
		ID: 7, Slug: "common-food-types", Title: "Common Food Types",
		sql: `
SELECT Food_Type,
       COUNT(Food_ID) AS Total_Items,
       SUM(Quantity) AS Total_Quantity,
       ROUND(AVG(Quantity), 2) AS Avg_Quantity,
       ROUND(COUNT(Food_ID) * 100.0 / (SELECT COUNT(*) FROM food_listings), 2) AS Percentage
FROM food_listings
GROUP BY Food_Type
ORDER BY Total_Quantity DESC`,
	},
	{
		ID: 8, Slug: "claims-per-food-item", Title: "Claims per Food Item",
		sql: `
SELECT fl.Food_Name,
       fl.Quantity AS Available_Quantity,
       fl.Location,
       COUNT(c.Claim_ID) AS Total_Claims,
       SUM(CASE WHEN c.Status = 'Completed' THEN 1 ELSE 0 END) AS Completed_Claims,
       SUM(CASE WHEN c.Status = 'Pending' THEN 1 ELSE 0 END) AS Pending_Claims,
       SUM(CASE WHEN c.Status = 'Cancelled' THEN 1 ELSE 0 END) AS Cancelled_Claims
FROM food_listings fl
LEFT JOIN claims c ON fl.Food_ID = c.Food_ID
GROUP BY fl.Food_ID, fl.Food_Name, fl.Quantity, fl.Location
ORDER BY Total_Claims DESC`,
	},
	{
		ID: 9, Slug: "successful-providers", Title: "Successful Providers",
		sql: `
SELECT p.Name, p.Type, p.City,
       COUNT(c.Claim_ID) AS Total_Claims,
       SUM(CASE WHEN c.Status = 'Completed' THEN 1 ELSE 0 END) AS Successful_Claims,
       ROUND(SUM(CASE WHEN c.Status = 'Completed' THEN 1.0 ELSE 0 END) * 100.0 /
             NULLIF(COUNT(c.Claim_ID), 0), 2) AS Success_Rate_Percent
FROM providers p
JOIN food_listings fl ON p.Provider_ID = fl.Provider_ID
LEFT JOIN claims c ON fl.Food_ID = c.Food_ID
WHERE c.Claim_ID IS NOT NULL
GROUP BY p.Provider_ID, p.Name, p.Type, p.City
ORDER BY Successful_Claims DESC`,
	},
	{
		ID: 10, Slug: "claim-status-distribution", Title: "Claim Status Distribution",
		sql: `
SELECT Status,
       COUNT(*) AS Count,
       ROUND(COUNT(*) * 100.0 / (SELECT COUNT(*) FROM claims), 2) AS Percentage
FROM claims
GROUP BY Status
ORDER BY Count DESC`,
	},
	{
		ID: 11, Slug: "avg-quantity-per-receiver", Title: "Avg Quantity per Receiver",
		sql: `
SELECT r.Name, r.Type, r.City,
       COUNT(c.Claim_ID) AS Total_Claims,
       SUM(CASE WHEN c.Status = 'Completed' THEN fl.Quantity ELSE 0 END) AS Total_Food_Received,
       ROUND(AVG(CASE WHEN c.Status = 'Completed' THEN fl.Quantity ELSE NULL END), 2) AS Avg_Quantity_Per_Claim
FROM receivers r
LEFT JOIN claims c ON r.Receiver_ID = c.Receiver_ID
LEFT JOIN food_listings fl ON c.Food_ID = fl.Food_ID
GROUP BY r.Receiver_ID, r.Name, r.Type, r.City
HAVING Total_Claims > 0
ORDER BY Total_Food_Received DESC`,
	},
	{
		ID: 12, Slug: "popular-meal-types", Title: "Popular Meal Types",
		sql: `
SELECT fl.Meal_Type,
       COUNT(c.Claim_ID) AS Total_Claims,
       SUM(CASE WHEN c.Status = 'Completed' THEN fl.Quantity ELSE 0 END) AS Quantity_Claimed,
       SUM(fl.Quantity) AS Total_Available,
       ROUND(SUM(CASE WHEN c.Status = 'Completed' THEN fl.Quantity ELSE 0 END) * 100.0 /
             SUM(fl.Quantity), 2) AS Claim_Rate_Percent
FROM food_listings fl
LEFT JOIN claims c ON fl.Food_ID = c.Food_ID
GROUP BY fl.Meal_Type
ORDER BY Total_Claims DESC`,
	},
	{
		ID: 13, Slug: "provider-donations", Title: "Provider Donations",
		sql: `
SELECT p.Name, p.Type, p.City,
       COUNT(fl.Food_ID) AS Items_Listed,
       SUM(fl.Quantity) AS Total_Quantity_Listed,
       SUM(CASE WHEN c.Status = 'Completed' THEN fl.Quantity ELSE 0 END) AS Quantity_Donated,
       ROUND(SUM(CASE WHEN c.Status = 'Completed' THEN fl.Quantity ELSE 0 END) * 100.0 /
             NULLIF(SUM(fl.Quantity), 0), 2) AS Donation_Rate_Percent
FROM providers p
LEFT JOIN food_listings fl ON p.Provider_ID = fl.Provider_ID
LEFT JOIN claims c ON fl.Food_ID = c.Food_ID
GROUP BY p.Provider_ID, p.Name, p.Type, p.City
ORDER BY Quantity_Donated DESC`,
	},
	{
		ID: 14, Slug: "expiring-food", Title: "Expiring Food", needsNow: true,
		sql: `
WITH expiring AS (
    SELECT Food_Name, Quantity, Expiry_Date, Location, Food_Type, Meal_Type,
           julianday(Expiry_Date) - julianday(?) AS Days_Until_Expiry
    FROM food_listings
)
SELECT Food_Name, Quantity, Expiry_Date, Location, Food_Type, Meal_Type, Days_Until_Expiry,
       CASE
           WHEN Days_Until_Expiry < 0 THEN 'Expired'
           WHEN Days_Until_Expiry <= 1 THEN 'Critical'
           WHEN Days_Until_Expiry <= 3 THEN 'Warning'
           ELSE 'Safe'
       END AS Status
FROM expiring
WHERE Days_Until_Expiry <= 5
ORDER BY Days_Until_Expiry ASC`,
	},
	{
		ID: 15, Slug: "unclaimed-food", Title: "Unclaimed Food", needsNow: true,
		sql: `
SELECT fl.Food_Name, fl.Quantity, fl.Expiry_Date, fl.Location, fl.Food_Type, fl.Meal_Type,
       p.Name AS Provider_Name,
       p.Contact AS Provider_Contact,
       julianday(fl.Expiry_Date) - julianday(?) AS Days_Until_Expiry
FROM food_listings fl
JOIN providers p ON fl.Provider_ID = p.Provider_ID
LEFT JOIN claims c ON fl.Food_ID = c.Food_ID
WHERE c.Food_ID IS NULL
ORDER BY fl.Expiry_Date ASC`,
	},
}
