package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

type FoodListingStore struct {
	db *sql.DB
}

func NewFoodListingStore(db *sql.DB) *FoodListingStore {
	return &FoodListingStore{db: db}
}

const listingCols = `Food_ID, Food_Name, Quantity, Expiry_Date, Provider_ID, Provider_Type, Location, Food_Type, Meal_Type`

func scanListing(scanner interface{ Scan(...any) error }) (*model.FoodListing, error) {
	var f model.FoodListing
	var expiry, providerType, location, foodType, mealType sql.NullString
	var providerID sql.NullInt64
	err := scanner.Scan(
		&f.ID, &f.Name, &f.Quantity, &expiry, &providerID,
		&providerType, &location, &foodType, &mealType,
	)
	if err != nil {
		return nil, err
	}
	f.ExpiryDate = expiry.String
	f.ProviderID = providerID.Int64
	f.ProviderType = providerType.String
	f.Location = location.String
	f.FoodType = model.FoodType(foodType.String)
	f.MealType = model.MealType(mealType.String)
	return &f, nil
}

// Create inserts a listing. The provider must exist; a zero ID lets SQLite
// assign the next one.
func (s *FoodListingStore) Create(f model.FoodListing) (*model.FoodListing, error) {
	if err := validateListing(f); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO food_listings (`+listingCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullID(f.ID), f.Name, f.Quantity, f.ExpiryDate, f.ProviderID,
		nullString(f.ProviderType), nullString(f.Location),
		nullString(string(f.FoodType)), nullString(string(f.MealType)),
	)
	if err != nil {
		return nil, fmt.Errorf("insert food listing: %w", database.Classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *FoodListingStore) GetByID(id int64) (*model.FoodListing, error) {
	row := s.db.QueryRow(`SELECT `+listingCols+` FROM food_listings WHERE Food_ID = ?`, id)
	f, err := scanListing(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get food listing: %w", err)
	}
	return f, nil
}

// List returns every listing, soonest expiry first.
func (s *FoodListingStore) List() ([]model.FoodListing, error) {
	rows, err := s.db.Query(`SELECT ` + listingCols + ` FROM food_listings ORDER BY Expiry_Date ASC, Food_ID ASC`)
	if err != nil {
		return nil, fmt.Errorf("list food listings: %w", err)
	}
	defer rows.Close()

	var listings []model.FoodListing
	for rows.Next() {
		f, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food listing: %w", err)
		}
		listings = append(listings, *f)
	}
	return listings, rows.Err()
}

// Update applies the non-nil fields of u. It returns ErrNotFound when no
// listing has the given ID.
func (s *FoodListingStore) Update(id int64, u model.FoodListingUpdate) (*model.FoodListing, error) {
	if u.Empty() {
		return nil, invalidf("update food listing %d: no fields to update", id)
	}

	var sets []string
	var args []any
	if u.Quantity != nil {
		if *u.Quantity < 0 {
			return nil, invalidf("update food listing %d: quantity must not be negative", id)
		}
		sets = append(sets, "Quantity = ?")
		args = append(args, *u.Quantity)
	}
	if u.ExpiryDate != nil {
		if _, err := time.Parse(model.DateLayout, *u.ExpiryDate); err != nil {
			return nil, invalidf("update food listing %d: invalid expiry date %q", id, *u.ExpiryDate)
		}
		sets = append(sets, "Expiry_Date = ?")
		args = append(args, *u.ExpiryDate)
	}
	if u.Location != nil {
		sets = append(sets, "Location = ?")
		args = append(args, *u.Location)
	}
	args = append(args, id)

	result, err := s.db.Exec(`UPDATE food_listings SET `+strings.Join(sets, ", ")+` WHERE Food_ID = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("update food listing: %w", database.Classify(err))
	}
	if err := affected(result, "food listing", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

// Delete removes a listing. Listings that still have claims cannot be
// deleted.
func (s *FoodListingStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM food_listings WHERE Food_ID = ?`, id)
	if err != nil {
		return fmt.Errorf("delete food listing: %w", database.Classify(err))
	}
	return affected(result, "food listing", id)
}

func validateListing(f model.FoodListing) error {
	if strings.TrimSpace(f.Name) == "" {
		return invalidf("food listing: name is required")
	}
	if f.Quantity < 0 {
		return invalidf("food listing: quantity must not be negative")
	}
	if f.ProviderID == 0 {
		return invalidf("food listing: provider id is required")
	}
	if _, err := time.Parse(model.DateLayout, f.ExpiryDate); err != nil {
		return invalidf("food listing: invalid expiry date %q", f.ExpiryDate)
	}
	return nil
}
