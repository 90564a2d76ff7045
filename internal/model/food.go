package model

// Table names, parent tables first.
const (
	TableProviders    = "providers"
	TableReceivers    = "receivers"
	TableFoodListings = "food_listings"
	TableClaims       = "claims"
)

// Tables lists every domain table in load order (parents before children).
var Tables = []string{TableProviders, TableReceivers, TableFoodListings, TableClaims}

// DateLayout is the storage format for Expiry_Date.
const DateLayout = "2006-01-02"

// TimestampLayout is the storage format for Claim.Timestamp.
const TimestampLayout = "2006-01-02 15:04:05"

type Provider struct {
	ID      int64  `json:"provider_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	Address string `json:"address"`
	City    string `json:"city"`
	Contact string `json:"contact"`
}

type Receiver struct {
	ID      int64  `json:"receiver_id"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	City    string `json:"city"`
	Contact string `json:"contact"`
}

type FoodType string

const (
	FoodTypeVegetarian    FoodType = "Vegetarian"
	FoodTypeNonVegetarian FoodType = "Non-Vegetarian"
	FoodTypeVegan         FoodType = "Vegan"
)

type MealType string

const (
	MealTypeBreakfast MealType = "Breakfast"
	MealTypeLunch     MealType = "Lunch"
	MealTypeDinner    MealType = "Dinner"
	MealTypeSnacks    MealType = "Snacks"
)

// FoodListing is a quantity of food offered by a provider. ProviderType is a
// denormalized copy of the provider's Type.
type FoodListing struct {
	ID           int64    `json:"food_id"`
	Name         string   `json:"food_name"`
	Quantity     int64    `json:"quantity"`
	ExpiryDate   string   `json:"expiry_date"`
	ProviderID   int64    `json:"provider_id"`
	ProviderType string   `json:"provider_type"`
	Location     string   `json:"location"`
	FoodType     FoodType `json:"food_type"`
	MealType     MealType `json:"meal_type"`
}

// Exhausted reports whether nothing is left to claim.
func (f FoodListing) Exhausted() bool {
	return f.Quantity == 0
}

// FoodListingUpdate carries the optional fields of a partial listing update.
// Nil fields are left unchanged.
type FoodListingUpdate struct {
	Quantity   *int64  `json:"quantity,omitempty"`
	ExpiryDate *string `json:"expiry_date,omitempty"`
	Location   *string `json:"location,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u FoodListingUpdate) Empty() bool {
	return u.Quantity == nil && u.ExpiryDate == nil && u.Location == nil
}

type ClaimStatus string

const (
	ClaimStatusPending   ClaimStatus = "Pending"
	ClaimStatusCompleted ClaimStatus = "Completed"
	ClaimStatusCancelled ClaimStatus = "Cancelled"
)

// Valid reports whether s is one of the three known statuses. Matching is
// case-sensitive.
func (s ClaimStatus) Valid() bool {
	switch s {
	case ClaimStatusPending, ClaimStatusCompleted, ClaimStatusCancelled:
		return true
	}
	return false
}

type Claim struct {
	ID         int64       `json:"claim_id"`
	FoodID     int64       `json:"food_id"`
	ReceiverID int64       `json:"receiver_id"`
	Status     ClaimStatus `json:"status"`
	Timestamp  string      `json:"timestamp"`
}
