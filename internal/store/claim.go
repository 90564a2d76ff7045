package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/surplus/internal/clock"
	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

type ClaimStore struct {
	db    *sql.DB
	clock clock.Clock
}

// NewClaimStore returns a store that stamps new claims with clk. A nil clk
// uses the wall clock.
func NewClaimStore(db *sql.DB, clk clock.Clock) *ClaimStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ClaimStore{db: db, clock: clk}
}

const claimCols = `Claim_ID, Food_ID, Receiver_ID, Status, Timestamp`

func scanClaim(scanner interface{ Scan(...any) error }) (*model.Claim, error) {
	var c model.Claim
	var foodID, receiverID sql.NullInt64
	var status, ts sql.NullString
	if err := scanner.Scan(&c.ID, &foodID, &receiverID, &status, &ts); err != nil {
		return nil, err
	}
	c.FoodID = foodID.Int64
	c.ReceiverID = receiverID.Int64
	c.Status = model.ClaimStatus(status.String)
	c.Timestamp = ts.String
	return &c, nil
}

// Create records a claim against an existing listing and receiver.
func (s *ClaimStore) Create(c model.Claim) (*model.Claim, error) {
	if !c.Status.Valid() {
		return nil, invalidf("claim: unknown status %q", c.Status)
	}
	if c.FoodID == 0 || c.ReceiverID == 0 {
		return nil, invalidf("claim: food id and receiver id are required")
	}
	if c.Timestamp == "" {
		c.Timestamp = s.clock.Now().UTC().Format(model.TimestampLayout)
	}
	result, err := s.db.Exec(
		`INSERT INTO claims (`+claimCols+`) VALUES (?, ?, ?, ?, ?)`,
		nullID(c.ID), c.FoodID, c.ReceiverID, string(c.Status), c.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert claim: %w", database.Classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ClaimStore) GetByID(id int64) (*model.Claim, error) {
	row := s.db.QueryRow(`SELECT `+claimCols+` FROM claims WHERE Claim_ID = ?`, id)
	c, err := scanClaim(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get claim: %w", err)
	}
	return c, nil
}

func (s *ClaimStore) List() ([]model.Claim, error) {
	rows, err := s.db.Query(`SELECT ` + claimCols + ` FROM claims ORDER BY Claim_ID ASC`)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var claims []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		claims = append(claims, *c)
	}
	return claims, rows.Err()
}

// UpdateStatus sets a claim's status. Any known status may replace any other;
// there are no transition rules.
func (s *ClaimStore) UpdateStatus(id int64, status model.ClaimStatus) (*model.Claim, error) {
	if !status.Valid() {
		return nil, invalidf("claim: unknown status %q", status)
	}
	result, err := s.db.Exec(`UPDATE claims SET Status = ? WHERE Claim_ID = ?`, string(status), id)
	if err != nil {
		return nil, fmt.Errorf("update claim status: %w", database.Classify(err))
	}
	if err := affected(result, "claim", id); err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *ClaimStore) Delete(id int64) error {
	result, err := s.db.Exec(`DELETE FROM claims WHERE Claim_ID = ?`, id)
	if err != nil {
		return fmt.Errorf("delete claim: %w", database.Classify(err))
	}
	return affected(result, "claim", id)
}
