package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

type ProviderStore struct {
	db *sql.DB
}

func NewProviderStore(db *sql.DB) *ProviderStore {
	return &ProviderStore{db: db}
}

const providerCols = `Provider_ID, Name, Type, Address, City, Contact`

func scanProvider(scanner interface{ Scan(...any) error }) (*model.Provider, error) {
	var p model.Provider
	var address, contact sql.NullString
	if err := scanner.Scan(&p.ID, &p.Name, &p.Type, &address, &p.City, &contact); err != nil {
		return nil, err
	}
	p.Address = address.String
	p.Contact = contact.String
	return &p, nil
}

// Create inserts a provider. A zero ID lets SQLite assign the next one.
func (s *ProviderStore) Create(p model.Provider) (*model.Provider, error) {
	if err := required("provider", map[string]string{"name": p.Name, "type": p.Type, "city": p.City}); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO providers (Provider_ID, Name, Type, Address, City, Contact) VALUES (?, ?, ?, ?, ?, ?)`,
		nullID(p.ID), p.Name, p.Type, nullString(p.Address), p.City, nullString(p.Contact),
	)
	if err != nil {
		return nil, fmt.Errorf("insert provider: %w", database.Classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProviderStore) GetByID(id int64) (*model.Provider, error) {
	row := s.db.QueryRow(`SELECT `+providerCols+` FROM providers WHERE Provider_ID = ?`, id)
	p, err := scanProvider(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	return p, nil
}

func (s *ProviderStore) List() ([]model.Provider, error) {
	rows, err := s.db.Query(`SELECT ` + providerCols + ` FROM providers ORDER BY Provider_ID ASC`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		providers = append(providers, *p)
	}
	return providers, rows.Err()
}

// ListCities returns the distinct provider cities in alphabetical order.
func (s *ProviderStore) ListCities() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT City FROM providers ORDER BY City ASC`)
	if err != nil {
		return nil, fmt.Errorf("list provider cities: %w", err)
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			return nil, fmt.Errorf("scan city: %w", err)
		}
		cities = append(cities, city)
	}
	return cities, rows.Err()
}

// ErrInvalid marks input rejected before it reaches the database.
var ErrInvalid = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// required reports the first blank field, in name order.
func required(entity string, fields map[string]string) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.TrimSpace(fields[name]) == "" {
			return invalidf("%s: %s is required", entity, name)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// affected turns a zero-row update or delete into ErrNotFound.
func affected(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, database.ErrNotFound)
	}
	return nil
}
