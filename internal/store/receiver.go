package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/surplus/internal/database"
	"github.com/dukerupert/surplus/internal/model"
)

type ReceiverStore struct {
	db *sql.DB
}

func NewReceiverStore(db *sql.DB) *ReceiverStore {
	return &ReceiverStore{db: db}
}

const receiverCols = `Receiver_ID, Name, Type, City, Contact`

func scanReceiver(scanner interface{ Scan(...any) error }) (*model.Receiver, error) {
	var r model.Receiver
	var contact sql.NullString
	if err := scanner.Scan(&r.ID, &r.Name, &r.Type, &r.City, &contact); err != nil {
		return nil, err
	}
	r.Contact = contact.String
	return &r, nil
}

func (s *ReceiverStore) Create(r model.Receiver) (*model.Receiver, error) {
	if err := required("receiver", map[string]string{"name": r.Name, "type": r.Type, "city": r.City}); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`INSERT INTO receivers (Receiver_ID, Name, Type, City, Contact) VALUES (?, ?, ?, ?, ?)`,
		nullID(r.ID), r.Name, r.Type, r.City, nullString(r.Contact),
	)
	if err != nil {
		return nil, fmt.Errorf("insert receiver: %w", database.Classify(err))
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ReceiverStore) GetByID(id int64) (*model.Receiver, error) {
	row := s.db.QueryRow(`SELECT `+receiverCols+` FROM receivers WHERE Receiver_ID = ?`, id)
	r, err := scanReceiver(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get receiver: %w", err)
	}
	return r, nil
}

func (s *ReceiverStore) List() ([]model.Receiver, error) {
	rows, err := s.db.Query(`SELECT ` + receiverCols + ` FROM receivers ORDER BY Receiver_ID ASC`)
	if err != nil {
		return nil, fmt.Errorf("list receivers: %w", err)
	}
	defer rows.Close()

	var receivers []model.Receiver
	for rows.Next() {
		r, err := scanReceiver(rows)
		if err != nil {
			return nil, fmt.Errorf("scan receiver: %w", err)
		}
		receivers = append(receivers, *r)
	}
	return receivers, rows.Err()
}
