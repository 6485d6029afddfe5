// Package postgres implements store.Repository on PostgreSQL. Uniqueness
// constraints and conditional updates carry the concurrency guarantees; no
// application-level locking is used.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"billing-service/internal/models"
	"billing-service/internal/store"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

var _ store.Repository = (*Store)(nil)

// New connects to the database and verifies the connection.
func New(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// GetProductByID retrieves a product by ID.
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products keyed by ID. Missing IDs are
// simply absent from the map; callers decide whether that is an error.
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	if len(ids) == 0 {
		return map[int64]models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, err
	}

	result := make(map[int64]models.Product, len(products))
	for _, p := range products {
		result[p.ID] = p
	}
	return result, nil
}

// GetShippingMethodByID retrieves a shipping method by ID.
func (s *Store) GetShippingMethodByID(ctx context.Context, id int64) (*models.ShippingMethod, error) {
	var method models.ShippingMethod
	err := s.db.GetContext(ctx, &method, "SELECT * FROM shipping_methods WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &method, nil
}

// GetPaymentMethodByID retrieves a payment method by ID.
func (s *Store) GetPaymentMethodByID(ctx context.Context, id int64) (*models.PaymentMethod, error) {
	var method models.PaymentMethod
	err := s.db.GetContext(ctx, &method, "SELECT * FROM payment_methods WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &method, nil
}
