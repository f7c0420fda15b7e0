package label

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Catalog defines the interface for the label catalog: the bootstrap
// store holding the fleet a gateway starts with. The catalog is read once
// at startup to seed the in-memory registry; runtime label state is never
// written back.
//
// This abstraction allows for different implementations (SQLite, mock)
// and enables unit testing without database dependencies.
type Catalog interface {
	// List retrieves every catalog entry, ordered by ID.
	List(ctx context.Context) ([]Label, error)

	// Insert adds a new catalog entry.
	// Returns ErrLabelExists if the ID is already present.
	Insert(ctx context.Context, l Label) error

	// Count returns the number of catalog entries.
	Count(ctx context.Context) (int, error)
}

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog creates a new SQLite-backed catalog.
// The db parameter should be an open SQLite connection with the
// labels table migrated.
func NewSQLiteCatalog(db *sql.DB) *SQLiteCatalog {
	return &SQLiteCatalog{db: db}
}

// List retrieves every catalog entry, ordered by ID.
func (c *SQLiteCatalog) List(ctx context.Context) ([]Label, error) {
	query := `
		SELECT id, name, price, promo, battery
		FROM labels
		ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	defer rows.Close()

	var labels []Label
	for rows.Next() {
		var l Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Price, &l.Promo, &l.Battery); err != nil {
			return nil, fmt.Errorf("scanning label row: %w", err)
		}
		labels = append(labels, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating labels: %w", err)
	}
	return labels, nil
}

// Insert adds a new catalog entry.
func (c *SQLiteCatalog) Insert(ctx context.Context, l Label) error {
	if l.ID == "" {
		return ErrInvalidID
	}

	var exists int
	err := c.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM labels WHERE id = ?", l.ID,
	).Scan(&exists)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("checking label existence: %w", err)
	}
	if exists > 0 {
		return ErrLabelExists
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO labels (id, name, price, promo, battery, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Price, l.Promo, l.Battery,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting label: %w", err)
	}
	return nil
}

// Count returns the number of catalog entries.
func (c *SQLiteCatalog) Count(ctx context.Context) (int, error) {
	var count int
	if err := c.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM labels").Scan(&count); err != nil {
		return 0, fmt.Errorf("counting labels: %w", err)
	}
	return count, nil
}

// DefaultSeed returns the built-in starter fleet, inserted into an empty
// catalog on first run so a fresh gateway has labels to work with in
// simulation mode. etiq_004 starts below the low-battery threshold to
// exercise low-battery alerting.
func DefaultSeed() []Label {
	return []Label{
		{ID: "etiq_001", Name: "LECHE 1L", Price: 1300, Promo: "10% hoy", Battery: 85},
		{ID: "etiq_002", Name: "PAN BLANCO", Price: 800, Promo: "", Battery: 92},
		{ID: "etiq_003", Name: "AZUCAR 1KG", Price: 600, Promo: "2x1", Battery: 78},
		{ID: "etiq_004", Name: "ACEITE GIRASOL", Price: 2500, Promo: "3x2", Battery: 15},
	}
}

// EnsureSeed inserts the default starter fleet when the catalog is empty.
// Safe to call on every startup; a non-empty catalog is left untouched.
func EnsureSeed(ctx context.Context, c Catalog) error {
	count, err := c.Count(ctx)
	if err != nil {
		return fmt.Errorf("counting catalog entries: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, l := range DefaultSeed() {
		if err := c.Insert(ctx, l); err != nil {
			return fmt.Errorf("seeding catalog: %w", err)
		}
	}
	return nil
}
