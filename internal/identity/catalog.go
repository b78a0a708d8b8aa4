package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	// DefaultSyntheticIDBase offsets synthetic rows above the real id space.
	DefaultSyntheticIDBase int64 = 900000
	// DefaultBatchSize bounds the rows written by a single INSERT.
	DefaultBatchSize = 50000

	defaultUsersTable      = "RadiusUsers"
	defaultAttributesTable = "RadiusCustomAttributes"
)

// Catalog is the PostgreSQL-backed identity store.
type Catalog struct {
	db             *sql.DB
	usersTable     string
	attrTable      string
	idBase         int64
	batchSize      int
	profileID      int64
	withAttributes bool
	ownsConnection bool
	logger         *zap.Logger
}

// CatalogOption customizes a Catalog.
type CatalogOption func(*Catalog)

// WithBatchSize sets the maximum rows per INSERT batch.
func WithBatchSize(n int) CatalogOption {
	return func(c *Catalog) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithSyntheticIDBase moves the reserved id range.
func WithSyntheticIDBase(base int64) CatalogOption {
	return func(c *Catalog) {
		if base > 0 {
			c.idBase = base
		}
	}
}

// WithProfileID sets the profile synthetic users reference. Zero leaves it NULL.
func WithProfileID(id int64) CatalogOption {
	return func(c *Catalog) { c.profileID = id }
}

// WithCustomAttributes also injects and removes per-user custom attribute rows.
func WithCustomAttributes(enabled bool) CatalogOption {
	return func(c *Catalog) { c.withAttributes = enabled }
}

// WithTables overrides the user and attribute table names.
func WithTables(users, attributes string) CatalogOption {
	return func(c *Catalog) {
		if users != "" {
			c.usersTable = users
		}
		if attributes != "" {
			c.attrTable = attributes
		}
	}
}

// WithLogger attaches a logger for bulk operations.
func WithLogger(l *zap.Logger) CatalogOption {
	return func(c *Catalog) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCatalog wraps an existing connection pool. The caller keeps ownership of db.
func NewCatalog(db *sql.DB, opts ...CatalogOption) *Catalog {
	c := &Catalog{
		db:         db,
		usersTable: defaultUsersTable,
		attrTable:  defaultAttributesTable,
		idBase:     DefaultSyntheticIDBase,
		batchSize:  DefaultBatchSize,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string, opts ...CatalogOption) (*Catalog, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, storeErr("open", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr("ping", err)
	}

	c := NewCatalog(db, opts...)
	c.ownsConnection = true
	return c, nil
}

// Close releases the pool when the catalog opened it.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil || !c.ownsConnection {
		return nil
	}
	return c.db.Close()
}

// Load returns every enabled, non-deleted identity with a credential, ordered by id.
func (c *Catalog) Load(ctx context.Context) ([]Identity, error) {
	query := fmt.Sprintf(`
		SELECT "Username", "Password"
		FROM %s
		WHERE "Enabled" = true
		  AND "IsDeleted" = false
		  AND "Password" IS NOT NULL
		  AND "Password" <> ''
		ORDER BY "Id"`, pq.QuoteIdentifier(c.usersTable))

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, storeErr("load", err)
	}
	defer rows.Close()

	var ids []Identity
	for rows.Next() {
		var id Identity
		if err := rows.Scan(&id.Username, &id.Password); err != nil {
			return nil, storeErr("load", fmt.Errorf("scan: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("load", err)
	}
	if len(ids) == 0 {
		return nil, storeErr("load", ErrNoIdentities)
	}
	return ids, nil
}

// Inject inserts n synthetic identities numbered above the reserved base in
// bounded batches, then refreshes planner statistics.
func (c *Catalog) Inject(ctx context.Context, n int) error {
	if n <= 0 {
		return nil
	}
	start := time.Now()
	c.logger.Info("injecting synthetic identities",
		zap.Int("count", n),
		zap.Int("batch_size", c.batchSize),
		zap.Int64("id_base", c.idBase),
	)

	var profile sql.NullInt64
	if c.profileID > 0 {
		profile = sql.NullInt64{Int64: c.profileID, Valid: true}
	}

	usersInsert := fmt.Sprintf(`
		INSERT INTO %s (
			"Id", "Uuid", "ExternalId", "Username", "Password",
			"Enabled", "IsDeleted", "SimultaneousSessions", "Balance",
			"LoanBalance", "PinTries", "RemainingDays", "OnlineStatus",
			"UsedTraffic", "AvailableTraffic", "DebtDays", "ProfileId",
			"CreatedAt", "UpdatedAt"
		)
		SELECT
			$3 + $2 + g,
			gen_random_uuid(),
			$3 + $2 + g,
			'lt_' || ($2 + g),
			'pw_' || ($2 + g),
			true, false, 1, 100.00, 0.00,
			0, 0, 0, 0, 0, 0, $4,
			NOW(), NOW()
		FROM generate_series(1, $1) g
		ON CONFLICT DO NOTHING`, pq.QuoteIdentifier(c.usersTable))

	for offset := 0; offset < n; offset += c.batchSize {
		batch := c.batchSize
		if offset+batch > n {
			batch = n - offset
		}
		if _, err := c.db.ExecContext(ctx, usersInsert, batch, offset, c.idBase, profile); err != nil {
			return storeErr("inject", fmt.Errorf("insert batch at %d: %w", offset, err))
		}
		c.logger.Debug("inserted identity batch", zap.Int("offset", offset), zap.Int("rows", batch))
	}

	if c.withAttributes {
		if err := c.injectAttributes(ctx, n); err != nil {
			return err
		}
	}

	if err := c.RefreshStatistics(ctx); err != nil {
		return err
	}
	c.logger.Info("synthetic identities injected",
		zap.Int("count", n),
		zap.Duration("elapsed", time.Since(start).Round(time.Millisecond)),
	)
	return nil
}

func (c *Catalog) injectAttributes(ctx context.Context, n int) error {
	attrInsert := fmt.Sprintf(`
		INSERT INTO %s (
			"Id", "Uuid", "AttributeName", "AttributeValue", "LinkType",
			"RadiusUserId", "RadiusProfileId", "Enabled", "IsDeleted",
			"CreatedAt", "UpdatedAt"
		)
		SELECT
			$3 + $2 + g,
			gen_random_uuid(),
			CASE mod($2 + g, 2) WHEN 0 THEN 'Alc-SLA-Prof-Str' ELSE 'Alc-Subsc-Prof-Str' END,
			CASE mod($2 + g, 2) WHEN 0 THEN 'SLA-LT-' || mod($2 + g, 20) ELSE 'Sub-LT' END,
			'user',
			$3 + $2 + g,
			NULL,
			true, false,
			NOW(), NOW()
		FROM generate_series(1, $1) g
		ON CONFLICT DO NOTHING`, pq.QuoteIdentifier(c.attrTable))

	for offset := 0; offset < n; offset += c.batchSize {
		batch := c.batchSize
		if offset+batch > n {
			batch = n - offset
		}
		if _, err := c.db.ExecContext(ctx, attrInsert, batch, offset, c.idBase); err != nil {
			return storeErr("inject", fmt.Errorf("insert attributes at %d: %w", offset, err))
		}
	}
	return nil
}

// Cleanup removes every row in the reserved range and refreshes statistics.
// It is idempotent and safe to call when nothing was injected.
func (c *Catalog) Cleanup(ctx context.Context) error {
	var errs []error

	if c.withAttributes {
		q := fmt.Sprintf(`DELETE FROM %s WHERE "Id" > $1`, pq.QuoteIdentifier(c.attrTable))
		if _, err := c.db.ExecContext(ctx, q, c.idBase); err != nil {
			errs = append(errs, fmt.Errorf("delete attributes: %w", err))
		}
	}

	q := fmt.Sprintf(`DELETE FROM %s WHERE "Id" > $1`, pq.QuoteIdentifier(c.usersTable))
	res, err := c.db.ExecContext(ctx, q, c.idBase)
	if err != nil {
		errs = append(errs, fmt.Errorf("delete identities: %w", err))
	} else if removed, rerr := res.RowsAffected(); rerr == nil {
		c.logger.Info("synthetic identities removed", zap.Int64("rows", removed))
	}

	if err := c.RefreshStatistics(ctx); err != nil {
		errs = append(errs, err)
	}
	return storeErr("cleanup", errors.Join(errs...))
}

// RefreshStatistics asks the planner to re-analyze the touched tables.
func (c *Catalog) RefreshStatistics(ctx context.Context) error {
	tables := []string{c.usersTable}
	if c.withAttributes {
		tables = append(tables, c.attrTable)
	}
	for _, table := range tables {
		if _, err := c.db.ExecContext(ctx, "ANALYZE "+pq.QuoteIdentifier(table)); err != nil {
			return storeErr("analyze", fmt.Errorf("%s: %w", table, err))
		}
	}
	return nil
}

// CountSynthetic returns the number of rows currently in the reserved range.
func (c *Catalog) CountSynthetic(ctx context.Context) (int64, error) {
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE "Id" > $1`, pq.QuoteIdentifier(c.usersTable))
	var n int64
	if err := c.db.QueryRowContext(ctx, q, c.idBase).Scan(&n); err != nil {
		return 0, storeErr("count", err)
	}
	return n, nil
}
