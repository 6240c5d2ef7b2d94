// Package sqlite provides a SQLite-backed catalog implementation for
// local inventories. Natural-key uniqueness makes every creation call
// idempotent: re-creating a category or part resolves to the existing
// row.
package sqlite

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver

	"github.com/partsync/partsync/pkg/catalog"
	"github.com/partsync/partsync/pkg/errors"
	"github.com/partsync/partsync/pkg/parts"
)

const schema = `
CREATE TABLE IF NOT EXISTS categories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	path        TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	structural  INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS parts (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	identity      TEXT NOT NULL UNIQUE,
	manufacturer  TEXT NOT NULL DEFAULT '',
	mpn           TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	datasheet_url TEXT NOT NULL DEFAULT '',
	category_path TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS supplier_links (
	part_id     INTEGER NOT NULL REFERENCES parts(id),
	supplier_id TEXT NOT NULL,
	sku         TEXT NOT NULL,
	url         TEXT NOT NULL DEFAULT '',
	packaging   TEXT NOT NULL DEFAULT '',
	currency    TEXT NOT NULL DEFAULT '',
	stock       INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (part_id, supplier_id)
);
CREATE TABLE IF NOT EXISTS price_breaks (
	part_id     INTEGER NOT NULL,
	supplier_id TEXT NOT NULL,
	quantity    INTEGER NOT NULL,
	price       REAL NOT NULL,
	PRIMARY KEY (part_id, supplier_id, quantity)
);
CREATE TABLE IF NOT EXISTS parameters (
	part_id INTEGER NOT NULL REFERENCES parts(id),
	name    TEXT NOT NULL,
	value   TEXT NOT NULL,
	PRIMARY KEY (part_id, name)
);
CREATE INDEX IF NOT EXISTS idx_links_sku ON supplier_links(supplier_id, sku);
`

// Catalog is a SQLite-backed catalog.Catalog implementation.
type Catalog struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// Open opens (or creates) a catalog database at path and bootstraps the
// schema.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, &errors.ConfigError{Component: "sqlite", Message: "cannot open " + path, Err: err}
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, &errors.ConfigError{Component: "sqlite", Message: "cannot bootstrap schema", Err: err}
	}
	return &Catalog{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}, nil
}

// Close releases the database handle.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// FindCategory implements catalog.Searcher.
func (c *Catalog) FindCategory(ctx context.Context, path []string) (*catalog.Category, error) {
	query, args, err := c.sb.
		Select("id", "path", "description", "structural").
		From("categories").
		Where(sq.Eq{"path": strings.Join(path, "/")}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		cat        catalog.Category
		pathStr    string
		structural int
	)
	row := c.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&cat.ID, &pathStr, &cat.Description, &structural); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	cat.Path = strings.Split(pathStr, "/")
	cat.Structural = structural != 0
	return &cat, nil
}

// CreateCategory implements catalog.Mutator.
func (c *Catalog) CreateCategory(ctx context.Context, path []string, description string, structural bool) (*catalog.Category, error) {
	if len(path) == 0 {
		return nil, errors.ErrInvalidInput
	}
	query, args, err := c.sb.
		Insert("categories").
		Columns("path", "name", "description", "structural").
		Values(strings.Join(path, "/"), path[len(path)-1], description, boolInt(structural)).
		Suffix("ON CONFLICT(path) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}
	return c.FindCategory(ctx, path)
}

// SearchParts implements catalog.Searcher.
func (c *Catalog) SearchParts(ctx context.Context, criteria catalog.SearchCriteria) ([]*catalog.Part, error) {
	builder := c.sb.
		Select("DISTINCT p.id").
		From("parts p")

	switch {
	case criteria.MPN != "":
		if criteria.Manufacturer != "" {
			builder = builder.Where(sq.Eq{"p.identity": parts.NewIdentityKey(criteria.Manufacturer, criteria.MPN).String()})
		} else {
			folded := parts.NewIdentityKey("", criteria.MPN).String()
			builder = builder.Where(sq.Or{
				sq.Eq{"p.identity": folded},
				sq.Expr("p.identity LIKE ?", "%:"+folded),
			})
		}
	case criteria.SupplierID != "" || criteria.SKU != "":
		builder = builder.Join("supplier_links l ON l.part_id = p.id")
		if criteria.SupplierID != "" {
			builder = builder.Where(sq.Eq{"l.supplier_id": criteria.SupplierID})
		}
		if criteria.SKU != "" {
			builder = builder.Where("l.sku = ? COLLATE NOCASE", criteria.SKU)
		}
	default:
		return nil, nil
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]*catalog.Part, 0, len(ids))
	for _, id := range ids {
		p, err := c.loadPart(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// loadPart materializes one part row with its links and parameters.
func (c *Catalog) loadPart(ctx context.Context, id int64) (*catalog.Part, error) {
	query, args, err := c.sb.
		Select("manufacturer", "mpn", "description", "datasheet_url", "category_path").
		From("parts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	p := &catalog.Part{ID: strconv.FormatInt(id, 10)}
	var categoryPath string
	row := c.db.QueryRowContext(ctx, query, args...)
	if err := row.Scan(&p.Manufacturer, &p.MPN, &p.Description, &p.DatasheetURL, &categoryPath); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.ErrNotFound
		}
		return nil, err
	}
	if categoryPath != "" {
		p.CategoryPath = strings.Split(categoryPath, "/")
	}

	if err := c.loadLinks(ctx, id, p); err != nil {
		return nil, err
	}
	return p, c.loadParameters(ctx, id, p)
}

func (c *Catalog) loadLinks(ctx context.Context, id int64, p *catalog.Part) error {
	query, args, err := c.sb.
		Select("supplier_id", "sku", "url", "packaging", "currency", "stock").
		From("supplier_links").
		Where(sq.Eq{"part_id": id}).
		OrderBy("supplier_id").
		ToSql()
	if err != nil {
		return err
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var l catalog.SupplierLink
		if err := rows.Scan(&l.SupplierID, &l.SKU, &l.URL, &l.Packaging, &l.Currency, &l.Stock); err != nil {
			return err
		}
		if err := c.loadBreaks(ctx, id, &l); err != nil {
			return err
		}
		p.Links = append(p.Links, l)
	}
	return rows.Err()
}

func (c *Catalog) loadBreaks(ctx context.Context, id int64, l *catalog.SupplierLink) error {
	query, args, err := c.sb.
		Select("quantity", "price").
		From("price_breaks").
		Where(sq.Eq{"part_id": id, "supplier_id": l.SupplierID}).
		ToSql()
	if err != nil {
		return err
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			qty   int
			price float64
		)
		if err := rows.Scan(&qty, &price); err != nil {
			return err
		}
		if l.PriceBreaks == nil {
			l.PriceBreaks = map[int]float64{}
		}
		l.PriceBreaks[qty] = price
	}
	return rows.Err()
}

func (c *Catalog) loadParameters(ctx context.Context, id int64, p *catalog.Part) error {
	query, args, err := c.sb.
		Select("name", "value").
		From("parameters").
		Where(sq.Eq{"part_id": id}).
		ToSql()
	if err != nil {
		return err
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return err
		}
		if p.Parameters == nil {
			p.Parameters = map[string]string{}
		}
		p.Parameters[name] = value
	}
	return rows.Err()
}

// CreatePart implements catalog.Mutator, idempotent by identity key.
func (c *Catalog) CreatePart(ctx context.Context, part *catalog.Part) (*catalog.Part, error) {
	if part == nil || part.MPN == "" {
		return nil, errors.ErrInvalidInput
	}
	identity := parts.NewIdentityKey(part.Manufacturer, part.MPN).String()

	query, args, err := c.sb.
		Insert("parts").
		Columns("identity", "manufacturer", "mpn", "description", "datasheet_url", "category_path").
		Values(identity, part.Manufacturer, part.MPN, part.Description, part.DatasheetURL, strings.Join(part.CategoryPath, "/")).
		Suffix("ON CONFLICT(identity) DO NOTHING").
		ToSql()
	if err != nil {
		return nil, err
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return nil, err
	}

	var id int64
	row := c.db.QueryRowContext(ctx, "SELECT id FROM parts WHERE identity = ?", identity)
	if err := row.Scan(&id); err != nil {
		return nil, err
	}
	return c.loadPart(ctx, id)
}

// UpdatePart implements catalog.Mutator.
func (c *Catalog) UpdatePart(ctx context.Context, id string, fields catalog.PartFields) (*catalog.Part, error) {
	numID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, errors.ErrInvalidInput
	}

	builder := c.sb.Update("parts").Where(sq.Eq{"id": numID})
	touched := false
	if fields.Description != nil {
		builder = builder.Set("description", *fields.Description)
		touched = true
	}
	if fields.DatasheetURL != nil {
		builder = builder.Set("datasheet_url", *fields.DatasheetURL)
		touched = true
	}
	if fields.CategoryPath != nil {
		builder = builder.Set("category_path", strings.Join(fields.CategoryPath, "/"))
		touched = true
	}
	if touched {
		query, args, err := builder.ToSql()
		if err != nil {
			return nil, err
		}
		if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	return c.loadPart(ctx, numID)
}

// AttachSupplierLink implements catalog.Mutator, idempotent by supplier.
func (c *Catalog) AttachSupplierLink(ctx context.Context, partID string, link catalog.SupplierLink) error {
	numID, err := strconv.ParseInt(partID, 10, 64)
	if err != nil {
		return errors.ErrInvalidInput
	}
	query, args, err := c.sb.
		Insert("supplier_links").
		Columns("part_id", "supplier_id", "sku", "url", "packaging", "currency", "stock").
		Values(numID, link.SupplierID, link.SKU, link.URL, link.Packaging, link.Currency, link.Stock).
		Suffix("ON CONFLICT(part_id, supplier_id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	for qty, price := range link.PriceBreaks {
		if err := c.SetPriceBreak(ctx, partID, link.SupplierID, qty, price, link.Currency); err != nil {
			return err
		}
	}
	return nil
}

// SetPriceBreak implements catalog.Mutator.
func (c *Catalog) SetPriceBreak(ctx context.Context, partID, supplierID string, quantity int, price float64, currency string) error {
	numID, err := strconv.ParseInt(partID, 10, 64)
	if err != nil {
		return errors.ErrInvalidInput
	}
	query, args, err := c.sb.
		Insert("price_breaks").
		Columns("part_id", "supplier_id", "quantity", "price").
		Values(numID, supplierID, quantity, price).
		Suffix("ON CONFLICT(part_id, supplier_id, quantity) DO UPDATE SET price = excluded.price").
		ToSql()
	if err != nil {
		return err
	}
	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return err
	}
	if currency != "" {
		update, uargs, err := c.sb.
			Update("supplier_links").
			Set("currency", currency).
			Where(sq.Eq{"part_id": numID, "supplier_id": supplierID}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := c.db.ExecContext(ctx, update, uargs...); err != nil {
			return err
		}
	}
	return nil
}

// SetParameter implements catalog.Mutator.
func (c *Catalog) SetParameter(ctx context.Context, partID, name, value string) error {
	numID, err := strconv.ParseInt(partID, 10, 64)
	if err != nil {
		return errors.ErrInvalidInput
	}
	query, args, err := c.sb.
		Insert("parameters").
		Columns("part_id", "name", "value").
		Values(numID, name, value).
		Suffix("ON CONFLICT(part_id, name) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, query, args...)
	return err
}

// SetStock implements catalog.Mutator.
func (c *Catalog) SetStock(ctx context.Context, partID, supplierID string, quantity int) error {
	numID, err := strconv.ParseInt(partID, 10, 64)
	if err != nil {
		return errors.ErrInvalidInput
	}
	query, args, err := c.sb.
		Update("supplier_links").
		Set("stock", quantity).
		Where(sq.Eq{"part_id": numID, "supplier_id": supplierID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx, query, args...)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
