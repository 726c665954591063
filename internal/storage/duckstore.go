package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcboeker/go-duckdb"
	"github.com/moodboard/backend/internal/logging"
	"github.com/moodboard/backend/internal/models"
	"github.com/rs/zerolog"
)

// BoardStore persists weeks and their items.
type BoardStore interface {
	EnsureWeek(ctx context.Context, id string) (*models.Week, error)
	GetWeek(ctx context.Context, id string) (*models.Week, error)
	ListWeeks(ctx context.Context) ([]*models.Week, error)
	SaveNotes(ctx context.Context, id, notes string) (*models.Week, error)

	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id string) (*models.Item, error)
	ListItems(ctx context.Context, weekID string) ([]*models.Item, error)
	UpdateGeometry(ctx context.Context, id string, g models.Geometry) error
	SetTags(ctx context.Context, id string, tags []string) error
	SetColors(ctx context.Context, id string, colors []string) error
	DeleteItem(ctx context.Context, id string) (*models.Item, error)

	Close() error
}

// DuckOptions tunes the DuckDB connection.
type DuckOptions struct {
	Threads     int
	MemoryLimit string
}

// DuckStore implements BoardStore on a DuckDB file.
type DuckStore struct {
	db     *sql.DB
	dbPath string
	log    zerolog.Logger
}

var schema = []string{`
CREATE TABLE IF NOT EXISTS weeks (
	id         VARCHAR PRIMARY KEY,
	year       INTEGER NOT NULL,
	number     INTEGER NOT NULL,
	notes      VARCHAR NOT NULL DEFAULT '',
	updated_at TIMESTAMP NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS items (
	id         VARCHAR PRIMARY KEY,
	week_id    VARCHAR NOT NULL,
	media_id   VARCHAR NOT NULL,
	kind       VARCHAR NOT NULL,
	name       VARCHAR NOT NULL DEFAULT '',
	mime_type  VARCHAR NOT NULL DEFAULT '',
	x          INTEGER NOT NULL,
	y          INTEGER NOT NULL,
	width      INTEGER,
	height     INTEGER,
	tags       VARCHAR NOT NULL DEFAULT '[]',
	colors     VARCHAR NOT NULL DEFAULT '[]',
	language   VARCHAR NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
)`,
}

// NewDuckStore opens (or creates) the board database at dbPath.
func NewDuckStore(dbPath string, opts DuckOptions) (*DuckStore, error) {
	log := logging.Component("store")
	if opts.Threads <= 0 {
		opts.Threads = 2
	}
	if opts.MemoryLimit == "" {
		opts.MemoryLimit = "512MB"
	}

	connector, err := duckdb.NewConnector(dbPath, func(execer driver.ExecerContext) error {
		pragmas := []string{
			fmt.Sprintf("PRAGMA memory_limit='%s'", opts.MemoryLimit),
			fmt.Sprintf("PRAGMA threads=%d", opts.Threads),
			"PRAGMA enable_progress_bar=false",
		}
		for _, pragma := range pragmas {
			if _, err := execer.ExecContext(context.Background(), pragma, nil); err != nil {
				log.Warn().Err(err).Str("pragma", pragma).Msg("pragma failed")
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DuckDB connector: %w", err)
	}

	db := sql.OpenDB(connector)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Info().Str("path", dbPath).Msg("board database ready")
	return &DuckStore{db: db, dbPath: dbPath, log: log}, nil
}

// Close releases the database.
func (ds *DuckStore) Close() error {
	return ds.db.Close()
}

// EnsureWeek returns the week, creating it empty if needed.
func (ds *DuckStore) EnsureWeek(ctx context.Context, id string) (*models.Week, error) {
	week, err := models.NewWeek(id)
	if err != nil {
		return nil, err
	}
	_, err = ds.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO weeks (id, year, number, notes, updated_at) VALUES (?, ?, ?, '', ?)`,
		week.ID, week.Year, week.Number, week.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ensure week %s: %w", id, err)
	}
	return ds.getWeekRow(ctx, id)
}

func (ds *DuckStore) getWeekRow(ctx context.Context, id string) (*models.Week, error) {
	w := &models.Week{}
	err := ds.db.QueryRowContext(ctx,
		`SELECT id, year, number, notes, updated_at FROM weeks WHERE id = ?`, id).
		Scan(&w.ID, &w.Year, &w.Number, &w.Notes, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("week %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get week %s: %w", id, err)
	}
	return w, nil
}

// GetWeek returns a week with its items.
func (ds *DuckStore) GetWeek(ctx context.Context, id string) (*models.Week, error) {
	w, err := ds.getWeekRow(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := ds.ListItems(ctx, id)
	if err != nil {
		return nil, err
	}
	w.Items = items
	w.ItemCount = len(items)
	return w, nil
}

// ListWeeks returns every week, newest first, with item counts but no items.
func (ds *DuckStore) ListWeeks(ctx context.Context) ([]*models.Week, error) {
	rows, err := ds.db.QueryContext(ctx, `
		SELECT w.id, w.year, w.number, w.notes, w.updated_at, COUNT(i.id)
		FROM weeks w LEFT JOIN items i ON i.week_id = w.id
		GROUP BY w.id, w.year, w.number, w.notes, w.updated_at
		ORDER BY w.year DESC, w.number DESC`)
	if err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	defer rows.Close()

	weeks := make([]*models.Week, 0)
	for rows.Next() {
		w := &models.Week{}
		if err := rows.Scan(&w.ID, &w.Year, &w.Number, &w.Notes, &w.UpdatedAt, &w.ItemCount); err != nil {
			return nil, fmt.Errorf("scan week: %w", err)
		}
		weeks = append(weeks, w)
	}
	return weeks, rows.Err()
}

// SaveNotes replaces a week's notes, creating the week if needed.
func (ds *DuckStore) SaveNotes(ctx context.Context, id, notes string) (*models.Week, error) {
	if _, err := ds.EnsureWeek(ctx, id); err != nil {
		return nil, err
	}
	_, err := ds.db.ExecContext(ctx,
		`UPDATE weeks SET notes = ?, updated_at = ? WHERE id = ?`, notes, time.Now(), id)
	if err != nil {
		return nil, fmt.Errorf("save notes %s: %w", id, err)
	}
	return ds.getWeekRow(ctx, id)
}

// CreateItem inserts an item, assigning an id and creation time when unset.
// The item's week is created if it does not exist.
func (ds *DuckStore) CreateItem(ctx context.Context, item *models.Item) error {
	if _, err := ds.EnsureWeek(ctx, item.WeekID); err != nil {
		return err
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	if item.Tags == nil {
		item.Tags = []string{}
	}
	if item.Colors == nil {
		item.Colors = []string{}
	}
	tags, err := encodeList(item.Tags)
	if err != nil {
		return err
	}
	colors, err := encodeList(item.Colors)
	if err != nil {
		return err
	}

	_, err = ds.db.ExecContext(ctx, `
		INSERT INTO items (id, week_id, media_id, kind, name, mime_type, x, y, width, height, tags, colors, language, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.WeekID, item.MediaID, string(item.Kind), item.Name, item.MimeType,
		item.X, item.Y, nullInt(item.Width), nullInt(item.Height),
		tags, colors, item.Language, item.CreatedAt)
	if err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	ds.touchWeek(ctx, item.WeekID)
	return nil
}

const itemColumns = `id, week_id, media_id, kind, name, mime_type, x, y, width, height, tags, colors, language, created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		it            models.Item
		kind          string
		width, height sql.NullInt64
		tags, colors  string
	)
	err := row.Scan(&it.ID, &it.WeekID, &it.MediaID, &kind, &it.Name, &it.MimeType,
		&it.X, &it.Y, &width, &height, &tags, &colors, &it.Language, &it.CreatedAt)
	if err != nil {
		return nil, err
	}
	it.Kind = models.ItemKind(kind)
	if width.Valid {
		w := int(width.Int64)
		it.Width = &w
	}
	if height.Valid {
		h := int(height.Int64)
		it.Height = &h
	}
	if it.Tags, err = decodeList(tags); err != nil {
		return nil, err
	}
	if it.Colors, err = decodeList(colors); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetItem returns one item.
func (ds *DuckStore) GetItem(ctx context.Context, id string) (*models.Item, error) {
	row := ds.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return it, nil
}

// ListItems returns a week's items in creation order.
func (ds *DuckStore) ListItems(ctx context.Context, weekID string) ([]*models.Item, error) {
	rows, err := ds.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE week_id = ? ORDER BY created_at, id`, weekID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := make([]*models.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateGeometry stores a committed position. A nil width or height keeps
// the stored value.
func (ds *DuckStore) UpdateGeometry(ctx context.Context, id string, g models.Geometry) error {
	res, err := ds.db.ExecContext(ctx,
		`UPDATE items SET x = ?, y = ?, width = COALESCE(?, width), height = COALESCE(?, height) WHERE id = ?`,
		g.X, g.Y, nullInt(g.Width), nullInt(g.Height), id)
	if err != nil {
		return fmt.Errorf("update geometry %s: %w", id, err)
	}
	return expectOne(res, "item", id)
}

// SetTags replaces an item's tags.
func (ds *DuckStore) SetTags(ctx context.Context, id string, tags []string) error {
	return ds.setList(ctx, "tags", id, tags)
}

// SetColors replaces an item's palette.
func (ds *DuckStore) SetColors(ctx context.Context, id string, colors []string) error {
	return ds.setList(ctx, "colors", id, colors)
}

// setList writes a JSON list column; column is always a literal from this file.
func (ds *DuckStore) setList(ctx context.Context, column, id string, values []string) error {
	if values == nil {
		values = []string{}
	}
	encoded, err := encodeList(values)
	if err != nil {
		return err
	}
	res, err := ds.db.ExecContext(ctx, `UPDATE items SET `+column+` = ? WHERE id = ?`, encoded, id)
	if err != nil {
		return fmt.Errorf("set %s %s: %w", column, id, err)
	}
	return expectOne(res, "item", id)
}

// DeleteItem removes an item and returns what was removed.
func (ds *DuckStore) DeleteItem(ctx context.Context, id string) (*models.Item, error) {
	it, err := ds.GetItem(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := ds.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete item %s: %w", id, err)
	}
	ds.touchWeek(ctx, it.WeekID)
	return it, nil
}

func (ds *DuckStore) touchWeek(ctx context.Context, weekID string) {
	if _, err := ds.db.ExecContext(ctx, `UPDATE weeks SET updated_at = ? WHERE id = ?`, time.Now(), weekID); err != nil {
		ds.log.Warn().Err(err).Str("week", weekID).Msg("touch week failed")
	}
}

func expectOne(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s %s: %w", kind, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func nullInt(p *int) interface{} {
	if p == nil {
		return nil
	}
	return int64(*p)
}

func encodeList(values []string) (string, error) {
	b, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode list: %w", err)
	}
	return string(b), nil
}

func decodeList(s string) ([]string, error) {
	out := []string{}
	if s == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("decode list: %w", err)
	}
	return out, nil
}
