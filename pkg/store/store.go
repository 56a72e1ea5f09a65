// Package store keeps server ROI collections in SQLite. It stands in for
// the image server: FetchROIs backs lazy trees and SaveROIs persists
// reassembled collections.
//
// Uses modernc.org/sqlite (pure Go, no CGO).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/menta2k/roi-bridge/pkg/geom"
	"github.com/menta2k/roi-bridge/pkg/legacy"
	"github.com/menta2k/roi-bridge/pkg/maskio"
	"github.com/menta2k/roi-bridge/pkg/omero"
)

// Store manages ROI collections per image.
type Store struct {
	db         *sql.DB
	dbPath     string
	masks      *maskio.Processor
	maskFormat string
	logger     *slog.Logger
	mu         sync.RWMutex
}

// Open opens or creates the database at dbPath. Mask pixels are stored in
// maskFormat (png or webp).
func Open(dbPath, maskFormat string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if maskFormat == "" {
		maskFormat = maskio.FormatWebP
	}

	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath, masks: maskio.NewProcessor(), maskFormat: maskFormat, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rois (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		image_id INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_rois_image ON rois(image_id);

	CREATE TABLE IF NOT EXISTS shapes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		roi_id INTEGER NOT NULL REFERENCES rois(id) ON DELETE CASCADE,
		ord INTEGER NOT NULL,
		kind TEXT NOT NULL,
		geometry TEXT NOT NULL,
		the_z INTEGER,
		the_t INTEGER,
		the_c INTEGER,
		stroke TEXT DEFAULT '',
		fill TEXT DEFAULT '',
		stroke_width REAL,
		stroke_unit TEXT DEFAULT '',
		font_family TEXT DEFAULT '',
		font_size REAL,
		font_style TEXT DEFAULT '',
		text TEXT DEFAULT '',
		mask BLOB
	);

	CREATE INDEX IF NOT EXISTS idx_shapes_roi ON shapes(roi_id, ord);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	s.logger.Debug("store schema ready", "path", s.dbPath)
	return nil
}

// Images returns the IDs of images that have ROIs.
func (s *Store) Images(ctx context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT image_id FROM rois ORDER BY image_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FetchROIs returns the collections of imageID with their shapes, in
// storage order.
func (s *Store) FetchROIs(ctx context.Context, imageID int64) ([]*omero.ROIData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, s.id, s.geometry, s.the_z, s.the_t, s.the_c, s.stroke, s.fill,
		       s.stroke_width, s.stroke_unit, s.font_family, s.font_size, s.font_style, s.text, s.mask
		FROM rois r LEFT JOIN shapes s ON s.roi_id = r.id
		WHERE r.image_id = ?
		ORDER BY r.id, s.ord`, imageID)
	if err != nil {
		return nil, fmt.Errorf("failed to query ROIs: %w", err)
	}
	defer rows.Close()

	var out []*omero.ROIData
	var current *omero.ROIData
	for rows.Next() {
		var roiID int64
		var row shapeRow
		if err := rows.Scan(&roiID, &row.id, &row.geometry, &row.z, &row.t, &row.c, &row.stroke, &row.fill,
			&row.strokeWidth, &row.strokeUnit, &row.fontFamily, &row.fontSize, &row.fontStyle, &row.text, &row.mask); err != nil {
			return nil, err
		}
		if current == nil || current.ID != roiID {
			current = omero.NewROIData(roiID)
			current.ImageID = imageID
			out = append(out, current)
		}
		if !row.id.Valid {
			continue
		}
		shape, err := s.decodeShape(row)
		if err != nil {
			return nil, fmt.Errorf("failed to decode shape %d: %w", row.id.Int64, err)
		}
		current.AddShape(shape)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	s.logger.Debug("ROIs fetched", "image_id", imageID, "collections", len(out))
	return out, nil
}

type shapeRow struct {
	id          sql.NullInt64
	geometry    sql.NullString
	z, t, c     sql.NullInt64
	stroke      sql.NullString
	fill        sql.NullString
	strokeWidth sql.NullFloat64
	strokeUnit  sql.NullString
	fontFamily  sql.NullString
	fontSize    sql.NullFloat64
	fontStyle   sql.NullString
	text        sql.NullString
	mask        []byte
}

func (s *Store) decodeShape(row shapeRow) (*omero.ShapeData, error) {
	var pix *image.Alpha
	if len(row.mask) > 0 {
		var err error
		if pix, err = s.masks.DecodeMask(row.mask); err != nil {
			return nil, err
		}
	}
	g, err := geom.Unmarshal([]byte(row.geometry.String), pix)
	if err != nil {
		return nil, err
	}

	shape := omero.NewShapeData(g)
	shape.ID = row.id.Int64
	shape.Z = nullIndex(row.z)
	shape.T = nullIndex(row.t)
	shape.C = nullIndex(row.c)
	if shape.Settings.Stroke, err = legacy.ParseColor(row.stroke.String); err != nil {
		return nil, err
	}
	if shape.Settings.Fill, err = legacy.ParseColor(row.fill.String); err != nil {
		return nil, err
	}
	if row.strokeWidth.Valid {
		shape.Settings.StrokeWidth = omero.NewLength(row.strokeWidth.Float64, omero.Unit(row.strokeUnit.String))
	}
	shape.Settings.FontFamily = row.fontFamily.String
	if row.fontSize.Valid {
		shape.Settings.FontSize = omero.NewLength(row.fontSize.Float64, omero.Point)
	}
	shape.Settings.FontStyle = omero.FontStyle(row.fontStyle.String)
	shape.Text = row.text.String
	return shape, nil
}

// SaveROIs stores rois under imageID. Collections and shapes without an ID
// are inserted and receive one; the shape set of an existing collection is
// replaced.
func (s *Store) SaveROIs(ctx context.Context, imageID int64, rois []*omero.ROIData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	shapes := 0
	for _, rd := range rois {
		if rd.ID > 0 {
			if _, err := tx.ExecContext(ctx, `INSERT INTO rois (id, image_id) VALUES (?, ?)
				ON CONFLICT(id) DO UPDATE SET image_id = excluded.image_id`, rd.ID, imageID); err != nil {
				return fmt.Errorf("failed to store ROI %d: %w", rd.ID, err)
			}
			if _, err := tx.ExecContext(ctx, `DELETE FROM shapes WHERE roi_id = ?`, rd.ID); err != nil {
				return fmt.Errorf("failed to clear shapes of ROI %d: %w", rd.ID, err)
			}
		} else {
			result, err := tx.ExecContext(ctx, `INSERT INTO rois (image_id) VALUES (?)`, imageID)
			if err != nil {
				return fmt.Errorf("failed to insert ROI: %w", err)
			}
			if rd.ID, err = result.LastInsertId(); err != nil {
				return err
			}
		}
		rd.ImageID = imageID

		for ord, shape := range rd.Shapes() {
			if err := s.insertShape(ctx, tx, rd.ID, ord, shape); err != nil {
				return err
			}
			shapes++
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.logger.Info("ROIs saved", "image_id", imageID, "collections", len(rois), "shapes", shapes)
	return nil
}

func (s *Store) insertShape(ctx context.Context, tx *sql.Tx, roiID int64, ord int, shape *omero.ShapeData) error {
	if err := shape.Normalize(); err != nil {
		return err
	}
	kind, err := shape.Kind()
	if err != nil {
		return err
	}
	geometry, err := geom.Marshal(shape.Geometry)
	if err != nil {
		return err
	}
	var mask []byte
	if m, ok := geom.Resolve(shape.Geometry).(*geom.Mask); ok {
		if mask, err = s.masks.EncodeMask(m.Pix, s.maskFormat); err != nil {
			return err
		}
	}

	var id sql.NullInt64
	if shape.ID > 0 {
		id = sql.NullInt64{Int64: shape.ID, Valid: true}
	}
	var strokeWidth sql.NullFloat64
	var strokeUnit string
	if w := shape.Settings.StrokeWidth; w != nil {
		strokeWidth = sql.NullFloat64{Float64: w.Value, Valid: true}
		strokeUnit = string(w.Unit)
	}
	var fontSize sql.NullFloat64
	if fs := shape.Settings.FontSize; fs != nil {
		if v, err := fs.In(omero.Point); err == nil {
			fontSize = sql.NullFloat64{Float64: v, Valid: true}
		}
	}

	result, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO shapes
		(id, roi_id, ord, kind, geometry, the_z, the_t, the_c, stroke, fill, stroke_width, stroke_unit,
		 font_family, font_size, font_style, text, mask)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, roiID, ord, string(kind), string(geometry),
		nullInt(shape.Z), nullInt(shape.T), nullInt(shape.C),
		legacy.FormatColor(shape.Settings.Stroke), legacy.FormatColor(shape.Settings.Fill),
		strokeWidth, strokeUnit,
		shape.Settings.FontFamily, fontSize, string(shape.Settings.FontStyle), shape.Text, mask)
	if err != nil {
		return fmt.Errorf("failed to store shape: %w", err)
	}
	if shape.ID <= 0 {
		if shape.ID, err = result.LastInsertId(); err != nil {
			return err
		}
	}
	return nil
}

func nullIndex(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	return omero.Index(int(v.Int64))
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
