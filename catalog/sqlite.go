package catalog

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/s3kfm/lezhure-maps/cluster"
	"github.com/s3kfm/lezhure-maps/internal/monitoring"
)

// schema.sql defines the events table. Rows are read back ordered by
// position, which preserves the catalog order used for clustering.
//
//go:embed schema.sql
var schemaSQL string

const selectEventsSQL = `
SELECT id, latitude, longitude, start_time, title, description,
       location_name, distance_km, images_json, host_json, tags_json
FROM events
ORDER BY position, id`

const insertEventSQL = `
INSERT INTO events (id, position, latitude, longitude, start_time, title,
                    description, location_name, distance_km,
                    images_json, host_json, tags_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// LoadSQLite reads the events table of a SQLite database.
func LoadSQLite(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, selectEventsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []cluster.Event
	for rows.Next() {
		var (
			ev                             cluster.Event
			imagesJSON, hostJSON, tagsJSON string
		)
		if err := rows.Scan(&ev.ID, &ev.Latitude, &ev.Longitude, &ev.StartTime, &ev.Title,
			&ev.Description, &ev.LocationName, &ev.DistanceKm,
			&imagesJSON, &hostJSON, &tagsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if err := decodeColumns(&ev, imagesJSON, hostJSON, tagsJSON); err != nil {
			monitoring.Logf("catalog: skipping event %s: %v", ev.ID, err)
			continue
		}
		if len(ev.Images) == 0 {
			ev.Images = nil
		}
		if len(ev.Tags) == 0 {
			ev.Tags = nil
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	return New(events)
}

// decodeColumns fills the JSON-encoded columns of ev.
func decodeColumns(ev *cluster.Event, imagesJSON, hostJSON, tagsJSON string) error {
	if err := json.Unmarshal([]byte(imagesJSON), &ev.Images); err != nil {
		return fmt.Errorf("bad images_json: %w", err)
	}
	if err := json.Unmarshal([]byte(hostJSON), &ev.Host); err != nil {
		return fmt.Errorf("bad host_json: %w", err)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return fmt.Errorf("bad tags_json: %w", err)
	}
	return nil
}

// SaveSQLite replaces the events table of the database at path with the
// catalog contents.
func SaveSQLite(ctx context.Context, path string, c *Catalog) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events`); err != nil {
		return fmt.Errorf("failed to clear events: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, ev := range c.events {
		images, err := json.Marshal(orEmpty(ev.Images))
		if err != nil {
			return err
		}
		host, err := json.Marshal(ev.Host)
		if err != nil {
			return err
		}
		tags, err := json.Marshal(orEmpty(ev.Tags))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, ev.ID, i, ev.Latitude, ev.Longitude, ev.StartTime,
			ev.Title, ev.Description, ev.LocationName, ev.DistanceKm,
			string(images), string(host), string(tags)); err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}
	}

	return tx.Commit()
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
