package waveformdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/goccy/go-json"
)

// SQLiteSource serves a local copy of the waveform table.
// Times are stored as unix nanoseconds and values as JSON arrays.
type SQLiteSource struct {
	db *sql.DB
}

var _ waveform.DataSource = (*SQLiteSource)(nil)

func NewSQLiteSource(db *sql.DB) *SQLiteSource {
	return &SQLiteSource{db: db}
}

func (s *SQLiteSource) QueryBatches(ctx context.Context, key waveform.StreamKey, from, to time.Time) ([]waveform.Batch, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT waveform_id, observation_datetime, sampling_rate, unit, values_array, location_visit_id "+
			"FROM waveform "+
			"WHERE visit_observation_type_id = ? AND source_location = ? "+
			"AND observation_datetime >= ? AND observation_datetime <= ? "+
			"ORDER BY observation_datetime",
		key.ObservationTypeID, key.SourceLocation, from.UnixNano(), to.UnixNano(),
	)
	if err != nil {
		return nil, waveform.WrapSourceError("query batches", err)
	}
	defer rows.Close()

	var batches []waveform.Batch
	for rows.Next() {
		b := waveform.Batch{Key: key}
		var startNanos int64
		var values string
		var visit sql.NullInt64
		if err := rows.Scan(&b.ID, &startNanos, &b.SamplingRate, &b.Unit, &values, &visit); err != nil {
			return nil, waveform.WrapSourceError("query batches", err)
		}
		if err := json.Unmarshal([]byte(values), &b.Values); err != nil {
			return nil, waveform.WrapSourceError("query batches", fmt.Errorf("batch %d values: %w", b.ID, err))
		}
		b.StartTime = time.Unix(0, startNanos).UTC()
		b.LocationVisitID = nullableID(visit)
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, waveform.WrapSourceError("query batches", err)
	}
	return batches, nil
}

func (s *SQLiteSource) QueryMinMaxTime(ctx context.Context, key waveform.StreamKey) (*waveform.TimeBounds, error) {
	var minNanos, maxNanos sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(observation_datetime), MAX(observation_datetime) "+
			"FROM waveform WHERE visit_observation_type_id = ? AND source_location = ?",
		key.ObservationTypeID, key.SourceLocation,
	).Scan(&minNanos, &maxNanos)
	if err != nil {
		return nil, waveform.WrapSourceError("query min max time", err)
	}
	if !minNanos.Valid || !maxNanos.Valid {
		return nil, nil
	}
	return &waveform.TimeBounds{
		Min: time.Unix(0, minNanos.Int64).UTC(),
		Max: time.Unix(0, maxNanos.Int64).UTC(),
	}, nil
}

func (s *SQLiteSource) QueryDistinctStreams(ctx context.Context) ([]waveform.StreamDescriptor, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT w.visit_observation_type_id, w.source_location, COALESCE(vot.name, ''), w.unit "+
			"FROM waveform w "+
			"LEFT JOIN visit_observation_type vot ON vot.visit_observation_type_id = w.visit_observation_type_id "+
			"ORDER BY w.source_location, w.visit_observation_type_id",
	)
	if err != nil {
		return nil, waveform.WrapSourceError("query distinct streams", err)
	}
	defer rows.Close()
	return scanDescriptors(rows)
}

// InsertObservationType adds or renames an observation type.
func (s *SQLiteSource) InsertObservationType(ctx context.Context, id int64, name string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO visit_observation_type (visit_observation_type_id, name) VALUES (?, ?)",
		id, name,
	)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertBatch stores a batch and returns its new id. The batch's own ID is ignored.
func (s *SQLiteSource) InsertBatch(ctx context.Context, b *waveform.Batch) (int64, error) {
	return insertBatch(ctx, s.db, b)
}

// ReplaceStream swaps every stored batch of key for batches in one transaction,
// so copying the same stream again leaves a single copy.
func (s *SQLiteSource) ReplaceStream(ctx context.Context, key waveform.StreamKey, batches []waveform.Batch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM waveform WHERE visit_observation_type_id = ? AND source_location = ?",
		key.ObservationTypeID, key.SourceLocation,
	); err != nil {
		return err
	}
	for i := range batches {
		if _, err := insertBatch(ctx, tx, &batches[i]); err != nil {
			return fmt.Errorf("batch %d: %w", batches[i].ID, err)
		}
	}
	return tx.Commit()
}

func insertBatch(ctx context.Context, db execer, b *waveform.Batch) (int64, error) {
	values, err := json.Marshal(b.Values)
	if err != nil {
		return 0, err
	}
	var visit sql.NullInt64
	if b.LocationVisitID != nil {
		visit = sql.NullInt64{Int64: *b.LocationVisitID, Valid: true}
	}
	res, err := db.ExecContext(ctx,
		"INSERT INTO waveform "+
			"(visit_observation_type_id, source_location, observation_datetime, sampling_rate, unit, values_array, location_visit_id) "+
			"VALUES (?, ?, ?, ?, ?, ?, ?)",
		b.Key.ObservationTypeID,
		b.Key.SourceLocation,
		b.StartTime.UnixNano(),
		b.SamplingRate,
		b.Unit,
		string(values),
		visit,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
