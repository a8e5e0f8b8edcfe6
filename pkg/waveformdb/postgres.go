package waveformdb

import (
	"context"
	"database/sql"
	"time"

	"github.com/NotCoffee418/waveform_explorer/pkg/waveform"
	"github.com/lib/pq"
)

// PostgresSource reads the waveform table of the clinical store.
// values_array is a DOUBLE PRECISION[] column.
type PostgresSource struct {
	db *sql.DB
}

var _ waveform.DataSource = (*PostgresSource)(nil)

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (p *PostgresSource) QueryBatches(ctx context.Context, key waveform.StreamKey, from, to time.Time) ([]waveform.Batch, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT waveform_id, observation_datetime, sampling_rate, COALESCE(unit, ''),
		       values_array, location_visit_id
		FROM waveform
		WHERE visit_observation_type_id = $1 AND source_location = $2
		  AND observation_datetime >= $3
		  AND observation_datetime <= $4
		ORDER BY observation_datetime
	`, key.ObservationTypeID, key.SourceLocation, from, to)
	if err != nil {
		return nil, waveform.WrapSourceError("query batches", err)
	}
	defer rows.Close()

	var batches []waveform.Batch
	for rows.Next() {
		b := waveform.Batch{Key: key}
		var values pq.Float64Array
		var visit sql.NullInt64
		if err := rows.Scan(&b.ID, &b.StartTime, &b.SamplingRate, &b.Unit, &values, &visit); err != nil {
			return nil, waveform.WrapSourceError("query batches", err)
		}
		b.Values = values
		b.LocationVisitID = nullableID(visit)
		batches = append(batches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, waveform.WrapSourceError("query batches", err)
	}
	return batches, nil
}

func (p *PostgresSource) QueryMinMaxTime(ctx context.Context, key waveform.StreamKey) (*waveform.TimeBounds, error) {
	var minTime, maxTime sql.NullTime
	err := p.db.QueryRowContext(ctx, `
		SELECT min(observation_datetime) AS min_time, max(observation_datetime) AS max_time
		FROM waveform
		WHERE visit_observation_type_id = $1 AND source_location = $2
	`, key.ObservationTypeID, key.SourceLocation).Scan(&minTime, &maxTime)
	if err != nil {
		return nil, waveform.WrapSourceError("query min max time", err)
	}
	if !minTime.Valid || !maxTime.Valid {
		return nil, nil
	}
	return &waveform.TimeBounds{Min: minTime.Time, Max: maxTime.Time}, nil
}

func (p *PostgresSource) QueryDistinctStreams(ctx context.Context) ([]waveform.StreamDescriptor, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT w.visit_observation_type_id, w.source_location,
		       COALESCE(vot.name, ''), COALESCE(w.unit, '')
		FROM waveform w
		LEFT JOIN visit_observation_type vot
		       ON vot.visit_observation_type_id = w.visit_observation_type_id
		ORDER BY w.source_location, w.visit_observation_type_id
	`)
	if err != nil {
		return nil, waveform.WrapSourceError("query distinct streams", err)
	}
	defer rows.Close()
	return scanDescriptors(rows)
}

func scanDescriptors(rows *sql.Rows) ([]waveform.StreamDescriptor, error) {
	var out []waveform.StreamDescriptor
	for rows.Next() {
		var d waveform.StreamDescriptor
		if err := rows.Scan(&d.Key.ObservationTypeID, &d.Key.SourceLocation, &d.DisplayName, &d.Unit); err != nil {
			return nil, waveform.WrapSourceError("query distinct streams", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, waveform.WrapSourceError("query distinct streams", err)
	}
	return out, nil
}

func nullableID(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
