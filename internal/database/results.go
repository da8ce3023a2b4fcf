package database

import (
	"context"
	"fmt"
	"time"

	"github.com/hydromet/datanode/internal/selector"
	"github.com/hydromet/datanode/internal/waterml"
)

// AccessScope is one resolved access grant: the concrete point and property
// id sets a single rule allows.
type AccessScope struct {
	PointIDs    []int
	PropertyIDs []int
}

// ResultsQuery describes one download request after filter parsing and
// selector resolution.
type ResultsQuery struct {
	Type   selector.PointType
	Scopes []AccessScope

	Start *time.Time
	End   *time.Time

	Countries []string
	Symbols   []string
}

// Results runs the download query and groups the rows into one series per
// point/property combination, ordered as returned by the database.
func (db *Manager) Results(ctx context.Context, q ResultsQuery) ([]waterml.Series, error) {
	pointsTable, propertiesTable, seriesTable, resultsTable, err := tables(q.Type)
	if err != nil {
		return nil, err
	}

	where, args := RenderCond(buildCond(q))
	query := fmt.Sprintf(
		`SELECT mp.external_id, mp.name, COALESCE(mp.country, ''), mp.latitude, mp.longitude, COALESCE(mp.utc_offset, 0),
		        op.symbol, ts.phenomenon_start, ts.phenomenon_end, ts.result_time, r.time, r.value
		 FROM %s r
		 JOIN %s ts ON ts.id = r.time_series_id
		 JOIN %s mp ON mp.id = ts.monitoring_point_id
		 JOIN %s op ON op.id = ts.observed_property_id
		 WHERE %s
		 ORDER BY mp.external_id, op.symbol, r.time`,
		resultsTable, seriesTable, pointsTable, propertiesTable, where)

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.dbpool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observation results: %w", err)
	}
	defer rows.Close()

	var series []waterml.Series
	var current *waterml.Series
	for rows.Next() {
		var s waterml.Series
		var tv waterml.TimeValue
		if err := rows.Scan(
			&s.Point.ExternalID, &s.Point.Name, &s.Point.Country,
			&s.Point.Latitude, &s.Point.Longitude, &s.Point.UTCOffset,
			&s.PropertySymbol, &s.PhenomenonStart, &s.PhenomenonEnd, &s.ResultTime,
			&tv.Time, &tv.Value,
		); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}

		if current == nil || current.Point.ExternalID != s.Point.ExternalID || current.PropertySymbol != s.PropertySymbol {
			series = append(series, s)
			current = &series[len(series)-1]
		}
		current.Values = append(current.Values, tv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read result rows: %w", err)
	}
	return series, nil
}

// buildCond assembles the WHERE tree: the union of the resolved access
// scopes, intersected with the request-level filters.
func buildCond(q ResultsQuery) Cond {
	var scopes Or
	for _, scope := range q.Scopes {
		scopes = append(scopes, And{
			Pred("mp.id = ANY(?)", scope.PointIDs),
			Pred("op.id = ANY(?)", scope.PropertyIDs),
		})
	}

	cond := And{scopes}
	if q.Start != nil {
		cond = append(cond, Pred("r.time >= ?", *q.Start))
	}
	if q.End != nil {
		cond = append(cond, Pred("r.time <= ?", *q.End))
	}
	if len(q.Countries) > 0 {
		cond = append(cond, Pred("mp.country = ANY(?)", q.Countries))
	}
	if len(q.Symbols) > 0 {
		cond = append(cond, Pred("op.symbol = ANY(?)", q.Symbols))
	}
	return cond
}
