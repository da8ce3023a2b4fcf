package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hydromet/datanode/internal/selector"
	"github.com/jackc/pgx/v5"
)

// Lookup failures of the upload path. Handlers map these onto the process
// error codes.
var (
	ErrPointNotFound    = errors.New("monitoring point not found")
	ErrPropertyNotFound = errors.New("observed property not found")
)

// MonitoringPoint is one stored monitoring point as needed by the upload
// path.
type MonitoringPoint struct {
	ID         int
	ExternalID string
	OperatorID int
	Active     bool
}

func tables(t selector.PointType) (points, properties, series, results string, err error) {
	switch t {
	case selector.Hydro:
		return "hydro_monitoring_point", "hydro_observed_property", "hydro_time_series", "hydro_result", nil
	case selector.Meteo:
		return "meteo_monitoring_point", "meteo_observed_property", "meteo_time_series", "meteo_result", nil
	default:
		return "", "", "", "", fmt.Errorf("%w: %q", selector.ErrInvalidPointType, t)
	}
}

// PointByExternalID finds a monitoring point by the external identifier used
// in upload documents.
func (db *Manager) PointByExternalID(ctx context.Context, t selector.PointType, externalID string) (MonitoringPoint, error) {
	pointsTable, _, _, _, err := tables(t)
	if err != nil {
		return MonitoringPoint{}, err
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	point := MonitoringPoint{ExternalID: externalID}
	err = db.dbpool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id, COALESCE(operator_id, 0), is_active FROM %s WHERE external_id = $1`, pointsTable),
		externalID,
	).Scan(&point.ID, &point.OperatorID, &point.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return MonitoringPoint{}, fmt.Errorf("%w: %s", ErrPointNotFound, externalID)
	}
	if err != nil {
		return MonitoringPoint{}, fmt.Errorf("failed to query monitoring point %q: %w", externalID, err)
	}
	return point, nil
}

// PropertyIDBySymbol finds an observed property by its internal symbol.
func (db *Manager) PropertyIDBySymbol(ctx context.Context, t selector.PointType, symbol string) (int, error) {
	_, propertiesTable, _, _, err := tables(t)
	if err != nil {
		return 0, err
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var id int
	err = db.dbpool.QueryRow(ctx,
		fmt.Sprintf(`SELECT id FROM %s WHERE symbol = $1`, propertiesTable),
		symbol,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrPropertyNotFound, symbol)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query observed property %q: %w", symbol, err)
	}
	return id, nil
}

// EnsureTimeSeries initializes or refreshes the time series of a
// point/property pair and returns its id. The phenomenon interval is
// stretched to include the observation time.
func (db *Manager) EnsureTimeSeries(ctx context.Context, t selector.PointType, pointID, propertyID int, at time.Time) (int, error) {
	_, _, seriesTable, _, err := tables(t)
	if err != nil {
		return 0, err
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var seriesID int
	err = db.dbpool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (monitoring_point_id, observed_property_id, phenomenon_start, phenomenon_end, result_time)
		 VALUES ($1, $2, $3, $3, now())
		 ON CONFLICT (monitoring_point_id, observed_property_id) DO UPDATE SET
		   phenomenon_start = LEAST(%s.phenomenon_start, EXCLUDED.phenomenon_start),
		   phenomenon_end = GREATEST(%s.phenomenon_end, EXCLUDED.phenomenon_end),
		   result_time = now()
		 RETURNING id`, seriesTable, seriesTable, seriesTable),
		pointID, propertyID, at,
	).Scan(&seriesID)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize time series for point %d property %d: %w", pointID, propertyID, err)
	}
	return seriesID, nil
}

// UpsertObservation stores one time-series point, overwriting the value of
// an already-known timestamp. It reports whether a new row was created.
func (db *Manager) UpsertObservation(ctx context.Context, t selector.PointType, seriesID int, at time.Time, value float64) (created bool, err error) {
	_, _, _, resultsTable, err := tables(t)
	if err != nil {
		return false, err
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	// xmax = 0 only holds for freshly inserted rows.
	err = db.dbpool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (time_series_id, time, value) VALUES ($1, $2, $3)
		 ON CONFLICT (time_series_id, time) DO UPDATE SET value = EXCLUDED.value
		 RETURNING (xmax = 0)`, resultsTable),
		seriesID, at, value,
	).Scan(&created)
	if err != nil {
		return false, fmt.Errorf("failed to store observation for series %d: %w", seriesID, err)
	}
	return created, nil
}
