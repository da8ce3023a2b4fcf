package database

import (
	"context"
	"fmt"

	"github.com/hydromet/datanode/internal/selector"
)

// AggregateIDs expands a wildcard selector: the comma-joined id list of the
// requested kind owned by the operator, scoped to the point type. Implements
// selector.Store.
func (db *Manager) AggregateIDs(ctx context.Context, kind selector.Kind, t selector.PointType, operatorID int) (string, error) {
	pointsTable, _, seriesTable, _, err := tables(t)
	if err != nil {
		return "", err
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	var query string
	switch kind {
	case selector.KindMonitoringPoint:
		query = fmt.Sprintf(
			`SELECT COALESCE(string_agg(id::text, ','), '') FROM %s WHERE operator_id = $1`,
			pointsTable)
	case selector.KindObservedProperty:
		query = fmt.Sprintf(
			`SELECT COALESCE(string_agg(DISTINCT ts.observed_property_id::text, ','), '')
			 FROM %s ts JOIN %s mp ON mp.id = ts.monitoring_point_id
			 WHERE mp.operator_id = $1`,
			seriesTable, pointsTable)
	default:
		return "", fmt.Errorf("unknown selector kind %d", kind)
	}

	var aggregated string
	if err := db.dbpool.QueryRow(ctx, query, operatorID).Scan(&aggregated); err != nil {
		return "", fmt.Errorf("failed to aggregate ids for operator %d: %w", operatorID, err)
	}
	return aggregated, nil
}

// PropertyIDsForPoints returns the ids of every observed property measured
// at any of the given monitoring points. Implements selector.Store.
func (db *Manager) PropertyIDsForPoints(ctx context.Context, t selector.PointType, pointIDs []int) ([]int, error) {
	_, _, seriesTable, _, err := tables(t)
	if err != nil {
		return nil, err
	}
	if len(pointIDs) == 0 {
		return nil, nil
	}

	ctx, cancel := db.withTimeout(ctx)
	defer cancel()

	rows, err := db.dbpool.Query(ctx,
		fmt.Sprintf(`SELECT DISTINCT observed_property_id FROM %s WHERE monitoring_point_id = ANY($1)`, seriesTable),
		pointIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query properties for points: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan property id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read property ids: %w", err)
	}
	return ids, nil
}
