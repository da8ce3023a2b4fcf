package selector

import (
	"context"
	"errors"
	"fmt"
)

// Wildcard is the selector literal granting access to every id owned by the
// rule owner's operator.
const Wildcard = "*"

// PointType distinguishes the hydrological and meteorological id spaces.
type PointType string

// Supported point types.
const (
	Hydro PointType = "hydro"
	Meteo PointType = "meteo"
)

// ParsePointType validates a request-supplied point type.
func ParsePointType(raw string) (PointType, error) {
	switch PointType(raw) {
	case Hydro:
		return Hydro, nil
	case Meteo:
		return Meteo, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPointType, raw)
	}
}

// Kind selects which id space a wildcard expands over.
type Kind int

// Id spaces subject to wildcard expansion.
const (
	KindMonitoringPoint Kind = iota
	KindObservedProperty
)

var (
	// ErrMissingOperatorID is returned when a wildcard is resolved without a
	// known rule-owner operator.
	ErrMissingOperatorID = errors.New("cannot resolve wildcard selector without an operator id")

	// ErrInvalidPointType is returned for a point type outside hydro/meteo.
	ErrInvalidPointType = errors.New("invalid point type")
)

// Store answers the expansion queries of the resolution engine. A query
// error must propagate so an empty result set stays distinguishable from a
// failed resolution.
type Store interface {
	// AggregateIDs returns the comma-joined id list of the given kind owned
	// by the operator, scoped to the point type.
	AggregateIDs(ctx context.Context, kind Kind, t PointType, operatorID int) (string, error)

	// PropertyIDsForPoints returns the ids of every observed property
	// measured at any of the given monitoring points.
	PropertyIDsForPoints(ctx context.Context, t PointType, pointIDs []int) ([]int, error)
}

// ResolvePoints expands a monitoring-point selector string into the concrete
// id set. A literal wildcard expands through the store, scoped to the
// operator and point type; anything else parses as a plain comma list.
func ResolvePoints(ctx context.Context, store Store, raw string, t PointType, operatorID int) (Selector[int], error) {
	return resolve(ctx, store, KindMonitoringPoint, raw, t, operatorID)
}

// ResolveProperties expands an observed-property selector string into the
// concrete id set, with the same wildcard semantics as ResolvePoints.
func ResolveProperties(ctx context.Context, store Store, raw string, t PointType, operatorID int) (Selector[int], error) {
	return resolve(ctx, store, KindObservedProperty, raw, t, operatorID)
}

// PropertiesForPoints derives the property set observed by a point set,
// backing access rules of the form "all properties observed by points X".
func PropertiesForPoints(ctx context.Context, store Store, t PointType, points Selector[int]) (Selector[int], error) {
	if _, err := ParsePointType(string(t)); err != nil {
		return Selector[int]{}, err
	}

	ids, err := store.PropertyIDsForPoints(ctx, t, points.Values())
	if err != nil {
		return Selector[int]{}, fmt.Errorf("failed to resolve properties for points: %w", err)
	}
	return New(ids...), nil
}

func resolve(ctx context.Context, store Store, kind Kind, raw string, t PointType, operatorID int) (Selector[int], error) {
	if raw != Wildcard {
		return Ints(raw), nil
	}

	if operatorID <= 0 {
		return Selector[int]{}, ErrMissingOperatorID
	}
	if _, err := ParsePointType(string(t)); err != nil {
		return Selector[int]{}, err
	}

	aggregated, err := store.AggregateIDs(ctx, kind, t, operatorID)
	if err != nil {
		return Selector[int]{}, fmt.Errorf("failed to expand wildcard selector: %w", err)
	}
	return Ints(aggregated), nil
}
