package handlers_test

import (
	"context"
	"time"

	"github.com/hydromet/datanode/internal/auth"
	"github.com/hydromet/datanode/internal/config"
	"github.com/hydromet/datanode/internal/database"
	"github.com/hydromet/datanode/internal/formats"
	"github.com/hydromet/datanode/internal/selector"
	"github.com/hydromet/datanode/internal/waterml"
	"github.com/hydromet/datanode/internal/xmlresolver"
)

// upsertCall records one persisted observation.
type upsertCall struct {
	seriesID int
	at       time.Time
	value    float64
}

// fakeStore is an in-memory handlers.Store.
type fakeStore struct {
	identities  map[string]*auth.Identity
	identityErr error

	points        map[string]database.MonitoringPoint
	pointErr      error
	properties    map[string]int
	nextSeriesID  int
	seriesErr     error
	upsertCreated bool
	upsertErr     error

	upserts []upsertCall

	aggregates  map[selector.Kind]map[int]string
	pointProps  []int
	selectorErr error

	results    []waterml.Series
	resultsErr error
	lastQuery  *database.ResultsQuery
}

func (f *fakeStore) IdentityByUsername(ctx context.Context, username string) (*auth.Identity, error) {
	if f.identityErr != nil {
		return nil, f.identityErr
	}
	id, ok := f.identities[username]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return id, nil
}

func (f *fakeStore) PointByExternalID(ctx context.Context, t selector.PointType, externalID string) (database.MonitoringPoint, error) {
	if f.pointErr != nil {
		return database.MonitoringPoint{}, f.pointErr
	}
	point, ok := f.points[externalID]
	if !ok {
		return database.MonitoringPoint{}, database.ErrPointNotFound
	}
	return point, nil
}

func (f *fakeStore) PropertyIDBySymbol(ctx context.Context, t selector.PointType, symbol string) (int, error) {
	id, ok := f.properties[symbol]
	if !ok {
		return 0, database.ErrPropertyNotFound
	}
	return id, nil
}

func (f *fakeStore) EnsureTimeSeries(ctx context.Context, t selector.PointType, pointID, propertyID int, at time.Time) (int, error) {
	if f.seriesErr != nil {
		return 0, f.seriesErr
	}
	f.nextSeriesID++
	return f.nextSeriesID, nil
}

func (f *fakeStore) UpsertObservation(ctx context.Context, t selector.PointType, seriesID int, at time.Time, value float64) (bool, error) {
	if f.upsertErr != nil {
		return false, f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{seriesID: seriesID, at: at, value: value})
	return f.upsertCreated, nil
}

func (f *fakeStore) Results(ctx context.Context, q database.ResultsQuery) ([]waterml.Series, error) {
	f.lastQuery = &q
	if f.resultsErr != nil {
		return nil, f.resultsErr
	}
	return f.results, nil
}

func (f *fakeStore) AggregateIDs(ctx context.Context, kind selector.Kind, t selector.PointType, operatorID int) (string, error) {
	if f.selectorErr != nil {
		return "", f.selectorErr
	}
	return f.aggregates[kind][operatorID], nil
}

func (f *fakeStore) PropertyIDsForPoints(ctx context.Context, t selector.PointType, pointIDs []int) ([]int, error) {
	if f.selectorErr != nil {
		return nil, f.selectorErr
	}
	return f.pointProps, nil
}

// fakeConfig is a static handlers.ConfigProvider.
type fakeConfig struct {
	formats map[string]config.FormatDefinition
	symbols xmlresolver.SymbolMappings
}

func (f *fakeConfig) Format(name string) (config.FormatDefinition, bool) {
	def, ok := f.formats[name]
	return def, ok
}

func (f *fakeConfig) SymbolMappings() xmlresolver.SymbolMappings {
	return f.symbols
}

func loggerFormat() config.FormatDefinition {
	cfg, err := formats.NewConfig([]map[string]any{
		{"Parameter": "MonitoringPoint", "TagHierarchy": []string{"data", "row", "station"}},
		{"Parameter": "ObservedPropertySymbol", "TagHierarchy": []string{"data", "row", "sensor"}, "Variable": "OBS"},
		{"Parameter": "ObservedPropertyValue", "TagHierarchy": []string{"data", "row", "value"}, "ValueConversion": "/10"},
		{"Parameter": "Date", "TagHierarchy": []string{"data", "row", "time"}},
	})
	if err != nil {
		panic(err)
	}
	return config.FormatDefinition{Anchor: []string{"data", "row"}, Parameters: cfg}
}

func newFakeConfig() *fakeConfig {
	return &fakeConfig{
		formats: map[string]config.FormatDefinition{"logger-xml": loggerFormat()},
		symbols: xmlresolver.SymbolMappings{"h": {"OBS": "WL"}},
	}
}
