package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/hydromet/datanode/internal/auth"
	"github.com/hydromet/datanode/internal/constants"
	"github.com/hydromet/datanode/internal/database"
	"github.com/hydromet/datanode/internal/protocol"
	"github.com/hydromet/datanode/internal/selector"
	"github.com/hydromet/datanode/internal/waterml"
)

// Download serves stored observations as a WaterML2-style document, scoped
// to the caller's resolved access rules.
type Download struct {
	store Store

	generationSystem string

	// nowFn is the clock used for the document generation date.
	nowFn func() time.Time
}

// NewDownload creates a new Download handler.
func NewDownload(store Store, generationSystem string) *Download {
	return &Download{
		store:            store,
		generationSystem: generationSystem,
		nowFn:            time.Now,
	}
}

// downloadFilters are the parsed request-level query filters.
type downloadFilters struct {
	pointType selector.PointType
	interval  waterml.Interval
	countries []string
	symbols   []string
}

// ServeHTTP runs the download state machine. The first failing state
// short-circuits to an error-XML response.
func (h *Download) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	slog.Info("Download request recv'd", "req_id", reqID)

	doc, err := h.process(r)
	if err != nil {
		logHandled(reqID, err)
		protocol.WriteError(w, err, r.RemoteAddr)
		return
	}

	slog.Info("Download processed", "req_id", reqID, "members", len(doc.Members))
	protocol.WriteXML(w, http.StatusOK, doc)
}

func (h *Download) process(r *http.Request) (waterml.Document, error) {
	ctx := r.Context()
	query := r.URL.Query()

	identity, creds, err := resolveIdentity(ctx, h.store, r)
	if err != nil {
		return waterml.Document{}, err
	}

	// A caller without a usable key is rejected before its authorization
	// state is considered.
	if len(identity.PublicKeyPEM) == 0 {
		return waterml.Document{}, protocol.NewErrorf(protocol.CodeNoPublicKey,
			"user %q has no usable public key", identity.Username)
	}

	if !identity.HasPermission(constants.DownloadPermission) {
		return waterml.Document{}, protocol.NewErrorf(protocol.CodePermissionDenied,
			"user %q is not allowed to download observations", identity.Username)
	}

	// The signed artifact of a download is the opaque token parameter.
	token := query.Get("token")
	if token == "" {
		return waterml.Document{}, protocol.NewError(protocol.CodeInvalidRequestType, "missing token parameter")
	}
	if err := verifySignature(identity, creds, []byte(token)); err != nil {
		return waterml.Document{}, err
	}

	filters, err := parseFilters(query)
	if err != nil {
		return waterml.Document{}, err
	}

	scopes, err := h.resolveScopes(ctx, identity, filters.pointType)
	if err != nil {
		return waterml.Document{}, err
	}

	series, err := h.store.Results(ctx, database.ResultsQuery{
		Type:      filters.pointType,
		Scopes:    scopes,
		Start:     filters.interval.Start,
		End:       filters.interval.End,
		Countries: filters.countries,
		Symbols:   filters.symbols,
	})
	if err != nil {
		return waterml.Document{}, protocol.NewErrorf(protocol.CodeDatabaseError, "results query failed: %v", err)
	}

	doc := waterml.Render(series, filters.interval, h.generationSystem, constants.Version, h.nowFn())
	return doc, nil
}

// parseFilters validates the request type and the optional time, country
// and symbol filters.
func parseFilters(query url.Values) (downloadFilters, error) {
	pointType, err := selector.ParsePointType(query.Get("type"))
	if err != nil {
		return downloadFilters{}, protocol.NewErrorf(protocol.CodeInvalidRequestType,
			"missing or invalid type parameter: %v", err)
	}

	filters := downloadFilters{
		pointType: pointType,
		countries: query["country"],
		symbols:   query["symbol"],
	}

	if raw := query.Get("start"); raw != "" {
		start, err := parseISODate(raw)
		if err != nil {
			return downloadFilters{}, protocol.NewErrorf(protocol.CodeInvalidDateFilter,
				"invalid start filter %q: %v", raw, err)
		}
		filters.interval.Start = &start
	}
	if raw := query.Get("end"); raw != "" {
		end, err := parseISODate(raw)
		if err != nil {
			return downloadFilters{}, protocol.NewErrorf(protocol.CodeInvalidDateFilter,
				"invalid end filter %q: %v", raw, err)
		}
		filters.interval.End = &end
	}

	return filters, nil
}

// parseISODate accepts an ISO-8601 timestamp or plain date.
func parseISODate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// resolveScopes expands the identity's access rules for the requested type
// into concrete id sets. A rule granting points but no properties covers
// every property observed by the granted points.
func (h *Download) resolveScopes(ctx context.Context, identity *auth.Identity, t selector.PointType) ([]database.AccessScope, error) {
	var scopes []database.AccessScope
	for _, rule := range identity.AccessRules {
		if rule.PointType != t {
			continue
		}

		points, err := selector.ResolvePoints(ctx, h.store, rule.PointSelector, t, rule.OperatorID)
		if err != nil {
			return nil, classifySelectorErr(err)
		}

		var properties selector.Selector[int]
		if rule.PropertySelector == "" {
			properties, err = selector.PropertiesForPoints(ctx, h.store, t, points)
		} else {
			properties, err = selector.ResolveProperties(ctx, h.store, rule.PropertySelector, t, rule.OperatorID)
		}
		if err != nil {
			return nil, classifySelectorErr(err)
		}

		scopes = append(scopes, database.AccessScope{
			PointIDs:    points.Values(),
			PropertyIDs: properties.Values(),
		})
	}
	return scopes, nil
}

// classifySelectorErr distinguishes scoping configuration errors from data
// access failures, so an empty result set never masks a failed resolution.
func classifySelectorErr(err error) error {
	if errors.Is(err, selector.ErrMissingOperatorID) || errors.Is(err, selector.ErrInvalidPointType) {
		return protocol.NewErrorf(protocol.CodeSelectorScope, "%v", err)
	}
	return protocol.NewErrorf(protocol.CodeDatabaseError, "selector resolution failed: %v", err)
}
