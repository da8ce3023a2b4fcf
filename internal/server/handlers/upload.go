package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hydromet/datanode/internal/config"
	"github.com/hydromet/datanode/internal/constants"
	"github.com/hydromet/datanode/internal/database"
	"github.com/hydromet/datanode/internal/formats"
	"github.com/hydromet/datanode/internal/protocol"
	"github.com/hydromet/datanode/internal/selector"
	"github.com/hydromet/datanode/internal/xmlresolver"
)

// Upload accepts signed observation documents and persists the resolved
// observations, reporting a per-row outcome list.
type Upload struct {
	store         Store
	cm            ConfigProvider
	maxUploadSize int64
}

// NewUpload creates a new Upload handler.
func NewUpload(store Store, cm ConfigProvider, maxUploadSize int64) *Upload {
	return &Upload{
		store:         store,
		cm:            cm,
		maxUploadSize: maxUploadSize,
	}
}

// ServeHTTP runs the upload state machine. The first failing state
// short-circuits to an error-XML response; a processed document reports its
// per-row outcomes even when some rows were skipped.
func (h *Upload) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := uuid.New().String()
	slog.Info("Upload request recv'd", "req_id", reqID)

	stats, err := h.process(r)
	if err != nil {
		logHandled(reqID, err)
		protocol.WriteError(w, err, r.RemoteAddr)
		return
	}

	slog.Info("Upload processed", "req_id", reqID,
		"received", stats.ReceivedRows, "saved", stats.SavedRows,
		"updated", stats.UpdatedRows, "skipped", stats.SkippedRows)
	protocol.WriteXML(w, http.StatusOK, stats)
}

func (h *Upload) process(r *http.Request) (protocol.UploadStatistics, error) {
	ctx := r.Context()

	identity, creds, err := resolveIdentity(ctx, h.store, r)
	if err != nil {
		return protocol.UploadStatistics{}, err
	}

	r.Body = http.MaxBytesReader(nil, r.Body, h.maxUploadSize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return protocol.UploadStatistics{}, protocol.NewErrorf(protocol.CodeMalformedXML, "failed to read request body: %v", err)
	}

	// The signature covers the raw uploaded body.
	if err := verifySignature(identity, creds, body); err != nil {
		return protocol.UploadStatistics{}, err
	}

	if !identity.HasPermission(constants.UploadPermission) {
		return protocol.UploadStatistics{}, protocol.NewErrorf(protocol.CodePermissionDenied,
			"user %q is not allowed to upload observations", identity.Username)
	}

	pointType, format, err := h.uploadParams(r.URL.Query())
	if err != nil {
		return protocol.UploadStatistics{}, err
	}

	rows, uploadOpts, err := h.resolveRows(body, format)
	if err != nil {
		return protocol.UploadStatistics{}, err
	}

	return h.persistRows(ctx, pointType, rows, uploadOpts)
}

// uploadParams validates the declared point type and input format.
func (h *Upload) uploadParams(query url.Values) (selector.PointType, config.FormatDefinition, error) {
	pointType, err := selector.ParsePointType(query.Get("type"))
	if err != nil {
		return "", config.FormatDefinition{}, protocol.NewErrorf(protocol.CodeInvalidRequestType,
			"missing or invalid type parameter: %v", err)
	}

	name := query.Get("format")
	format, ok := h.cm.Format(name)
	if !ok {
		return "", config.FormatDefinition{}, protocol.NewErrorf(protocol.CodeInvalidFormatOption,
			"unknown input format %q", name)
	}
	return pointType, format, nil
}

// observationRow is one canonical observation resolved from the document.
// A row that failed resolution carries failReason instead of a value; it is
// reported as skipped without touching storage.
type observationRow struct {
	externalPointID string
	symbol          string
	at              time.Time
	value           float64

	symbolUnmapped bool
	failReason     string
}

// resolveRows parses and resolves the document into canonical observations.
// Document-level faults (unparsable XML, unknown upload options, no matching
// fragments) abort the batch; a row that fails resolution becomes a failed
// observationRow so its siblings still process.
func (h *Upload) resolveRows(body []byte, format config.FormatDefinition) ([]observationRow, xmlresolver.UploadOptions, error) {
	doc, err := xmlresolver.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, xmlresolver.UploadOptions{}, protocol.NewErrorf(protocol.CodeMalformedXML, "%v", err)
	}

	uploadOpts, err := xmlresolver.ParseUploadOptions(doc)
	if err != nil {
		return nil, xmlresolver.UploadOptions{}, protocol.NewErrorf(protocol.CodeUnknownUploadOption, "%v", err)
	}

	resolved, err := xmlresolver.Resolve(format.Parameters, doc, format.Anchor, xmlresolver.Options{
		Symbols: h.cm.SymbolMappings(),
	})
	if err != nil {
		return nil, xmlresolver.UploadOptions{}, protocol.NewErrorf(protocol.CodeFormatMismatch, "%v", err)
	}

	var rows []observationRow
	for _, row := range resolved {
		if row.Err != nil {
			rows = append(rows, observationRow{failReason: row.Err.Error()})
			continue
		}
		groupRows, err := groupObservations(row.Group)
		if err != nil {
			rows = append(rows, observationRow{
				externalPointID: groupPointID(row.Group),
				failReason:      err.Error(),
			})
			continue
		}
		rows = append(rows, groupRows...)
	}
	return rows, uploadOpts, nil
}

// groupPointID reads the monitoring point of a group that may be incomplete.
func groupPointID(group *xmlresolver.Group) string {
	if item, ok := group.First(formats.MonitoringPoint); ok {
		return item.Value
	}
	return ""
}

// groupObservations expands one resolved group into canonical observations,
// one per measured channel.
func groupObservations(group *xmlresolver.Group) ([]observationRow, error) {
	pointItem, ok := group.First(formats.MonitoringPoint)
	if !ok {
		return nil, errors.New("document row carries no monitoring point")
	}

	at, err := xmlresolver.ComposeTimestamp(group)
	if err != nil {
		return nil, err
	}

	groupSymbol := ""
	groupSymbolResolved := false
	if symbolItem, ok := group.First(formats.ObservedPropertySymbol); ok {
		groupSymbol = symbolItem.Value
		groupSymbolResolved = true
	}

	var rows []observationRow
	for _, item := range group.ByType(formats.ObservedPropertyValue) {
		row := observationRow{
			externalPointID: pointItem.Value,
			symbol:          item.Parameter.Symbol,
			at:              at,
		}
		if row.symbol == "" {
			row.symbol = groupSymbol
			row.symbolUnmapped = groupSymbolResolved && groupSymbol == ""
		}

		value, err := strconv.ParseFloat(item.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("observed property value %q is not numeric", item.Value)
		}
		row.value = value
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, errors.New("document row carries no observed property value")
	}
	return rows, nil
}

// persistRows hands each resolved observation to storage and collects the
// per-row outcomes. A row-level problem skips that row with a reason; only
// undefined points without the ignore option and storage faults abort the
// whole batch.
func (h *Upload) persistRows(ctx context.Context, pointType selector.PointType, rows []observationRow, opts xmlresolver.UploadOptions) (protocol.UploadStatistics, error) {
	statuses := make([]protocol.RowStatus, 0, len(rows))
	for _, row := range rows {
		status := protocol.RowStatus{PointID: row.externalPointID, Symbol: row.symbol}

		outcome, reason, err := h.persistRow(ctx, pointType, row, opts)
		if err != nil {
			return protocol.UploadStatistics{}, err
		}

		status.Outcome = outcome
		status.Reason = reason
		statuses = append(statuses, status)
	}

	return protocol.NewUploadStatistics(statuses), nil
}

func (h *Upload) persistRow(ctx context.Context, pointType selector.PointType, row observationRow, opts xmlresolver.UploadOptions) (protocol.RowOutcome, string, error) {
	if row.failReason != "" {
		return protocol.RowSkipped, row.failReason, nil
	}
	if row.symbolUnmapped {
		return protocol.RowSkipped, "observed property symbol could not be mapped", nil
	}

	point, err := h.store.PointByExternalID(ctx, pointType, row.externalPointID)
	if errors.Is(err, database.ErrPointNotFound) {
		if opts.IgnoreUndefinedPoints {
			return protocol.RowSkipped, "monitoring point not found", nil
		}
		return "", "", protocol.NewErrorf(protocol.CodePointNotFound,
			"monitoring point %q not found", row.externalPointID)
	}
	if err != nil {
		return "", "", protocol.NewErrorf(protocol.CodeDatabaseError, "monitoring point lookup failed: %v", err)
	}

	if !point.Active {
		return protocol.RowSkipped, "monitoring point is inactive", nil
	}

	propertyID, err := h.store.PropertyIDBySymbol(ctx, pointType, row.symbol)
	if errors.Is(err, database.ErrPropertyNotFound) {
		return "", "", protocol.NewErrorf(protocol.CodePropertyNotFound,
			"observed property %q not found", row.symbol)
	}
	if err != nil {
		return "", "", protocol.NewErrorf(protocol.CodeDatabaseError, "observed property lookup failed: %v", err)
	}

	seriesID, err := h.store.EnsureTimeSeries(ctx, pointType, point.ID, propertyID, row.at)
	if err != nil {
		return "", "", protocol.NewErrorf(protocol.CodeTimeSeriesInit,
			"failed to initialize time series for point %q property %q: %v", row.externalPointID, row.symbol, err)
	}

	created, err := h.store.UpsertObservation(ctx, pointType, seriesID, row.at, row.value)
	if err != nil {
		return "", "", protocol.NewErrorf(protocol.CodeDatabaseError, "failed to store observation: %v", err)
	}
	if created {
		return protocol.RowSaved, "", nil
	}
	return protocol.RowUpdated, "", nil
}
