// Package handlers implements the signed exchange endpoints of the
// distribution node: observation upload and WaterML2 download.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hydromet/datanode/internal/auth"
	"github.com/hydromet/datanode/internal/config"
	"github.com/hydromet/datanode/internal/database"
	"github.com/hydromet/datanode/internal/pki"
	"github.com/hydromet/datanode/internal/protocol"
	"github.com/hydromet/datanode/internal/selector"
	"github.com/hydromet/datanode/internal/waterml"
	"github.com/hydromet/datanode/internal/xmlresolver"
)

// Store is the storage surface the handlers depend on.
type Store interface {
	IdentityByUsername(ctx context.Context, username string) (*auth.Identity, error)

	PointByExternalID(ctx context.Context, t selector.PointType, externalID string) (database.MonitoringPoint, error)
	PropertyIDBySymbol(ctx context.Context, t selector.PointType, symbol string) (int, error)
	EnsureTimeSeries(ctx context.Context, t selector.PointType, pointID, propertyID int, at time.Time) (int, error)
	UpsertObservation(ctx context.Context, t selector.PointType, seriesID int, at time.Time, value float64) (bool, error)

	Results(ctx context.Context, q database.ResultsQuery) ([]waterml.Series, error)

	selector.Store
}

// ConfigProvider provides the declared input formats and symbol conversions.
type ConfigProvider interface {
	Format(name string) (config.FormatDefinition, bool)
	SymbolMappings() xmlresolver.SymbolMappings
}

// resolveIdentity runs the shared opening states of both protocol state
// machines: header parsing and identity resolution.
func resolveIdentity(ctx context.Context, store Store, r *http.Request) (*auth.Identity, auth.Credentials, error) {
	creds, err := auth.ParseHeader(r.Header.Get("Authorization"))
	if err != nil {
		return nil, auth.Credentials{}, protocol.NewErrorf(protocol.CodeMissingAuthHeader, "%v", err)
	}

	identity, err := store.IdentityByUsername(ctx, creds.KeyID)
	if errors.Is(err, database.ErrUserNotFound) {
		return nil, auth.Credentials{}, protocol.NewErrorf(protocol.CodeUnknownUser, "unknown user %q", creds.KeyID)
	}
	if err != nil {
		return nil, auth.Credentials{}, protocol.NewErrorf(protocol.CodeDatabaseError, "identity lookup failed: %v", err)
	}

	return identity, creds, nil
}

// verifySignature checks the caller's signature over the signed artifact:
// the raw body on upload, the token parameter on download. A verification
// fault is a server error, a mismatch an authentication rejection.
func verifySignature(identity *auth.Identity, creds auth.Credentials, content []byte) error {
	if len(identity.PublicKeyPEM) == 0 {
		return protocol.NewErrorf(protocol.CodeNoPublicKey, "user %q has no usable public key", identity.Username)
	}

	ok, err := pki.Verify(content, creds.Signature, identity.PublicKeyPEM)
	if err != nil {
		return protocol.NewErrorf(protocol.CodeCryptoError, "signature verification failed: %v", err)
	}
	if !ok {
		return protocol.NewError(protocol.CodeInvalidSignature, "signature does not match the signed content")
	}
	return nil
}

func logHandled(reqID string, err error) {
	apiErr := protocol.Classify(err)
	slog.Error("Request failed", "req_id", reqID, "code", int(apiErr.Code), "err", err)
}
