// Package constants is responsible for defining the constants used in the application.
package constants

import "log/slog"

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// DataNodeCmdName is the name of the distribution node command.
	DataNodeCmdName = "datanode"

	// DataProducerCmdName is the name of the producer upload command.
	DataProducerCmdName = "dataproducer"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn
)

// Exchange constants.
const (
	// XMLNamespace is the namespace of all exchange documents.
	XMLNamespace = "environet"

	// UploadPermission is the permission required to push observations to the node.
	UploadPermission = "api.upload"

	// DownloadPermission is the permission required to query stored observations.
	DownloadPermission = "api.download"
)
