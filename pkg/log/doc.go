/*
Package log provides structured logging for ACE using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
component-specific loggers, configurable log levels, and helper
functions for common logging patterns. All logs include timestamps and
support filtering by severity level for production debugging.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init()
  - Accessible from all ACE packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (potential issues)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination (stdout, file)

Context Loggers:
  - WithComponent: Add component name to all logs (e.g. "diff-executor")
  - every other contextual field (cluster_name, node, task_id, ...) is
    chained on top with zerolog's own .With().Str(...), since callers
    need different field sets rather than one fixed set

Credentials never flow through these helpers: node DSNs and passwords
are never passed as log fields anywhere in this codebase (see
pkg/types.Node.DSN and the Cluster Descriptor invariant that
credentials never enter logs or diff files).

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	logger := log.WithComponent("diff-executor").With().
		Str("cluster", clusterName).Logger()
	logger.Info().Int("mismatched_blocks", n).Msg("diff complete")
*/
package log
