/*
Package config loads ACE's process configuration from a single YAML
document into an immutable Config value at startup.

This replaces the original global mutable process-wide configuration
(cluster data and schedule definitions read from package-level state at
arbitrary points) with one explicit value constructed once in main and
threaded into every component constructor. There is no hot-reload: the
Periodic Scheduler holds the snapshot captured at startup for its
entire run, per spec.md §9's re-architected-pattern note.

Missing required fields fail Load with a non-nil error; main is
expected to print it and exit non-zero (spec.md §6 exit codes) rather
than run with partial configuration.
*/
package config
