// Package filter holds the record filters installed on synclog loggers.
//
//   - Dedup drops an exact repeat of the previous record inside a window.
//   - SQLNoise drops raw query fragments from captured stdout.
//   - RateLimit caps the record rate per logger name.
package filter
