// Package source implements the upstream data source client.
//
// The upstream is a query-style REST API: one endpoint, a function parameter
// selecting the dataset, the API key in the query string. Responses are JSON
// with string-encoded numerics; missing optional fields arrive as "None".
//
// Error classification:
//   - retryable: network errors, 5xx, 429, and in-band throttle notes
//   - fatal: auth failures (401/403) and unknown-symbol/indicator responses
package source
