// Package sanitizer normalizes request input before validation and storage.
//
// All functions are idempotent and never fail: invalid input collapses to an
// empty string or an empty slice and is then rejected by the validators.
//
// Normalization includes:
//   - Strings: collapse whitespace, trim leading/trailing spaces
//   - Identifiers: trim, drop empties and duplicates while keeping order
//   - Coupon codes: trim, collapse inner whitespace, upper-case
package sanitizer
