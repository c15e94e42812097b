// Package render turns a raw sandbox capture into the final block list
// of a query response.
//
// Rendering maps machine-facing names back to human terms: one-hot
// indicator columns named <column>__<category> are rewritten to their
// semantic-layer labels using the preprocessing audit trail, and table
// cells holding raw category values are replaced by their mapped
// labels. Block order is preserved exactly as captured, and figure
// artifacts pass through untouched.
package render
