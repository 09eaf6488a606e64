// Copyright Abx Labs Ltd., 2026. All rights reserved.

package ingest

import "errors"

// ErrMalformedInput marks a tool output file whose structure the adapter
// could not make sense of: wrong table shape, missing required columns, or
// unparseable documents. Callers match it with errors.Is; a sample whose
// files all fail this way is excluded from the cohort.
var ErrMalformedInput = errors.New("malformed input")
