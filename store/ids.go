package store

import "github.com/google/uuid"

// newRunID mints a globally unique run identifier (spec.md §3: "opaque
// string, globally unique").
func newRunID() string { return uuid.NewString() }
