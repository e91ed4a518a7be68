//go:build tools

// This file pins github.com/pressly/goose/v3 as a direct dependency even
// though nothing else in this package imports its CLI.
package db

import _ "github.com/pressly/goose/v3"
