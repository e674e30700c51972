// embed.go: embedded SQLite migrations for the activation store
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package migrations

import "embed"

// FS contains embedded SQLite migrations for the activation store.
//
//go:embed *.sql
var FS embed.FS
