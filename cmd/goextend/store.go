// store.go: activation store selection for the command line
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"os"
	"path/filepath"

	goextend "github.com/agilira/go-extend"
	"github.com/agilira/go-extend/store/boltstore"
	"github.com/agilira/go-extend/store/sqlitestore"
)

// openStore opens the backend named by cfg.Driver.
func openStore(cfg goextend.StoreConfig) (goextend.ActivationStore, error) {
	switch cfg.Driver {
	case "", goextend.StoreDriverMemory:
		return goextend.NewMemoryStore(), nil
	case goextend.StoreDriverSQLite:
		if err := ensureParentDir(cfg.DSN); err != nil {
			return nil, err
		}
		store, err := sqlitestore.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	case goextend.StoreDriverBolt:
		if err := ensureParentDir(cfg.DSN); err != nil {
			return nil, err
		}
		store, err := boltstore.Open(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(path)), 0o750); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	return nil
}
