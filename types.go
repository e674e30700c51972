// types.go: core data model for modules, themes and activation records
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import (
	"fmt"
	"time"
)

// ModuleStatus is the activation state of a plugin record.
//
// Transitions are only ever caused by explicit calls:
//
//	inactive --Activate--> active
//	broken   --Activate--> active
//	active   --Deactivate--> inactive
//	broken   --Deactivate--> inactive
//	any      --MarkBroken--> broken
type ModuleStatus string

const (
	StatusInactive ModuleStatus = "inactive"
	StatusActive   ModuleStatus = "active"
	StatusBroken   ModuleStatus = "broken"
)

// String returns the string representation of the status.
func (s ModuleStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known statuses.
func (s ModuleStatus) IsValid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusBroken:
		return true
	}
	return false
}

// ParseModuleStatus converts a persisted status string back into a ModuleStatus.
func ParseModuleStatus(value string) (ModuleStatus, error) {
	status := ModuleStatus(value)
	if !status.IsValid() {
		return "", fmt.Errorf("unknown module status %q", value)
	}
	return status, nil
}

// UpsertOutcome reports what an idempotent store upsert did.
type UpsertOutcome string

const (
	UpsertCreated   UpsertOutcome = "created"
	UpsertUpdated   UpsertOutcome = "updated"
	UpsertUnchanged UpsertOutcome = "unchanged"
)

// PluginRecord is the persisted activation state of a module.
//
// Records are created inactive on first sync and are never deleted when the
// module disappears from disk.
type PluginRecord struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Namespace string       `json:"namespace"`
	Version   string       `json:"version"`
	Status    ModuleStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// IsActive reports whether the record is marked active.
func (r PluginRecord) IsActive() bool {
	return r.Status == StatusActive
}

// ThemeRecord is the persisted state of a theme. At most one record is active.
type ThemeRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Slug    string `json:"slug"`
	Version string `json:"version"`
	Author  string `json:"author"`

	// ParentID is reserved for child themes and is not read by the loader.
	ParentID string `json:"parent_id,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModuleKind distinguishes plugins from themes in errors, logs and audits.
type ModuleKind string

const (
	KindPlugin ModuleKind = "plugin"
	KindTheme  ModuleKind = "theme"
)

// String returns the string representation of the kind.
func (k ModuleKind) String() string {
	return string(k)
}
