// assets.go: style and script queue filled by theme_enqueue_scripts callbacks
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package goextend

import "sync"

// Asset is an enqueued stylesheet or script. Rendering is left to the host.
type Asset struct {
	Handle   string   `json:"handle"`
	Src      string   `json:"src"`
	Deps     []string `json:"deps,omitempty"`
	Version  string   `json:"version,omitempty"`
	Media    string   `json:"media,omitempty"`
	InFooter bool     `json:"in_footer,omitempty"`
}

// AssetQueue collects assets by handle, keeping first-enqueue order.
// Enqueueing an existing handle replaces it in place.
type AssetQueue struct {
	mu      sync.RWMutex
	styles  []Asset
	scripts []Asset
}

// NewAssetQueue creates an empty queue.
func NewAssetQueue() *AssetQueue {
	return &AssetQueue{}
}

// EnqueueStyle adds a stylesheet. An empty media defaults to "all".
func (q *AssetQueue) EnqueueStyle(asset Asset) {
	if asset.Media == "" {
		asset.Media = "all"
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.styles = upsertAsset(q.styles, asset)
}

// EnqueueScript adds a script.
func (q *AssetQueue) EnqueueScript(asset Asset) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.scripts = upsertAsset(q.scripts, asset)
}

// Styles returns the enqueued stylesheets.
func (q *AssetQueue) Styles() []Asset {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]Asset(nil), q.styles...)
}

// Scripts returns the enqueued scripts placed in the footer or not.
func (q *AssetQueue) Scripts(footer bool) []Asset {
	q.mu.RLock()
	defer q.mu.RUnlock()
	out := make([]Asset, 0, len(q.scripts))
	for _, asset := range q.scripts {
		if asset.InFooter == footer {
			out = append(out, asset)
		}
	}
	return out
}

func upsertAsset(list []Asset, asset Asset) []Asset {
	for i := range list {
		if list[i].Handle == asset.Handle {
			list[i] = asset
			return list
		}
	}
	return append(list, asset)
}
