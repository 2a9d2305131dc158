// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package replay

import (
	"errors"
	"sync"
)

// ErrEpisodeNotFound is returned for unknown episode ids.
var ErrEpisodeNotFound = errors.New("replay episode not found")

// Protocol manages replay episodes across their collection and validation
// lifecycle. Operates offline against exported ledger artifacts; it never
// touches live ledger state.
//
// Safe for concurrent use.
type Protocol struct {
	mu       sync.Mutex
	episodes map[string]*Episode
	order    []string
}

// NewProtocol creates an empty protocol instance.
func NewProtocol() *Protocol {
	return &Protocol{episodes: make(map[string]*Episode)}
}

// CreateEpisode opens a new episode and returns it.
func (p *Protocol) CreateEpisode(seed uint64, scenario string) *Episode {
	e := NewEpisode(seed, scenario)
	p.mu.Lock()
	p.episodes[e.EpisodeID] = e
	p.order = append(p.order, e.EpisodeID)
	p.mu.Unlock()
	return e
}

// AddEnvironment records an execution for the given episode.
func (p *Protocol) AddEnvironment(episodeID, name, config, osName, hashRef string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.episodes[episodeID]
	if !ok {
		return ErrEpisodeNotFound
	}
	e.AddEnvironment(name, config, osName, hashRef)
	return nil
}

// Validate runs the determinism proof for the given episode and returns the
// updated episode alongside the validation verdict.
func (p *Protocol) Validate(episodeID string) (*Episode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.episodes[episodeID]
	if !ok {
		return nil, ErrEpisodeNotFound
	}
	return e, e.Validate()
}

// Episode returns the episode with the given id.
func (p *Protocol) Episode(episodeID string) (*Episode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.episodes[episodeID]
	if !ok {
		return nil, ErrEpisodeNotFound
	}
	return e, nil
}

// Episodes returns the episodes in creation order.
func (p *Protocol) Episodes() []*Episode {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Episode, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.episodes[id])
	}
	return out
}
