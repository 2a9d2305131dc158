// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package substrate

import "errors"

// Sentinel errors for the substrate service.
var (
	// ErrNoCheckpoint indicates a rollback was requested with no checkpoint
	// available.
	ErrNoCheckpoint = errors.New("no checkpoint available")

	// ErrArchiveUnavailable indicates a persistence operation was requested
	// without an archive configured.
	ErrArchiveUnavailable = errors.New("archive not configured")

	// ErrInvalidToken indicates an approval token that failed decoding
	// before verification was even attempted.
	ErrInvalidToken = errors.New("malformed approval token")
)
