// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package conn

import "errors"

var (
	errInvalidRole   = errors.New("relay: hello has invalid role")
	errTokenMismatch = errors.New("relay: hello token does not match session")
)
