// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package protocol

import "errors"

// ErrUnknownType is returned by Parse for a message type the core does not
// recognize. Callers should treat this as a no-op, not a protocol error.
var ErrUnknownType = errors.New("protocol: unknown message type")
