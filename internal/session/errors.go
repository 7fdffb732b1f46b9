// SPDX-License-Identifier: MIT

package session

import "errors"

var (
	// ErrNotFound is returned by Store.Open when no session exists for the
	// given id.
	ErrNotFound = errors.New("session not found")

	// ErrStoreClosed is returned by operations on a closed store.
	ErrStoreClosed = errors.New("session store closed")

	// ErrHandleClosed is returned by operations on a released session handle.
	ErrHandleClosed = errors.New("session handle closed")
)
