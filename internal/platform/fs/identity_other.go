// SPDX-License-Identifier: MIT

//go:build !unix

package fs

// FileIdentity is unavailable on this platform; callers fall back to
// path-keyed identity.
func FileIdentity(path string) (Identity, bool, error) {
	return Identity{}, false, nil
}
