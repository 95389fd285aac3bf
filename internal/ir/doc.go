// Package ir provides the value and schema types shared by every modkit
// package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key constraints:
//   - no float types: integers are int64
//   - configuration records are IRObject values addressed by dotted paths
//   - fingerprints are SHA-256 over RFC 8785 canonical JSON with a domain prefix
//   - JSON tags use snake_case
package ir
