// Package ir provides the shared value and record types for rtn.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal. This keeps ir the foundational
// layer with no circular dependencies.
//
// Key design constraints:
//   - Bus payloads are sealed Value types, never bare interface{}
//   - LogRecord is the unit of the append-only session log
//   - Tier selection depends on the iteration count only and never regresses
package ir
