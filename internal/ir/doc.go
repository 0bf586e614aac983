// Package ir provides the event and location model shared by every
// brokercheck component.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal. This keeps the event vocabulary
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Line numbers are the log's own ordinals and are reported verbatim
//   - Timestamps are carried but never interpreted
//   - Unknown event types decode to UnknownEvent instead of failing
//   - All JSON tags use snake_case
package ir
