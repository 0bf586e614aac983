// Package config loads brokercheck profiles.
//
// A profile is a CUE file checked against the embedded #Profile schema:
//
//	validators: ["producer-message-ordering", "message-integrity"]
//	checkpoint_every: 500
//	store: sqlite: "checks.db"
//	kafka: {
//		brokers: ["localhost:9092"]
//		topic:   "test-log"
//	}
//
// Fields the schema does not declare are errors. Command-line flags
// override profile values when both are given.
package config
