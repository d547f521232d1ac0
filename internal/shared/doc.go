// Package shared holds cross-cutting helpers that belong to no single
// domain layer. Keep it small: anything with business meaning lives in
// its own package, and nothing here may import other internal packages.
//
// # Test Utilities
//
// The testutil subpackage captures slog output so tests can assert on
// what a component logged. The capturing handler follows loggers
// derived with With and WithGroup, which matters because services bind
// a component attribute at construction:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc := NewTeacherService(dataset, store, nil, logger)
//
//	// ... exercise svc ...
//
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "worksheet unavailable")
package shared
