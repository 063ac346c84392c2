package framework

import (
	"context"
	"time"
)

// TestContext provides utilities for test execution
type TestContext struct {
	// T is the testing.T instance
	T TestingT
	// Ctx is the context for test operations
	Ctx context.Context
	// Cancel cancels the test context
	Cancel context.CancelFunc
	// Timeout is the default timeout for operations
	Timeout time.Duration
	// Cleanup functions to run after test
	cleanup []func()
}

// TestingT is an interface matching testing.T
type TestingT interface {
	Logf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	FailNow()
	Failed() bool
	Name() string
	Helper()
}

// PackageFixture describes a package to materialize on disk for a
// jsengine.LoadFromPackage test: the directory layout is
// <dataDir>/<ID>/<Version>/embassy.js.
type PackageFixture struct {
	ID      string
	Version string
	Source  string
}
