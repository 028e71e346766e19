// Package testutil provides shared test utilities for loom.
//
// # Fixtures
//
// The fixtures.go file provides sample data:
//
//   - SampleBitcode, SampleStub - stand-in artifact content
//   - SampleFixSource - a minimal .lm fix description
//   - SampleCommands - a realistic operator session
//   - WriteBitcode(t, name), WriteFixSource(t, dir, name)
//
// # Environment Helpers
//
// The env.go file provides test environment setup:
//
//   - SetupTestDir(t) - creates a temp directory with a .loom directory
//   - WriteTestFile(t, base, path, content) - writes a file in the test dir
//   - WriteConfig(t, base, yaml) - writes .loom/config.yaml
//   - ReadTestFile(t, path)
//
// # Assertions
//
//   - AssertFileContent(t, path, want)
//   - AssertNoFile(t, path)
//   - AssertSameBytes(t, a, b)
//
// # Timeouts
//
//   - SessionContext(t), PipelineContext(t)
//   - ContextWithTestDeadline(t, fallback)
package testutil
