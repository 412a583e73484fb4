// Advisor CI/CD
//
// Package main provides reproducible builds and tests locally and in GitHub actions.
package main

import (
	"context"

	"dagger/advisor/internal/dagger"
)

// Advisor is the main module for the advisor CI/CD pipeline
type Advisor struct {
	// Project source directory
	//
	// +private
	Source *dagger.Directory
}

// New creates a new Advisor CI/CD module instance
func New(
	// Project source directory.
	//
	// +defaultPath="/"
	// +ignore=[".git", ".direnv", ".devenv", "build", "tmp", ".advisor"]
	source *dagger.Directory,
) *Advisor {
	return &Advisor{
		Source: source,
	}
}

// goContainer returns a Debian Bookworm-based Go container with the project
// source mounted. Everything builds with CGO disabled.
//
// It is the shared foundation for tests, builds, and linting.
func (t *Advisor) goContainer() *dagger.Container {
	return dag.Container().
		From("golang:1.25-bookworm").
		WithEnvVariable("CGO_ENABLED", "0").
		WithEnvVariable("PATH", "/go/bin:$PATH", dagger.ContainerWithEnvVariableOpts{Expand: true}).
		WithMountedCache("/go/pkg/mod", dag.CacheVolume("go-mod")).
		WithMountedCache("/root/.cache/go-build", dag.CacheVolume("go-build")).
		WithWorkdir("/src").
		WithDirectory("/src", t.Source)
}

// Test runs the advisor unit tests via "go test"
func (t *Advisor) Test(ctx context.Context) (string, error) {
	return t.goContainer().
		WithExec([]string{"go", "test", "-v", "./..."}).
		Stdout(ctx)
}

// TestRace runs the unit tests with the race detector. The chat session,
// conversation observers and relay stream goroutines are the code under
// scrutiny.
func (t *Advisor) TestRace(ctx context.Context) (string, error) {
	return t.goContainer().
		WithEnvVariable("CGO_ENABLED", "1").
		WithExec([]string{"go", "test", "-race", "./pkg/..."}).
		Stdout(ctx)
}
