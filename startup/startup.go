package startup

import (
	"fmt"
)

// DefaultServerBinary is the server image exec'd after the init step.
const DefaultServerBinary = "/app/cuwep"

// Orchestrator runs the container init sequence: an optional one-shot schema
// migration gated by INIT_DB, followed by an exec hand-off to the server
// binary so it becomes the container's primary process and receives signals
// directly. All side effects are injected so the sequence is testable.
type Orchestrator struct {
	Getenv  func(key string) string
	Environ func() []string
	Migrate func() error
	Exec    func(argv0 string, argv []string, envv []string) error
	Logf    func(format string, v ...any)
}

// Run executes the init sequence. It returns an error when the migration step
// fails or when the exec hand-off itself fails; on success it never returns
// because the process image has been replaced.
func (o *Orchestrator) Run() error {
	// Exact, case-sensitive match. "TRUE", "1", "yes" etc. all mean skip:
	// fuzzy truthy parsing here would silently change deployment behavior.
	if v := o.Getenv("INIT_DB"); v == "true" {
		o.Logf("Initializing DB")
		if err := o.Migrate(); err != nil {
			return fmt.Errorf("db initialization failed: %w", err)
		}
		o.Logf("DB Initialized")
	} else {
		o.Logf("Skipping DB initialization '%s'", v)
	}

	target := o.Getenv("SERVER_BINARY")
	if target == "" {
		target = DefaultServerBinary
	}
	if err := o.Exec(target, []string{target}, o.Environ()); err != nil {
		return fmt.Errorf("failed to exec %s: %w", target, err)
	}
	return nil
}
