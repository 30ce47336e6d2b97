// ABOUTME: Startup discovery that queries every backend for its operations.
// ABOUTME: Fans out concurrently, tolerates dead backends, and merges the results.

package registry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/oakmail/steward/internal/rip"
)

// OperationLister is the slice of the protocol client discovery needs.
type OperationLister interface {
	ListOperations(ctx context.Context, backendID string) ([]rip.OperationInfo, error)
}

// Discover queries each backend via list_operations and merges the
// results into a Registry. Backends are queried concurrently, but
// merging follows the configured order: when two backends declare the
// same operation name, the later backend in the list wins and the
// replacement is logged at warning level. A backend that errors
// contributes zero operations; discovery never fails as a whole.
func Discover(ctx context.Context, backendIDs []string, lister OperationLister, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "registry")

	type discovery struct {
		ops []rip.OperationInfo
		err error
	}
	results := make([]discovery, len(backendIDs))

	var wg sync.WaitGroup
	for i, backendID := range backendIDs {
		wg.Add(1)
		go func(i int, backendID string) {
			defer wg.Done()
			ops, err := lister.ListOperations(ctx, backendID)
			results[i] = discovery{ops: ops, err: err}
		}(i, backendID)
	}
	wg.Wait()

	reg := &Registry{ops: make(map[string]OperationDescriptor)}
	for i, backendID := range backendIDs {
		res := results[i]
		if res.err != nil {
			logger.Error("backend discovery failed, continuing without it",
				"backend", backendID,
				"error", res.err,
			)
			continue
		}

		for _, op := range res.ops {
			desc := toDescriptor(backendID, op)
			if prev, exists := reg.ops[op.Name]; exists {
				logger.Warn("operation name collision, later backend shadows earlier",
					"operation", op.Name,
					"previous_backend", prev.BackendID,
					"new_backend", backendID,
				)
			}
			reg.ops[op.Name] = desc
		}
		logger.Info("backend discovered",
			"backend", backendID,
			"operations", len(res.ops),
		)
	}

	if reg.Len() == 0 {
		logger.Error("discovery finished with no operations, the oracle catalog will be empty")
	} else {
		logger.Info("discovery complete", "operations", reg.Names())
	}
	return reg
}

// toDescriptor converts a backend-declared schema into a typed
// descriptor. Every property is treated as text-valued; required
// properties are marked as such, everything else defaults to optional.
func toDescriptor(backendID string, op rip.OperationInfo) OperationDescriptor {
	required := make(map[string]bool, len(op.InputSchema.Required))
	for _, name := range op.InputSchema.Required {
		required[name] = true
	}

	fields := make(map[string]Field, len(op.InputSchema.Properties))
	for name, prop := range op.InputSchema.Properties {
		fields[name] = Field{
			Description: prop.Description,
			Required:    required[name],
		}
	}
	// Required fields the backend forgot to list under properties still
	// count; the validation layer needs to see them.
	for name := range required {
		if _, ok := fields[name]; !ok {
			fields[name] = Field{Required: true}
		}
	}

	return OperationDescriptor{
		Name:        op.Name,
		Description: op.Description,
		BackendID:   backendID,
		Fields:      fields,
	}
}
