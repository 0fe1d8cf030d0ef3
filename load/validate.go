package load

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
)

// ValidationError is returned when a binary module is rejected by the validator.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid module: %v", e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validate compiles a binary module with an interpreter-backed wazero runtime. The module is never
// instantiated, so its imports need not be satisfied.
func Validate(ctx context.Context, data []byte) error {
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, data)
	if err != nil {
		return &ValidationError{Err: err}
	}
	defer compiled.Close(ctx)

	Logger().Debug("validated module",
		zap.Int("imports", len(compiled.ImportedFunctions())),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return nil
}
