package cli

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gam3du/gam3du-sub000/internal/config"
	"github.com/gam3du/gam3du-sub000/internal/schema"
	"github.com/gam3du/gam3du-sub000/internal/sim"
)

// RobotSchema selects the built-in robot API instead of a schema file.
const RobotSchema = "robot"

// LoadError is a loading failure with its CLI error code.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadAPI resolves a schema argument: "robot" or a .json/.cue path.
func loadAPI(ref string) (*schema.API, error) {
	if ref == RobotSchema {
		return sim.RobotAPI(), nil
	}
	if _, err := os.Stat(ref); errors.Is(err, os.ErrNotExist) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("schema file not found: %s", ref), Err: err}
	}
	api, err := schema.LoadFile(ref)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeSchema, Message: err.Error(), Err: err}
	}
	return api, nil
}

// loadRobotAPI is loadAPI for commands that execute against the robot
// world: a custom schema may declare a subset of the robot's functions
// under their robot signatures.
func loadRobotAPI(ref string) (*schema.API, error) {
	api, err := loadAPI(ref)
	if err != nil {
		return nil, err
	}
	if err := checkRobotCompatible(api); err != nil {
		return nil, &LoadError{Code: ErrCodeIncompatible, Message: err.Error(), Err: err}
	}
	return api, nil
}

// checkRobotCompatible verifies that every function of api is served by
// the robot world with the same parameter and return types.
func checkRobotCompatible(api *schema.API) error {
	robot := sim.RobotAPI()
	for _, name := range api.FunctionNames() {
		fn, _ := api.Function(name)
		want, ok := robot.Function(name)
		if !ok {
			return fmt.Errorf("function %q is not served by the robot world", name)
		}
		if len(fn.Parameters) != len(want.Parameters) {
			return fmt.Errorf("function %q takes %d parameters, robot world expects %d",
				name, len(fn.Parameters), len(want.Parameters))
		}
		for i, p := range fn.Parameters {
			if !schema.TypeEqual(p.Type, want.Parameters[i].Type) {
				return fmt.Errorf("function %q parameter %q is %s, robot world expects %s",
					name, p.Name, p.Type, want.Parameters[i].Type)
			}
		}
		if (fn.Returns == nil) != (want.Returns == nil) ||
			(fn.Returns != nil && !schema.TypeEqual(fn.Returns.Type, want.Returns.Type)) {
			return fmt.Errorf("function %q return type differs from the robot world", name)
		}
	}
	return nil
}

// loadConfig reads the --config file, or the defaults when none is given.
func loadConfig(path string) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, &LoadError{Code: ErrCodeConfig, Message: err.Error(), Err: err}
	}
	return cfg, nil
}

// parseArgs decodes command-line arguments as YAML scalars or flow
// sequences, so "10", "0.5", "true", "[1, 2]" and "red" all work.
func parseArgs(raw []string) ([]any, error) {
	args := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := yaml.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("argument %d %q: %w", i+1, s, err)
		}
		args[i] = v
	}
	return args, nil
}

// loadErrorCode returns the code carried by err, or ErrCodeGeneric.
func loadErrorCode(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}
