package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

func TestMangle(t *testing.T) {
	tests := []struct {
		id     string
		snake  string
		pascal string
		camel  string
	}{
		{"move forward", "move_forward", "MoveForward", "moveForward"},
		{"robot color rgb", "robot_color_rgb", "RobotColorRgb", "robotColorRgb"},
		{"log", "log", "Log", "log"},
		{"3d view", "_3d_view", "X3dView", "x3dView"},
		{"layer 2", "layer_2", "Layer2", "layer2"},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			id := schema.MustIdentifier(tt.id)
			assert.Equal(t, tt.snake, SnakeCase(id))
			assert.Equal(t, tt.pascal, PascalCase(id))
			assert.Equal(t, tt.camel, CamelCase(id))
		})
	}
}

func TestReservedNames(t *testing.T) {
	assert.Equal(t, "delete_", JSName("delete"))
	assert.Equal(t, "print_", JSName("print"))
	assert.Equal(t, "paint_tile", JSName("paint tile"))

	assert.Equal(t, "type_", GoParamName("type"))
	assert.Equal(t, "ctx_", GoParamName("ctx"))
	assert.Equal(t, "durationMs", GoParamName("duration ms"))

	assert.Equal(t, "robot", GoPackageName("robot"))
	assert.Equal(t, "robotarm", GoPackageName("robot arm"))
	assert.Equal(t, "api2d", GoPackageName("2d"))
}
