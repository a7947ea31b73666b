package sim

import (
	_ "embed"
	"sync"

	"github.com/gam3du/gam3du-sub000/internal/schema"
)

//go:embed robot.json
var robotSchema []byte

// RobotSchema returns the raw robot schema document.
func RobotSchema() []byte {
	return robotSchema
}

// RobotAPI returns the built-in robot API, parsed once.
var RobotAPI = sync.OnceValue(func() *schema.API {
	return schema.MustParse(robotSchema)
})
