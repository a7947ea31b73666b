package schema

// API describes a named set of commands.
//
// INVARIANTS:
//   - Functions keeps document order; it is the ordered-map iteration order
//   - Function names are unique (enforced by NewAPI and Validate)
//   - An API is never mutated after construction; share it by pointer
type API struct {
	Name        Identifier
	Caption     string
	Description string
	Functions   []*Function

	index map[Identifier]*Function
}

// Function describes one callable command.
type Function struct {
	Name        Identifier
	Caption     string
	Description string

	// Parameters in positional argument order.
	Parameters []Parameter

	// Returns is nil for commands without a result value.
	Returns *Parameter
}

// Parameter describes one positional argument (or a return value).
type Parameter struct {
	Name        Identifier
	Caption     string
	Description string
	Type        Type

	// Default is nil when the parameter is required.
	Default Value
}

// HasDefault reports whether the parameter may be omitted.
func (p Parameter) HasDefault() bool {
	return p.Default != nil
}

// NewAPI builds an API from functions in declaration order.
// Later duplicates of a function name are ignored by the lookup index but
// still reported by Validate.
func NewAPI(name Identifier, caption, description string, functions ...*Function) *API {
	api := &API{
		Name:        name,
		Caption:     caption,
		Description: description,
		Functions:   functions,
		index:       make(map[Identifier]*Function, len(functions)),
	}
	for _, fn := range functions {
		if _, exists := api.index[fn.Name]; !exists {
			api.index[fn.Name] = fn
		}
	}
	return api
}

// Function looks up a command by name.
func (a *API) Function(name Identifier) (*Function, bool) {
	if a == nil {
		return nil, false
	}
	fn, ok := a.index[name]
	return fn, ok
}

// Lookup looks up a command by its raw name, without requiring the caller to
// validate it as an Identifier first.
func (a *API) Lookup(name string) (*Function, bool) {
	return a.Function(Identifier(name))
}

// FunctionNames returns command names in declaration order.
func (a *API) FunctionNames() []Identifier {
	names := make([]Identifier, len(a.Functions))
	for i, fn := range a.Functions {
		names[i] = fn.Name
	}
	return names
}

// RequiredParameters returns the number of leading parameters without a
// default, i.e. the minimum positional argument count.
func (f *Function) RequiredParameters() int {
	n := 0
	for i, p := range f.Parameters {
		if !p.HasDefault() {
			n = i + 1
		}
	}
	return n
}
