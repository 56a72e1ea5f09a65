package host

import "sync"

// Item is one input or output parameter of a module.
type Item struct {
	Name  string
	Value any

	attrs map[string]string
}

// Attribute returns a parameter attribute such as an attach directive.
func (it *Item) Attribute(key string) (string, bool) {
	v, ok := it.attrs[key]
	return v, ok
}

func (it *Item) SetAttribute(key, value string) {
	if it.attrs == nil {
		it.attrs = make(map[string]string)
	}
	it.attrs[key] = value
}

// Module is one run of a computation step. Outputs are resolved once
// something has handled them, so the generic display step skips them.
type Module struct {
	Name string

	mu       sync.Mutex
	inputs   []*Item
	outputs  []*Item
	resolved map[string]bool
}

func NewModule(name string) *Module {
	return &Module{Name: name, resolved: make(map[string]bool)}
}

func (m *Module) AddInput(name string, value any) *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := &Item{Name: name, Value: value}
	m.inputs = append(m.inputs, it)
	return it
}

func (m *Module) AddOutput(name string, value any) *Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	it := &Item{Name: name, Value: value}
	m.outputs = append(m.outputs, it)
	return it
}

func (m *Module) Inputs() []*Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Item(nil), m.inputs...)
}

func (m *Module) Outputs() []*Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Item(nil), m.outputs...)
}

// Input returns the value of the named input, or nil.
func (m *Module) Input(name string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find(m.inputs, name)
}

// Output returns the value of the named output, or nil.
func (m *Module) Output(name string) any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find(m.outputs, name)
}

func (m *Module) SetInput(name string, v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.inputs {
		if it.Name == name {
			it.Value = v
			return
		}
	}
}

func (m *Module) IsResolved(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved[name]
}

func (m *Module) Resolve(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolved[name] = true
}

func find(items []*Item, name string) any {
	for _, it := range items {
		if it.Name == name {
			return it.Value
		}
	}
	return nil
}
