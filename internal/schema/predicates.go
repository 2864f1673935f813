package schema

import (
	"fmt"
	"sync"
)

// Predicate is a custom check referenced from a FieldRule by name. It gets
// the field value, which is nil when the field is absent, and the whole
// record so that it can express cross-field constraints.
type Predicate func(value any, record map[string]any) bool

var (
	predicatesMu sync.RWMutex
	predicates   = map[string]Predicate{}
)

// RegisterPredicate makes fn available to rules under name. Registering the
// same name twice panics, since rules would silently change meaning.
func RegisterPredicate(name string, fn Predicate) {
	if name == "" || fn == nil {
		panic("schema: predicate needs a name and a function")
	}
	predicatesMu.Lock()
	defer predicatesMu.Unlock()
	if _, exists := predicates[name]; exists {
		panic(fmt.Sprintf("schema: predicate %q already registered", name))
	}
	predicates[name] = fn
}

func lookupPredicate(name string) (Predicate, bool) {
	predicatesMu.RLock()
	defer predicatesMu.RUnlock()
	fn, ok := predicates[name]
	return fn, ok
}
