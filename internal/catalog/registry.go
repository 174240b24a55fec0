package catalog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Registry is the in-memory catalog of priced routes, loaded once at
// startup and never mutated afterward.
type Registry struct {
	byID  map[string]Service
	byKey map[string]Service
	all   []Service
}

var validate = validator.New()

// Load parses a JSON catalog (an array of Service objects) and builds a
// Registry, validating each entry and rejecting duplicate (method,path)
// pairs per spec §3's Service invariant.
func Load(r io.Reader) (*Registry, error) {
	var services []Service
	if err := json.NewDecoder(r).Decode(&services); err != nil {
		return nil, fmt.Errorf("catalog: decode: %w", err)
	}

	reg := &Registry{
		byID:  make(map[string]Service, len(services)),
		byKey: make(map[string]Service, len(services)),
	}

	for _, svc := range services {
		if err := validate.Struct(svc); err != nil {
			return nil, fmt.Errorf("catalog: service %q: %w", svc.ID, err)
		}
		if _, dup := reg.byID[svc.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate service id %q", svc.ID)
		}
		key := svc.key()
		if _, dup := reg.byKey[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate route %s", key)
		}
		reg.byID[svc.ID] = svc
		reg.byKey[key] = svc
		reg.all = append(reg.all, svc)
	}

	return reg, nil
}

// Get returns the service with the given id.
func (r *Registry) Get(id string) (Service, bool) {
	svc, ok := r.byID[id]
	return svc, ok
}

// All returns every catalogued service, in load order.
func (r *Registry) All() []Service {
	out := make([]Service, len(r.all))
	copy(out, r.all)
	return out
}

// Match finds the service whose method and path exactly equal the
// request's, ignoring any query string. Returns false if no paid route matches.
func (r *Registry) Match(method, path string) (Service, bool) {
	if idx := strings.IndexByte(path, '?'); idx >= 0 {
		path = path[:idx]
	}
	svc, ok := r.byKey[method+" "+path]
	return svc, ok
}
