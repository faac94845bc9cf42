// Package config defines the capability interface persisted modules
// implement so internal/persist can save and restore them without
// knowing anything about their internal layout. The persistor asks a
// registrant to emit or absorb bytes, and the registrant never knows
// the persistor exists, so the dependency graph stays acyclic.
package config

// Saver is implemented by any module whose state survives a reboot.
// internal/core registers two: the calibration constants and the
// additive bank selector. UI picker state and the octave-down flag are
// not persisted. Key is used only for diagnostics
// and ordering stability in logs; the wire format has no field names,
// only the registration order the payloads are concatenated in.
type Saver interface {
	Key() string
	SaveState() []byte
	LoadState(data []byte) error
}

// Registry holds the ordered list of Savers a Persistor composes a
// config record from. Order is significant: it is the order payloads
// are concatenated into a record body, and the order they are
// dispatched to on restore.
type Registry struct {
	savers []Saver
}

// Register appends s to the registry. Call during boot wiring, before
// the first persist.Persistor.Restore or persist.Persistor.Save.
func (r *Registry) Register(s Saver) {
	r.savers = append(r.savers, s)
}

func (r *Registry) Savers() []Saver {
	return r.savers
}
