package record

import "errors"

// Errores del store replicado.
var (
	// ErrNotFound el record no existe en el primario. El primario es
	// autoritativo para existencia: fatal para esa lectura puntual.
	ErrNotFound = errors.New("record: not found")

	// ErrInvalidInput variante de creación incoherente.
	ErrInvalidInput = errors.New("record: invalid create input")

	// ErrBranchUnavailable conexión de branch rechazada / auth fallida /
	// branch todavía inicializando. Nunca fatal para una escritura: se
	// degrada a status main-only o provenance main. Se exporta para que
	// los adapters puedan clasificar, no para que cruce el boundary.
	ErrBranchUnavailable = errors.New("record: branch unavailable")

	// ErrBranchingDisabled no hay provisioner configurado.
	ErrBranchingDisabled = errors.New("record: branching not configured")
)
