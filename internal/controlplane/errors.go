package controlplane

import (
	"errors"
	"fmt"
)

// Errores del cliente de control plane.
var (
	// ErrMissingCredentials indica que faltan las API keys o el cluster ID.
	// Fatal en construcción, nunca se reintenta.
	ErrMissingCredentials = errors.New("controlplane: missing credentials or cluster id")

	// ErrChallengeMalformed indica un challenge Digest sin realm o nonce.
	// Fatal para ese request puntual.
	ErrChallengeMalformed = errors.New("controlplane: digest challenge missing realm or nonce")
)

// ProvisioningError es un status no-2xx del control plane.
// Se expone al caller tal cual: el caller decide si degrada a
// primary-only.
type ProvisioningError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("controlplane: %s failed: status=%d body=%s", e.Op, e.StatusCode, e.Body)
}

// IsProvisioningFailed helper para verificar si el error vino del control plane.
func IsProvisioningFailed(err error) bool {
	var pe *ProvisioningError
	return errors.As(err, &pe)
}
