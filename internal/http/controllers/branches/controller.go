// Package branches contiene el controller admin de branches: vista
// directa del control plane, sin pasar por records.
package branches

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/ramify/internal/controlplane"
	"github.com/dropDatabas3/ramify/internal/http/dto/records"
	httperrors "github.com/dropDatabas3/ramify/internal/http/errors"
	"github.com/dropDatabas3/ramify/internal/http/helpers"
)

type Controller struct {
	prov controlplane.Provisioner
}

func NewController(prov controlplane.Provisioner) *Controller {
	return &Controller{prov: prov}
}

// List maneja GET /v1/branches.
func (c *Controller) List(w http.ResponseWriter, r *http.Request) {
	if c.prov == nil {
		httperrors.WriteError(w, httperrors.ErrBranchingDisabled)
		return
	}
	bs, err := c.prov.ListBranches(r.Context())
	if err != nil {
		writeProvError(w, err)
		return
	}
	out := make([]records.BranchInfo, 0, len(bs))
	for _, b := range bs {
		out = append(out, records.BranchInfo{
			BranchID:    b.ID,
			DisplayName: b.DisplayName,
			Endpoint:    b.Endpoint,
			State:       b.State,
		})
	}
	helpers.WriteJSON(w, http.StatusOK, map[string]any{"branches": out})
}

// Delete maneja DELETE /v1/branches/{branchID}.
func (c *Controller) Delete(w http.ResponseWriter, r *http.Request) {
	if c.prov == nil {
		httperrors.WriteError(w, httperrors.ErrBranchingDisabled)
		return
	}
	branchID := chi.URLParam(r, "branchID")
	if err := c.prov.DeleteBranch(r.Context(), branchID); err != nil {
		writeProvError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeProvError(w http.ResponseWriter, err error) {
	if controlplane.IsProvisioningFailed(err) {
		httperrors.WriteError(w, httperrors.ErrProvisioningFailed.WithDetail(err.Error()))
		return
	}
	httperrors.WriteError(w, err)
}
