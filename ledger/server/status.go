package server

import (
	"net/http"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/unrolled/render"
)

// GitHash is set at link time.
var GitHash = "None"

type status struct {
	GitHash  string `json:"git_hash"`
	Accounts int    `json:"accounts"`
}

type statusHandler struct {
	ledger *ledger.Ledger
	rd     *render.Render
}

func newStatusHandler(l *ledger.Ledger, rd *render.Render) *statusHandler {
	return &statusHandler{
		ledger: l,
		rd:     rd,
	}
}

func (h *statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.rd.JSON(w, http.StatusOK, status{
		GitHash:  GitHash,
		Accounts: len(h.ledger.ListAccounts()),
	})
}
