package server

import (
	"net/http"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap/errors"
	"github.com/unrolled/render"
)

type transferHandler struct {
	ledger  *ledger.Ledger
	rd      *render.Render
	retries uint64
}

// transferInput is both the request and the reply of a transfer.
type transferInput struct {
	From   uint64 `json:"from"`
	To     uint64 `json:"to"`
	Amount int64  `json:"amount"`
}

func newTransferHandler(l *ledger.Ledger, rd *render.Render, retries uint64) *transferHandler {
	return &transferHandler{
		ledger:  l,
		rd:      rd,
		retries: retries,
	}
}

func (h *transferHandler) Post(w http.ResponseWriter, r *http.Request) {
	var input transferInput
	if err := readJSON(r.Body, &input); err != nil {
		badRequest(h.rd, w, err)
		return
	}
	if input.From == 0 || input.To == 0 {
		badRequest(h.rd, w, errors.New("from and to must be set"))
		return
	}
	var err error
	if h.retries > 0 {
		err = ledger.RetryTransfer(r.Context(), h.ledger, ledger.NewBackOff(h.retries), input.From, input.To, input.Amount)
	} else {
		err = h.ledger.Transfer(r.Context(), input.From, input.To, input.Amount)
	}
	if err != nil {
		errorResp(h.rd, w, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, input)
}
