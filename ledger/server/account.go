package server

import (
	"net/http"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/unrolled/render"
)

type accountHandler struct {
	ledger *ledger.Ledger
	rd     *render.Render
}

type createAccountInput struct {
	Name    string `json:"name"`
	Balance int64  `json:"balance"`
}

type balanceOutput struct {
	ID      uint64 `json:"id"`
	Balance int64  `json:"balance"`
}

func newAccountHandler(l *ledger.Ledger, rd *render.Render) *accountHandler {
	return &accountHandler{
		ledger: l,
		rd:     rd,
	}
}

func (h *accountHandler) List(w http.ResponseWriter, r *http.Request) {
	h.rd.JSON(w, http.StatusOK, h.ledger.ListAccounts())
}

func (h *accountHandler) Post(w http.ResponseWriter, r *http.Request) {
	var input createAccountInput
	if err := readJSON(r.Body, &input); err != nil {
		badRequest(h.rd, w, err)
		return
	}
	acc, err := h.ledger.CreateAccount(r.Context(), input.Name, input.Balance)
	if err != nil {
		errorResp(h.rd, w, err)
		return
	}
	h.rd.JSON(w, http.StatusCreated, acc)
}

func (h *accountHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		badRequest(h.rd, w, err)
		return
	}
	acc, err := h.ledger.GetAccount(id)
	if err != nil {
		errorResp(h.rd, w, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, acc)
}

func (h *accountHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	id, err := accountID(r)
	if err != nil {
		badRequest(h.rd, w, err)
		return
	}
	balance, err := h.ledger.GetBalance(id)
	if err != nil {
		errorResp(h.rd, w, err)
		return
	}
	h.rd.JSON(w, http.StatusOK, balanceOutput{ID: id, Balance: balance})
}
