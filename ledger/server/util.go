package server

import (
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap/errors"
	"github.com/unrolled/render"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func readJSON(r io.ReadCloser, data interface{}) error {
	defer r.Close()

	b, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.WithStack(err)
	}
	err = json.Unmarshal(b, data)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func parseUint64VarsField(vars map[string]string, varName string) (uint64, error) {
	str, ok := vars[varName]
	if !ok {
		return 0, errors.Errorf("field %s not present", varName)
	}
	parsed, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, errors.Errorf("field %s is not an unsigned integer: %s", varName, str)
	}
	return parsed, nil
}

func accountID(r *http.Request) (uint64, error) {
	return parseUint64VarsField(mux.Vars(r), "id")
}

func badRequest(rd *render.Render, w http.ResponseWriter, err error) {
	rd.JSON(w, http.StatusBadRequest, errorResponse{Code: "invalid_input", Message: err.Error()})
}

// errorResp maps a ledger error to its status code.
func errorResp(rd *render.Render, w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal"
	cause := errors.Cause(err)
	switch cause.(type) {
	case *ledger.ErrAccountNotFound:
		status, code = http.StatusNotFound, "not_found"
	case *ledger.ErrInsufficientFunds:
		status, code = http.StatusConflict, "insufficient_funds"
	case *ledger.ErrCommitFailed:
		status, code = http.StatusServiceUnavailable, "commit_failed"
	default:
		switch cause {
		case ledger.ErrSameAccount, ledger.ErrInvalidAmount, ledger.ErrInvalidName:
			status, code = http.StatusBadRequest, "invalid_input"
		case ledger.ErrBalanceOverflow:
			status, code = http.StatusConflict, "balance_overflow"
		}
	}
	rd.JSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
