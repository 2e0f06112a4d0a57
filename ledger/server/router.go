package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap-incubator/tinyledger/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/render"
	"github.com/urfave/negroni"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

func createRouter(l *ledger.Ledger, retries uint64) *mux.Router {
	rd := render.New(render.Options{
		IndentJSON: true,
	})

	router := mux.NewRouter()
	apiRouter := router.PathPrefix(apiPrefix).Subrouter()

	accountHandler := newAccountHandler(l, rd)
	apiRouter.HandleFunc("/accounts", accountHandler.List).Methods("GET")
	apiRouter.HandleFunc("/accounts", accountHandler.Post).Methods("POST")
	apiRouter.HandleFunc("/accounts/{id}", accountHandler.Get).Methods("GET")
	apiRouter.HandleFunc("/accounts/{id}/balance", accountHandler.GetBalance).Methods("GET")

	transferHandler := newTransferHandler(l, rd, retries)
	apiRouter.HandleFunc("/transfers", transferHandler.Post).Methods("POST")

	router.Handle("/status", newStatusHandler(l, rd)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	return router
}

// NewHandler returns the HTTP API of l with panic recovery and request logging.
func NewHandler(l *ledger.Ledger, retries uint64) http.Handler {
	n := negroni.New(negroni.NewRecovery(), negroni.HandlerFunc(logRequest))
	n.UseHandler(createRouter(l, retries))
	return n
}

func logRequest(w http.ResponseWriter, r *http.Request, next http.HandlerFunc) {
	start := time.Now()
	next(w, r)
	status := 0
	if rw, ok := w.(negroni.ResponseWriter); ok {
		status = rw.Status()
	}
	log.Debug("http request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.Duration("cost", time.Since(start)))
}
