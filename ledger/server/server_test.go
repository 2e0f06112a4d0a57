package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pingcap-incubator/tinyledger/ledger"
	"github.com/pingcap-incubator/tinyledger/ledger/config"
	"github.com/pingcap-incubator/tinyledger/ledger/storage"
	"github.com/pingcap-incubator/tinyledger/ledger/storage/storagetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	ts    *httptest.Server
	store *storagetest.FailingStorage
	l     *ledger.Ledger
}

func newTestEnv(t *testing.T, retries uint64) *testEnv {
	fs := storagetest.NewFailingStorage(storage.NewMemStorage())
	l := ledger.New(fs, &config.NewTestConfig().Ledger)
	require.Nil(t, l.Open(context.Background()))
	ts := httptest.NewServer(NewHandler(l, retries))
	t.Cleanup(ts.Close)
	return &testEnv{ts: ts, store: fs, l: l}
}

func (e *testEnv) do(t *testing.T, method, path, body string, out interface{}) int {
	req, err := http.NewRequest(method, e.ts.URL+path, strings.NewReader(body))
	require.Nil(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.Nil(t, err)
	defer resp.Body.Close()
	data, err := ioutil.ReadAll(resp.Body)
	require.Nil(t, err)
	if out != nil {
		require.Nil(t, json.Unmarshal(data, out), string(data))
	}
	return resp.StatusCode
}

func transferBody(from, to uint64, amount int64) string {
	return fmt.Sprintf(`{"from":%d,"to":%d,"amount":%d}`, from, to, amount)
}

func TestAccounts(t *testing.T) {
	e := newTestEnv(t, 0)

	var list []ledger.Account
	assert.Equal(t, http.StatusOK, e.do(t, "GET", "/api/v1/accounts", "", &list))
	assert.Equal(t, []ledger.Account{{ID: 1, Name: "Alice", Balance: 500}, {ID: 2, Name: "Bob", Balance: 300}}, list)

	var acc ledger.Account
	assert.Equal(t, http.StatusCreated, e.do(t, "POST", "/api/v1/accounts", `{"name":"Carol","balance":25}`, &acc))
	assert.Equal(t, ledger.Account{ID: 3, Name: "Carol", Balance: 25}, acc)

	acc = ledger.Account{}
	assert.Equal(t, http.StatusOK, e.do(t, "GET", "/api/v1/accounts/3", "", &acc))
	assert.Equal(t, "Carol", acc.Name)

	var bal balanceOutput
	assert.Equal(t, http.StatusOK, e.do(t, "GET", "/api/v1/accounts/1/balance", "", &bal))
	assert.Equal(t, balanceOutput{ID: 1, Balance: 500}, bal)

	var er errorResponse
	assert.Equal(t, http.StatusNotFound, e.do(t, "GET", "/api/v1/accounts/9", "", &er))
	assert.Equal(t, "not_found", er.Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, "GET", "/api/v1/accounts/abc/balance", "", &er))
	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/api/v1/accounts", `{"name":"","balance":1}`, &er))
	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/api/v1/accounts", `{"name":`, &er))
}

func TestTransfers(t *testing.T) {
	e := newTestEnv(t, 0)

	var out transferInput
	assert.Equal(t, http.StatusOK, e.do(t, "POST", "/api/v1/transfers", transferBody(1, 2, 100), &out))
	assert.Equal(t, transferInput{From: 1, To: 2, Amount: 100}, out)

	var er errorResponse
	assert.Equal(t, http.StatusConflict, e.do(t, "POST", "/api/v1/transfers", transferBody(1, 2, 600), &er))
	assert.Equal(t, "insufficient_funds", er.Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, "POST", "/api/v1/transfers", transferBody(1, 7, 1), &er))
	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/api/v1/transfers", transferBody(1, 1, 1), &er))
	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/api/v1/transfers", transferBody(1, 2, 0), &er))
	assert.Equal(t, http.StatusBadRequest, e.do(t, "POST", "/api/v1/transfers", `{"to":2,"amount":1}`, &er))

	e.store.SetFail(true)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, "POST", "/api/v1/transfers", transferBody(2, 1, 1), &er))
	assert.Equal(t, "commit_failed", er.Code)
	e.store.SetFail(false)

	var list []ledger.Account
	e.do(t, "GET", "/api/v1/accounts", "", &list)
	assert.Equal(t, int64(400), list[0].Balance)
	assert.Equal(t, int64(400), list[1].Balance)
}

func TestTransferRetries(t *testing.T) {
	e := newTestEnv(t, 3)
	e.store.FailNext(2)
	assert.Equal(t, http.StatusOK, e.do(t, "POST", "/api/v1/transfers", transferBody(1, 2, 50), nil))
	bal, err := e.l.GetBalance(2)
	require.Nil(t, err)
	assert.Equal(t, int64(350), bal)
}

func TestStatusAndMetrics(t *testing.T) {
	e := newTestEnv(t, 0)

	var st status
	assert.Equal(t, http.StatusOK, e.do(t, "GET", "/status", "", &st))
	assert.Equal(t, 2, st.Accounts)
	assert.Equal(t, GitHash, st.GitHash)

	e.do(t, "POST", "/api/v1/transfers", transferBody(1, 2, 1), nil)
	resp, err := http.Get(e.ts.URL + "/metrics")
	require.Nil(t, err)
	defer resp.Body.Close()
	body, err := ioutil.ReadAll(resp.Body)
	require.Nil(t, err)
	assert.True(t, bytes.Contains(body, []byte("tinyledger_ledger_transfer_total")))
	assert.True(t, bytes.Contains(body, []byte("tinyledger_store_commit_duration_seconds")))
}

func TestServerStartStop(t *testing.T) {
	l := ledger.New(storage.NewMemStorage(), &config.NewTestConfig().Ledger)
	require.Nil(t, l.Open(context.Background()))
	cfg := config.NewTestConfig().Server
	s := NewServer(&cfg, l)
	assert.Nil(t, s.Stop())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.Nil(t, err)
	done := make(chan error, 1)
	go func() { done <- s.Serve(ln) }()

	url := "http://" + ln.Addr().String() + "/status"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	assert.Nil(t, s.Stop())
	select {
	case err := <-done:
		assert.Nil(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
