package ws

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/magnifycash/backend/internal/aggregator"
	"github.com/magnifycash/backend/internal/domain/lending"
	"github.com/magnifycash/backend/internal/transactions"
)

const testWallet = "0x1111111111111111111111111111111111111111"

type staticPeeker struct {
	data *lending.ContractData
}

func (p staticPeeker) Peek(context.Context, string) aggregator.View {
	return aggregator.View{Data: p.data}
}

func receiveEvent(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var raw string
	require.NoError(t, websocket.Message.Receive(conn, &raw))
	var out map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestWebSocketStreamsWalletEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	snapshot := &lending.ContractData{LoanToken: "0x79a02482a880bce3f13e09da970dc34db4cd24d1", TierCount: 1, NFTInfo: lending.NFTInfo{TokenID: big.NewInt(0)}}
	handler := NewHandler(hub, staticPeeker{data: snapshot}, zerolog.Nop())

	r := gin.New()
	r.GET("/v1/ws", func(c *gin.Context) { c.Set("wallet", testWallet) }, handler.HandleWebSocket)
	srv := httptest.NewServer(r)
	defer srv.Close()

	conn, err := websocket.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/ws", "", "http://localhost/")
	require.NoError(t, err)
	defer conn.Close()

	greeting := receiveEvent(t, conn)
	assert.JSONEq(t, `"contract_data_updated"`, string(greeting["event"]))

	notifier := NewNotifier(hub, zerolog.Nop())
	notifier.TransactionSettled(testWallet, transactions.WatchStatus{TransactionID: "stub-1", State: transactions.StateConfirmed, IsSuccess: true})
	settled := receiveEvent(t, conn)
	assert.JSONEq(t, `"transaction_confirmed"`, string(settled["event"]))
	assert.Contains(t, string(settled["data"]), `"stub-1"`)

	require.NoError(t, websocket.Message.Send(conn, `{"action":"ping"}`))
	pong := receiveEvent(t, conn)
	assert.JSONEq(t, `"pong"`, string(pong["event"]))
}

func TestWebSocketRequiresWallet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/v1/ws", NewHandler(NewHub(), nil, zerolog.Nop()).HandleWebSocket)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/v1/ws", nil))
	assert.Equal(t, 401, w.Code)
}

func TestNotifierSkipsWalletsWithoutSubscribers(t *testing.T) {
	hub := NewHub()
	other := NewClient(nil, "0xother")
	hub.Subscribe(WalletChannel("0xother"), other)

	NewNotifier(hub, zerolog.Nop()).ContractDataUpdated(testWallet, &lending.ContractData{})

	assert.Empty(t, other.out)
}
