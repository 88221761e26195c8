package ws

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/magnifycash/backend/internal/domain/lending"
	"github.com/magnifycash/backend/internal/transactions"
)

const (
	EventContractDataUpdated  = "contract_data_updated"
	EventTransactionConfirmed = "transaction_confirmed"
)

type event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Notifier turns snapshot and transaction updates into wallet channel events.
type Notifier struct {
	hub *Hub
	log zerolog.Logger
}

func NewNotifier(hub *Hub, log zerolog.Logger) *Notifier {
	return &Notifier{hub: hub, log: log.With().Str("component", "ws_notifier").Logger()}
}

// ContractDataUpdated matches aggregator.Observer.
func (n *Notifier) ContractDataUpdated(wallet string, data *lending.ContractData) {
	n.publish(wallet, EventContractDataUpdated, data)
}

func (n *Notifier) TransactionSettled(wallet string, status transactions.WatchStatus) {
	n.publish(wallet, EventTransactionConfirmed, status)
}

func (n *Notifier) publish(wallet, name string, data any) {
	channel := WalletChannel(wallet)
	if n.hub.Subscribers(channel) == 0 {
		return
	}
	payload, err := json.Marshal(event{Event: name, Data: data})
	if err != nil {
		n.log.Error().Err(err).Str("event", name).Msg("encode realtime event")
		return
	}
	n.hub.Publish(channel, payload)
}
