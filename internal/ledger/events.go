package ledger

import "github.com/ethereum/go-ethereum/common"

// Event is a journaled log entry emitted by a contract.
type Event struct {
	Address common.Address    `json:"address"`
	Name    string            `json:"name"`
	Fields  map[string]string `json:"fields,omitempty"`
	Data    []byte            `json:"data,omitempty"`
}

// Field returns a named field or "".
func (e Event) Field(name string) string {
	return e.Fields[name]
}

// Emit appends an event to the running transaction. Events emitted inside
// a Try that fails are discarded with the rest of its effects.
func (l *Ledger) Emit(addr common.Address, name string, fields map[string]string, data []byte) error {
	if err := l.Charge(GasEvent); err != nil {
		return err
	}
	n := len(l.events)
	l.events = append(l.events, Event{Address: addr, Name: name, Fields: fields, Data: data})
	l.Record(func() { l.events = l.events[:n] })
	return nil
}

// Events returns the events emitted so far by the running transaction.
func (l *Ledger) Events() []Event {
	return append([]Event(nil), l.events...)
}
