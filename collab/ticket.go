package collab

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
)

// shareable session tickets. A ticket carries everything a joiner needs:
// the host peer id and its dialable addresses. The string form is a
// versioned prefix over base32 with no padding, safe to paste anywhere.

const ticketPrefix = "meshdraw1"

var ticketEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

type Ticket struct {
	PeerId Id       `msgpack:"peer_id"`
	Addrs  []string `msgpack:"addrs"`
}

func EncodeTicket(ticket *Ticket) (string, error) {
	data, err := msgpack.Marshal(ticket)
	if err != nil {
		return "", err
	}
	return ticketPrefix + ticketEncoding.EncodeToString(data), nil
}

func RequireEncodeTicket(ticket *Ticket) string {
	s, err := EncodeTicket(ticket)
	if err != nil {
		panic(err)
	}
	return s
}

// DecodeTicket parses a ticket string. A bare peer id is accepted as a
// legacy form with no addresses.
func DecodeTicket(s string) (*Ticket, error) {
	s = strings.TrimSpace(s)
	if data, ok := strings.CutPrefix(s, ticketPrefix); ok {
		raw, err := ticketEncoding.DecodeString(data)
		if err != nil {
			return nil, fmt.Errorf("invalid ticket encoding: %w", err)
		}
		ticket := &Ticket{}
		if err := msgpack.Unmarshal(raw, ticket); err != nil {
			return nil, fmt.Errorf("invalid ticket data: %w", err)
		}
		return ticket, nil
	}

	peerId, err := ParseId(s)
	if err != nil {
		return nil, fmt.Errorf("not a ticket: %s", s)
	}
	return &Ticket{
		PeerId: peerId,
	}, nil
}
