package stompy

import "github.com/pkg/errors"

// AckMode governs how messages received on a subscription are
// acknowledged. The zero value is AckAuto.
type AckMode int

const (
	// AckAuto means the broker considers a message acknowledged as soon
	// as it is sent; the client never emits ACK or NACK.
	AckAuto AckMode = iota

	// AckClient means the client acknowledges messages cumulatively.
	AckClient

	// AckClientIndividual means the client acknowledges each message
	// individually.
	AckClientIndividual
)

// String returns the header value for the ack mode.
func (a AckMode) String() string {
	switch a {
	case AckClient:
		return "client"
	case AckClientIndividual:
		return "client-individual"
	default:
		return "auto"
	}
}

// ParseAckMode converts an ack header value into an AckMode.
func ParseAckMode(value string) (AckMode, error) {
	switch value {
	case "auto":
		return AckAuto, nil
	case "client":
		return AckClient, nil
	case "client-individual":
		return AckClientIndividual, nil
	}
	return AckAuto, errors.Errorf("invalid ack mode %q", value)
}
