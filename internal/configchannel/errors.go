package configchannel

import "errors"

var (
	// ErrUnsupportedEvent is returned when Handle is given an event that is
	// not a card-config-change event.
	ErrUnsupportedEvent = errors.New("event is not a card-config-change event")
	// ErrMalformedConfig is returned when a decrypted card-config-change
	// payload does not parse as a CardConfigDocument.
	ErrMalformedConfig = errors.New("malformed card-config document")
)
