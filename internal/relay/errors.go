package relay

import "fmt"

// Kind labels a relay failure in logs and error reports.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindParse         Kind = "parse"
	KindDelivery      Kind = "delivery"
	KindForward       Kind = "forward"
)

// ConfigurationError reports a missing or invalid configuration value. It is
// the only error Handle returns to its caller.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s %s", e.Field, e.Reason)
}

// Kind returns KindConfiguration.
func (e *ConfigurationError) Kind() Kind { return KindConfiguration }

// ParseError reports a raw message that could not be decoded.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Kind returns KindParse.
func (e *ParseError) Kind() Kind { return KindParse }

// DeliveryError reports a notification the webhook did not accept.
type DeliveryError struct {
	Notifier string
	Err      error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error: %s notification failed: %v", e.Notifier, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Kind returns KindDelivery.
func (e *DeliveryError) Kind() Kind { return KindDelivery }

// ForwardError reports a failure forwarding the raw message to the
// secondary mailbox.
type ForwardError struct {
	Forwarder string
	Address   string
	Err       error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward error: %s forward to %s failed: %v", e.Forwarder, e.Address, e.Err)
}

func (e *ForwardError) Unwrap() error { return e.Err }

// Kind returns KindForward.
func (e *ForwardError) Kind() Kind { return KindForward }

// kinded is implemented by every relay error.
type kinded interface {
	error
	Kind() Kind
}
