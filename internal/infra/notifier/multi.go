package notifier

import (
	"context"
	"errors"
)

// MultiNotifier fans an alert out to several notifiers.
type MultiNotifier []Notifier

// New combines the given notifiers, dropping nils. It returns NoOpNotifier
// when none remain and the notifier itself when only one does.
func New(notifiers ...Notifier) Notifier {
	var out MultiNotifier
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	switch len(out) {
	case 0:
		return NoOpNotifier{}
	case 1:
		return out[0]
	}
	return out
}

// NotifyEndpoint sends to every notifier and joins their errors.
func (m MultiNotifier) NotifyEndpoint(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyEndpoint(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
