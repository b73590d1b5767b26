package events

import (
	"context"
	"errors"
)

// Sink receives committed events.
type Sink interface {
	Notify(ctx context.Context, evs ...Event) error
}

// Fanout delivers events to every sink in order. A failing sink does not stop the others.
type Fanout []Sink

func (f Fanout) Notify(ctx context.Context, evs ...Event) error {
	var errs []error
	for _, s := range f {
		if err := s.Notify(ctx, evs...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
