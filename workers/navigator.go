package workers

import "context"

// Navigator is the slide-navigation surface the reaction workers drive.
// The relay client implements it; tests substitute a recorder.
type Navigator interface {
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	GoTo(ctx context.Context, slide int) error
}
