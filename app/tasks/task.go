package tasks

import (
	"context"
)

// Task is a named unit of background work run on a schedule.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}
