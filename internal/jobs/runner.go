package jobs

import (
	"context"
	"log"
	"time"
)

// Task is one periodic job. Run is invoked on every tick; errors are logged
// and the loop keeps going.
type Task struct {
	Name  string
	Every time.Duration
	Run   func(ctx context.Context) error
}

// Runner drives tasks on plain tickers. Stopping is cooperative through the
// context handed to Start, so the batch functions stay directly callable
// from tests and from the on-demand jobs endpoints.
type Runner struct {
	tasks []Task
}

func NewRunner() *Runner {
	return &Runner{}
}

func (r *Runner) Add(task Task) {
	r.tasks = append(r.tasks, task)
}

// Start launches one goroutine per task and returns immediately.
func (r *Runner) Start(ctx context.Context) {
	for _, task := range r.tasks {
		go r.loop(ctx, task)
	}
}

func (r *Runner) loop(ctx context.Context, task Task) {
	log.Printf("job %q running every %s", task.Name, task.Every)
	ticker := time.NewTicker(task.Every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("job %q stopped", task.Name)
			return
		case <-ticker.C:
			if err := task.Run(ctx); err != nil {
				log.Printf("job %q failed: %v", task.Name, err)
			}
		}
	}
}
