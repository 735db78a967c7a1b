package rabbitmq

import "context"

// WorkerService is a long-running background unit started by the application.
type WorkerService interface {
	GetServiceName() string
	StartService(ctx context.Context) error
}
