package services

import (
	"sync"

	"handylink/internal/models"

	"github.com/sirupsen/logrus"
)

// DeliveryTask carries everything a worker needs to attempt channel
// delivery for one persisted notification.
type DeliveryTask struct {
	Recipient    *models.Actor
	Notification *models.Notification
	Template     *models.NotificationTemplate
	Preferences  *models.NotificationPreference
}

// DeliveryQueue decouples request handling from channel delivery. Enqueue
// never blocks; when the buffer is full the task is dropped and the
// notification stays persisted but unsent.
type DeliveryQueue struct {
	tasks   chan DeliveryTask
	deliver func(DeliveryTask)
	workers int
	wg      sync.WaitGroup
	log     *logrus.Logger
}

func NewDeliveryQueue(workers, buffer int, deliver func(DeliveryTask), log *logrus.Logger) *DeliveryQueue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 64
	}
	return &DeliveryQueue{
		tasks:   make(chan DeliveryTask, buffer),
		deliver: deliver,
		workers: workers,
		log:     log,
	}
}

func (q *DeliveryQueue) Start() {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			for task := range q.tasks {
				q.deliver(task)
			}
		}()
	}
}

// Enqueue hands a task to the workers. Returns false when the buffer is full.
func (q *DeliveryQueue) Enqueue(task DeliveryTask) bool {
	select {
	case q.tasks <- task:
		return true
	default:
		q.log.WithFields(logrus.Fields{
			"recipient": task.Recipient.ID.Hex(),
			"type":      task.Notification.Type,
		}).Warn("Delivery queue full, dropping task")
		return false
	}
}

// Shutdown stops accepting tasks and waits for in-flight deliveries.
func (q *DeliveryQueue) Shutdown() {
	close(q.tasks)
	q.wg.Wait()
}
