package worker_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"
	queue "github.com/widjis/attend-now-report-view-sub001/internal/adapters/mq/queue"
	worker "github.com/widjis/attend-now-report-view-sub001/internal/adapters/mq/worker"
)

type mockQueue struct {
	tasks chan queue.Task
}

func newMockQueue() *mockQueue {
	return &mockQueue{tasks: make(chan queue.Task, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan queue.Task {
	return mq.tasks
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a running worker", t, func() {
		q := newMockQueue()
		w := worker.NewInMemoryWorker(q, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When a task is queued", func() {
			ran := make(chan struct{})
			q.tasks <- func(context.Context) { close(ran) }

			convey.Convey("Then it runs", func() {
				select {
				case <-ran:
				case <-time.After(time.Second):
				}
				convey.So(isClosed(ran), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a task panics", func() {
			q.tasks <- func(context.Context) { panic("boom") }
			ran := make(chan struct{})
			q.tasks <- func(context.Context) { close(ran) }

			convey.Convey("Then the worker keeps going", func() {
				select {
				case <-ran:
				case <-time.After(time.Second):
				}
				convey.So(isClosed(ran), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When shutting down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second)
			defer shutdownCancel()

			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
			convey.So(w.Shutdown(shutdownCtx), convey.ShouldBeNil)
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over an in-memory queue", t, func() {
		q := queue.NewInMemoryQueue(queue.WithCapacity(100))
		pool := worker.NewPool(4, q)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.So(pool.Size(), convey.ShouldEqual, 4)

		convey.Convey("When many tasks are submitted", func() {
			var count atomic.Int64
			var wg sync.WaitGroup
			for i := 0; i < 50; i++ {
				wg.Add(1)
				task := func(context.Context) {
					defer wg.Done()
					count.Add(1)
				}
				if !pool.Submit(ctx, task) {
					task(ctx)
				}
			}
			wg.Wait()

			convey.Convey("Then each runs once", func() {
				convey.So(count.Load(), convey.ShouldEqual, 50)
			})
		})

		convey.Convey("When a task is submitted with a value-carrying context", func() {
			type key struct{}
			got := make(chan any, 1)
			valCtx := context.WithValue(ctx, key{}, "run-1")
			convey.So(pool.Submit(valCtx, func(c context.Context) { got <- c.Value(key{}) }), convey.ShouldBeTrue)

			convey.Convey("Then the task sees the submitter's context", func() {
				convey.So(<-got, convey.ShouldEqual, "run-1")
			})
		})

		convey.Convey("When the pool shuts down", func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()

			convey.So(pool.Shutdown(shutdownCtx), convey.ShouldBeNil)

			convey.Convey("Then later submissions are refused", func() {
				convey.So(pool.Submit(ctx, func(context.Context) {}), convey.ShouldBeFalse)
			})
		})
	})

	convey.Convey("Given a pool with the default size", t, func() {
		pool := worker.NewPool(0, queue.NewInMemoryQueue())
		convey.So(pool.Size(), convey.ShouldBeGreaterThan, 0)
	})
}

func isClosed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
