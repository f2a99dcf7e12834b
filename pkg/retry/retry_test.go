package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/widjis/attend-now-report-view-sub001/pkg/retry"
)

func fast() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 4 * time.Millisecond, Timeout: time.Second}
}

func TestPolicyDo(t *testing.T) {
	Convey("Given a three attempt policy", t, func() {
		ctx := context.Background()
		p := fast()

		Convey("When the call fails twice then succeeds", func() {
			calls := 0
			err := p.Do(ctx, func(context.Context) error {
				calls++
				if calls < 3 {
					return errors.New("transient")
				}
				return nil
			})
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 3)
		})

		Convey("When every attempt fails", func() {
			calls := 0
			boom := errors.New("db down")
			err := p.Do(ctx, func(context.Context) error {
				calls++
				return boom
			})
			So(calls, ShouldEqual, 3)
			So(errors.Is(err, boom), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "after 3 attempts")
		})

		Convey("When the error is permanent", func() {
			calls := 0
			err := p.Do(ctx, func(context.Context) error {
				calls++
				return retry.Permanent(errors.New("bad request"))
			})
			So(calls, ShouldEqual, 1)
			So(errors.Is(err, retry.ErrPermanent), ShouldBeTrue)
		})

		Convey("When an attempt exceeds the timeout", func() {
			p.Timeout = 5 * time.Millisecond
			p.MaxAttempts = 1
			err := p.Do(ctx, func(actx context.Context) error {
				<-actx.Done()
				return actx.Err()
			})
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
		})

		Convey("When the parent context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			calls := 0
			err := p.Do(cctx, func(context.Context) error {
				calls++
				return errors.New("x")
			})
			So(calls, ShouldEqual, 1)
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
		})
	})
}

func TestBackoff(t *testing.T) {
	Convey("Given an exponential policy", t, func() {
		p := retry.Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: 350 * time.Millisecond}
		So(p.Backoff(1), ShouldEqual, 100*time.Millisecond)
		So(p.Backoff(2), ShouldEqual, 200*time.Millisecond)
		So(p.Backoff(3), ShouldEqual, 350*time.Millisecond)
		So(p.Backoff(4), ShouldEqual, 350*time.Millisecond)
		So(retry.Policy{InitialBackoff: time.Second}.Backoff(4), ShouldEqual, 8*time.Second)
		So(retry.Default().MaxAttempts, ShouldEqual, 3)
	})
}
