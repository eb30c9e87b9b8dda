package coordinator_test

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/opguard/connguard"
	"github.com/jonwraymond/opguard/coordinator"
	"github.com/jonwraymond/opguard/outcome"
)

func ExampleExecute() {
	guard := connguard.New(connguard.AlwaysReachable(), connguard.Config{})
	c := coordinator.New(guard)

	out := coordinator.Execute(context.Background(), c, "B1", 2*time.Second, func(ctx context.Context) (bool, error) {
		return true, nil
	})

	v, _ := out.Value()
	fmt.Println(out.Kind(), v)
	// Output:
	// success true
}

func ExampleExecute_disconnected() {
	offline := connguard.ProbeFuncs{
		ReachableFunc: func(context.Context) bool { return false },
	}
	c := coordinator.New(connguard.New(offline, connguard.Config{}))

	out := coordinator.Execute(context.Background(), c, "T7", 2*time.Second, func(ctx context.Context) (bool, error) {
		return true, nil
	})

	fmt.Println(out.Kind(), out.Started())
	fmt.Println(errors.Is(out.Err(), connguard.ErrNotConnected))
	// Output:
	// connection_lost false
	// true
}

func ExampleExecute_failure() {
	c := coordinator.New(nil)
	notFound := errors.New("NotFound")

	out := coordinator.Execute(context.Background(), c, "B3", 5*time.Second, func(ctx context.Context) (bool, error) {
		return false, notFound
	})

	fmt.Println(out)
	fmt.Println(outcome.Message(out.Kind()) != "")
	// Output:
	// failure: NotFound
	// true
}
