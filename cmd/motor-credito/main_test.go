package main

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type recorder struct {
	calls []string
}

type fakeServer struct {
	r   *recorder
	err error
}

func (f fakeServer) Shutdown(context.Context) error {
	f.r.calls = append(f.r.calls, "server")
	return f.err
}

type fakeWorker struct {
	r *recorder
}

func (f fakeWorker) Stop() error {
	f.r.calls = append(f.r.calls, "worker")
	return nil
}

func TestShutdownOrder(t *testing.T) {
	t.Run("ServerBeforeWorker", func(t *testing.T) {
		r := &recorder{}
		shutdown(context.Background(), fakeServer{r: r}, fakeWorker{r: r})

		if want := []string{"server", "worker"}; !reflect.DeepEqual(r.calls, want) {
			t.Errorf("expected %v, got %v", want, r.calls)
		}
	})

	t.Run("WorkerStopsAfterServerError", func(t *testing.T) {
		r := &recorder{}
		shutdown(context.Background(), fakeServer{r: r, err: errors.New("deadline exceeded")}, fakeWorker{r: r})

		if len(r.calls) != 2 || r.calls[1] != "worker" {
			t.Errorf("expected the worker to stop anyway, got %v", r.calls)
		}
	})

	t.Run("NoWorker", func(t *testing.T) {
		r := &recorder{}
		shutdown(context.Background(), fakeServer{r: r}, nil)

		if len(r.calls) != 1 {
			t.Errorf("expected only the server to shut down, got %v", r.calls)
		}
	})
}
