package transport

import (
	"context"
	"encoding/gob"
	"errors"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"flock/client"
	"flock/ml"
)

const dialTimeout = 10 * time.Second

// Handler is the callback contract the orchestrator drives. *client.Client
// satisfies it.
type Handler interface {
	GetParameters() ml.Parameters
	Fit(params ml.Parameters, cfg client.RoundConfig) (client.FitResult, error)
	Evaluate(params ml.Parameters, cfg client.RoundConfig) (client.EvaluateResult, error)
}

// Runner owns the connection to the orchestrator and dispatches its tasks to
// the handler, one at a time.
type Runner struct {
	clientID string
	addr     string
	handler  Handler
	logger   hclog.Logger
	onResult func(Result)
}

// NewRunner wires a handler to an orchestrator address. onResult, when
// non-nil, observes every result sent back (the diagnostics listener uses
// this); it must not block.
func NewRunner(clientID, addr string, handler Handler, logger hclog.Logger, onResult func(Result)) *Runner {
	return &Runner{
		clientID: clientID,
		addr:     addr,
		handler:  handler,
		logger:   logger.Named("transport"),
		onResult: onResult,
	}
}

// Run connects and serves tasks until the orchestrator closes the stream
// (clean shutdown, returns nil) or ctx is cancelled. Lost connections are
// re-dialed with exponential backoff.
func (r *Runner) Run(ctx context.Context) error {
	for {
		conn, err := r.dial(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("connected", "server", r.addr)

		err = r.serve(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			r.logger.Info("orchestrator closed the stream")
			return nil
		}
		r.logger.Warn("connection lost, reconnecting", "error", err)
	}
}

// dialBackOff never gives up on its own; only ctx cancellation stops the
// redial loop, so a client survives orchestrator outages of any length.
func dialBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 0
	return b
}

func (r *Runner) dial(ctx context.Context) (net.Conn, error) {
	var conn net.Conn
	policy := backoff.WithContext(dialBackOff(), ctx)
	err := backoff.Retry(func() error {
		d := net.Dialer{Timeout: dialTimeout}
		c, err := d.DialContext(ctx, "tcp", r.addr)
		if err != nil {
			r.logger.Debug("dial failed, backing off", "server", r.addr, "error", err)
			return err
		}
		conn = c
		return nil
	}, policy)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (r *Runner) serve(ctx context.Context, conn net.Conn) error {
	defer conn.Close()

	// Unblock the decoder when the context is cancelled.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	enc := gob.NewEncoder(conn)
	dec := gob.NewDecoder(conn)

	if err := enc.Encode(Hello{ClientID: r.clientID}); err != nil {
		return err
	}

	for {
		var task Task
		if err := dec.Decode(&task); err != nil {
			return err
		}

		res := r.dispatch(task)
		if r.onResult != nil {
			r.onResult(res)
		}
		if err := enc.Encode(&res); err != nil {
			return err
		}
	}
}

func (r *Runner) dispatch(task Task) Result {
	res := Result{
		TaskID:   task.ID,
		ClientID: r.clientID,
		Op:       task.Op,
		Round:    task.Round,
	}
	r.logger.Debug("task received", "op", task.Op, "round", task.Round, "task", task.ID)

	switch task.Op {
	case OpGetParameters:
		res.Parameters = r.handler.GetParameters()

	case OpFit:
		fit, err := r.handler.Fit(task.Parameters, task.Config)
		if err != nil {
			res.Err = err.Error()
			break
		}
		res.Parameters = fit.Parameters
		res.NumExamples = fit.NumExamples
		res.Metrics = fit.Metrics

	case OpEvaluate:
		eval, err := r.handler.Evaluate(task.Parameters, task.Config)
		if err != nil {
			res.Err = err.Error()
			break
		}
		res.Loss = eval.Loss
		res.NumExamples = eval.NumExamples
		res.Metrics = eval.Metrics

	default:
		res.Err = "unknown op: " + string(task.Op)
	}

	if res.Err != "" {
		r.logger.Error("task failed", "op", task.Op, "round", task.Round, "error", res.Err)
	}
	return res
}
