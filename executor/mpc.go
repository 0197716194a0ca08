//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package executor

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/markkurossi/mpsi/coord"
	"github.com/markkurossi/mpsi/env"
	"github.com/markkurossi/mpsi/link"
	"github.com/markkurossi/mpsi/retcode"
	"github.com/markkurossi/mpsi/task"
)

// Algorithm function types.
const (
	FunctionStatistics = "STATISTICS"
	FunctionArithmetic = "ARITHMETIC"
)

// Statistics operations.
const (
	OpMax = "MAX"
	OpMin = "MIN"
	OpSum = "SUM"
	OpAvg = "AVG"
)

// CodeStatistics is the task code of MPC statistics tasks.
const CodeStatistics = "mpc_statistics"

// Evaluator evaluates the MPC operation of the task over the local
// party's input. The colRows specify the per-column row counts.
type Evaluator interface {
	Evaluate(ctx context.Context, t *task.Task, input []float64,
		colRows []int64) ([]float64, error)
}

// MPCExecutor executes MPC statistics with the auxiliary compute
// node.
type MPCExecutor struct {
	config    *env.Config
	task      *task.Task
	channel   link.Channel
	evaluator Evaluator
	recruiter *coord.Recruiter
	log       logr.Logger
}

// NewMPCExecutor creates a new MPC executor for the task. The task
// is cloned and the auxiliary compute node is added to its party
// access info.
func NewMPCExecutor(config *env.Config, t *task.Task, ch link.Channel,
	evaluator Evaluator) (*MPCExecutor, error) {

	t = t.Clone()
	if err := coord.AddAuxiliaryComputeServer(t); err != nil {
		return nil, retcode.Wrap(retcode.ErrConfig, err)
	}
	if _, err := t.Self(); err != nil {
		return nil, err
	}
	t.Code = CodeStatistics

	return &MPCExecutor{
		config:    config,
		task:      t,
		channel:   ch,
		evaluator: evaluator,
		log:       config.GetLogger().WithName("mpc"),
	}, nil
}

// Task returns the executor's task descriptor.
func (e *MPCExecutor) Task() *task.Task {
	return e.task
}

// SetStatisticsOperation sets the task algorithm to the statistics
// operation.
func (e *MPCExecutor) SetStatisticsOperation(op string) error {
	switch op {
	case OpMax, OpMin, OpSum, OpAvg:
	default:
		return retcode.Configf("unsupported statistics operation: %s", op)
	}
	e.task.Algorithm = task.Algorithm{
		FunctionType: FunctionStatistics,
		StatisticsOp: op,
	}
	return nil
}

// SetArithmeticOperation sets the task algorithm to the arithmetic
// operation.
func (e *MPCExecutor) SetArithmeticOperation(op string) error {
	if len(op) == 0 {
		return retcode.Configf("empty arithmetic operation")
	}
	e.task.Algorithm = task.Algorithm{
		FunctionType: FunctionArithmetic,
		ArithmeticOp: op,
	}
	return nil
}

// Max computes the maximum of the parties' inputs.
func (e *MPCExecutor) Max(ctx context.Context, input []float64) (
	[]float64, error) {
	return e.statistics(ctx, OpMax, input)
}

// Min computes the minimum of the parties' inputs.
func (e *MPCExecutor) Min(ctx context.Context, input []float64) (
	[]float64, error) {
	return e.statistics(ctx, OpMin, input)
}

// Sum computes the sum of the parties' inputs.
func (e *MPCExecutor) Sum(ctx context.Context, input []float64) (
	[]float64, error) {
	return e.statistics(ctx, OpSum, input)
}

// Avg computes the average of the parties' inputs.
func (e *MPCExecutor) Avg(ctx context.Context, input []float64) (
	[]float64, error) {
	return e.statistics(ctx, OpAvg, input)
}

func (e *MPCExecutor) statistics(ctx context.Context, op string,
	input []float64) ([]float64, error) {

	self, err := e.task.Self()
	if err != nil {
		return nil, err
	}
	session := link.NewSession(e.channel, e.task.Identity, self)

	nego := coord.NewNegotiator(e.config, e.task, session)
	if _, err := nego.Negotiate(ctx); err != nil {
		return nil, err
	}
	session = session.WithID(e.task.Identity)

	if err := e.SetStatisticsOperation(op); err != nil {
		return nil, err
	}
	e.recruiter = coord.NewRecruiter(e.config, e.task, session)
	if err := e.recruiter.Invite(ctx); err != nil {
		return nil, err
	}
	err = e.recruiter.BroadcastShape(ctx, []int64{1, int64(len(input))})
	if err != nil {
		return nil, err
	}
	e.log.V(5).Info("statistics task", "party", e.task.PartyName,
		"op", op, "identity", e.task.Identity.String())

	result, err := e.evaluator.Evaluate(ctx, e.task, input,
		make([]int64, len(input)))
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	return result, nil
}

// Close stops the auxiliary compute node of the last operation.
func (e *MPCExecutor) Close(ctx context.Context) {
	if e.recruiter != nil {
		e.recruiter.Stop(ctx)
		e.recruiter = nil
	}
}

// LocalEvaluator evaluates the statistics operations over the local
// input only.
type LocalEvaluator struct {
}

// Evaluate implements Evaluator.Evaluate.
func (l *LocalEvaluator) Evaluate(ctx context.Context, t *task.Task,
	input []float64, colRows []int64) ([]float64, error) {

	if t.Algorithm.FunctionType != FunctionStatistics {
		return nil, retcode.Configf("unsupported function type: %s",
			t.Algorithm.FunctionType)
	}
	if len(input) == 0 {
		return nil, retcode.Configf("empty input")
	}
	result := input[0]
	switch t.Algorithm.StatisticsOp {
	case OpMax:
		for _, v := range input[1:] {
			result = max(result, v)
		}
	case OpMin:
		for _, v := range input[1:] {
			result = min(result, v)
		}
	case OpSum, OpAvg:
		for _, v := range input[1:] {
			result += v
		}
		if t.Algorithm.StatisticsOp == OpAvg {
			result /= float64(len(input))
		}
	default:
		return nil, retcode.Configf("unsupported statistics operation: %s",
			t.Algorithm.StatisticsOp)
	}
	return []float64{result}, nil
}
