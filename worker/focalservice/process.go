package focalservice

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/nci/gfocal/processor"
	"github.com/nci/gfocal/utils"
)

type ErrorMsg struct {
	Address string
	Replace bool
	Error   error
}

type Task struct {
	Payload *FocalTask
	Resp    chan *FocalResult
	Error   chan error
}

// NewTask returns a task whose reply channels never block the worker.
func NewTask(payload *FocalTask) *Task {
	return &Task{Payload: payload, Resp: make(chan *FocalResult, 1), Error: make(chan error, 1)}
}

// Process is a pool worker consuming the shared task queue.
type Process struct {
	Address     string
	TaskQueue   chan *Task
	ErrorMsg    chan *ErrorMsg
	Concurrency int
	Debug       bool
}

func NewProcess(addr string, tQueue chan *Task, errChan chan *ErrorMsg, concurrency int, debug bool) *Process {
	return &Process{Address: addr, TaskQueue: tQueue, ErrorMsg: errChan, Concurrency: concurrency, Debug: debug}
}

func (p *Process) Start() {
	go p.serve()
}

func (p *Process) serve() {
	var current *Task
	defer func() {
		if r := recover(); r != nil {
			if current != nil {
				current.Error <- fmt.Errorf("worker %s panicked: %v", p.Address, r)
			}
			p.ErrorMsg <- &ErrorMsg{p.Address, true, fmt.Errorf("panic: %v", r)}
		}
	}()

	for task := range p.TaskQueue {
		current = task
		res := p.Run(task.Payload)
		if p.Debug {
			log.Printf("%s: task %s done in %v: %s", p.Address, res.Id, time.Duration(res.DurationNs), res.Error)
		}
		task.Resp <- res
		current = nil
	}
}

// Run computes one focal task. Failures are reported in FocalResult.Error,
// which is "OK" on success.
func (p *Process) Run(task *FocalTask) *FocalResult {
	t0 := time.Now()
	res := &FocalResult{Id: task.Id, Error: "OK"}
	fail := func(err error) *FocalResult {
		res.Error = err.Error()
		res.Precondition = processor.IsPrecondition(err) || errors.Is(err, utils.ErrMalformedGrid)
		res.DurationNs = int64(time.Since(t0))
		return res
	}

	g, err := task.Grid.ToGrid()
	if err != nil {
		return fail(err)
	}
	stat, err := processor.ParseStatistic(task.Statistic)
	if err != nil {
		return fail(err)
	}
	boundary, err := processor.ParseBoundary(task.Boundary)
	if err != nil {
		return fail(err)
	}

	fp := processor.NewFocalProcessor(processor.WithConcurrency(p.Concurrency))
	out, err := fp.Apply(g, processor.WindowSpec{Size: int(task.WindowSize)}, stat, boundary)
	if err != nil {
		return fail(err)
	}

	res.Grid = NewGridMessage(out)
	res.DurationNs = int64(time.Since(t0))
	return res
}
