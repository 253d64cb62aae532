package focalservice

import (
	"fmt"
	"log"
)

const defaultQueueSize = 400

type ProcessPool struct {
	Pool      []*Process
	TaskQueue chan *Task
	ErrorMsg  chan *ErrorMsg
}

// AddQueue enqueues task, failing fast once the queue is nearly full.
func (p *ProcessPool) AddQueue(task *Task) error {
	if len(p.TaskQueue) >= cap(p.TaskQueue)-cap(p.TaskQueue)/40 {
		return fmt.Errorf("Pool TaskQueue is full")
	}
	select {
	case p.TaskQueue <- task:
		return nil
	default:
		return fmt.Errorf("Pool TaskQueue is full")
	}
}

// CreateProcessPool starts n workers. Each worker runs one task at a time
// using up to concurrency goroutines.
func CreateProcessPool(n, concurrency int, debug bool) (*ProcessPool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("pool size must be positive, got %d", n)
	}

	p := &ProcessPool{[]*Process{}, make(chan *Task, defaultQueueSize), make(chan *ErrorMsg, n)}

	go func() {
		for err := range p.ErrorMsg {
			if !err.Replace {
				log.Printf("Process: %v, %v", err.Address, err.Error)
				continue
			}
			log.Printf("Process: %v, %v, restarting...", err.Address, err.Error)
			for ip, proc := range p.Pool {
				if err.Address == proc.Address {
					p.Pool[ip] = NewProcess(proc.Address, p.TaskQueue, p.ErrorMsg, concurrency, debug)
					p.Pool[ip].Start()
					break
				}
			}
		}
	}()

	for i := 0; i < n; i++ {
		proc := NewProcess(fmt.Sprintf("worker%d", i), p.TaskQueue, p.ErrorMsg, concurrency, debug)
		proc.Start()
		p.Pool = append(p.Pool, proc)
	}

	return p, nil
}
