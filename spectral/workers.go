package spectral

import "sync"

// workerMask collects the rows assigned to one worker goroutine.
type workerMask struct {
	rows []int
}

// rowPool runs a per-row job across persistent worker goroutines. Each call to
// run is one generation: every worker processes its rows, then run returns.
type rowPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	step    int
	pending int
	closed  bool
	job     func(row int)
	masks   []workerMask
	wg      sync.WaitGroup
}

// assignRows distributes rows across workers in round robin fashion.
func assignRows(workerCount, rows int) []workerMask {
	if workerCount < 1 {
		workerCount = 1
	}
	if workerCount > rows {
		workerCount = rows
	}
	masks := make([]workerMask, workerCount)
	for row := 0; row < rows; row++ {
		idx := row % workerCount
		masks[idx].rows = append(masks[idx].rows, row)
	}
	return masks
}

func newRowPool(workerCount, rows int) *rowPool {
	p := &rowPool{masks: assignRows(workerCount, rows)}
	p.cond = sync.NewCond(&p.mu)
	p.wg.Add(len(p.masks))
	for i := range p.masks {
		go p.workerLoop(i)
	}
	return p
}

func (p *rowPool) workerLoop(index int) {
	defer p.wg.Done()
	lastStep := 0
	p.mu.Lock()
	for {
		for p.step == lastStep && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		lastStep = p.step
		job := p.job
		rows := p.masks[index].rows
		p.mu.Unlock()

		for _, row := range rows {
			job(row)
		}

		p.mu.Lock()
		p.pending--
		if p.pending == 0 {
			p.cond.Broadcast()
		}
	}
}

// run executes job for every row and waits for all workers to finish.
func (p *rowPool) run(job func(row int)) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		for _, m := range p.masks {
			for _, row := range m.rows {
				job(row)
			}
		}
		return
	}
	p.job = job
	p.pending = len(p.masks)
	p.step++
	p.cond.Broadcast()
	for p.pending > 0 {
		p.cond.Wait()
	}
	p.job = nil
	p.mu.Unlock()
}

// close stops the workers and waits for them to exit.
func (p *rowPool) close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
	p.wg.Wait()
}
