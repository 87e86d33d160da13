// Package job runs command graphs as supervised operating-system process
// groups and tracks them through job control.
package job

import (
	"sort"
)

// State is the lifecycle of a job: Running -> {Stopped, Done},
// Stopped -> Running -> ... Done is terminal.
type State int

const (
	Running State = iota
	Stopped
	Done
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Done:
		return "Done"
	default:
		return "Running"
	}
}

// Job is one pipeline's process group, tracked from spawn until it is
// reported Done. Ownership of OS processes is by pid/pgid, never by live
// handles.
type Job struct {
	ID    int
	Pgid  int
	Line  string
	State State

	// Pids are the spawned stage pids in pipeline order.
	Pids []int

	// statuses holds one exit status per stage, set as stages complete.
	// Stages aborted before spawn get their status at build time.
	statuses []int
	// pending maps live pids to their stage index.
	pending map[int]int
}

func newJob(line string, stages int) *Job {
	return &Job{
		Line:     line,
		State:    Running,
		statuses: make([]int, stages),
		pending:  make(map[int]int, stages),
	}
}

func (j *Job) addProcess(pid, stage int) {
	if j.Pgid == 0 {
		j.Pgid = pid
	}
	j.Pids = append(j.Pids, pid)
	j.pending[pid] = stage
}

func (j *Job) setStageStatus(stage, status int) {
	j.statuses[stage] = status
}

// markExited records a stage's exit and returns true if the pid belonged
// to this job.
func (j *Job) markExited(pid, status int) bool {
	stage, ok := j.pending[pid]
	if !ok {
		return false
	}
	delete(j.pending, pid)
	j.statuses[stage] = status
	if len(j.pending) == 0 {
		j.State = Done
	}
	return true
}

// Finished reports whether every stage has terminated.
func (j *Job) Finished() bool {
	return len(j.pending) == 0
}

// ExitStatus is the pipeline's overall status: the exit status of the
// last stage.
func (j *Job) ExitStatus() int {
	if len(j.statuses) == 0 {
		return 0
	}
	return j.statuses[len(j.statuses)-1]
}

// Statuses returns a copy of the per-stage exit statuses.
func (j *Job) Statuses() []int {
	out := make([]int, len(j.statuses))
	copy(out, j.statuses)
	return out
}

// Table is the active-job table, mutated only from the interpreter loop.
type Table struct {
	jobs   map[int]*Job
	nextID int
}

// NewTable creates an empty job table.
func NewTable() *Table {
	return &Table{jobs: make(map[int]*Job), nextID: 1}
}

// Add registers a job and assigns its identifier.
func (t *Table) Add(j *Job) int {
	j.ID = t.nextID
	t.nextID++
	t.jobs[j.ID] = j
	return j.ID
}

// Get returns the job with the given identifier.
func (t *Table) Get(id int) (*Job, bool) {
	j, ok := t.jobs[id]
	return j, ok
}

// Latest returns the most recently added active job.
func (t *Table) Latest() (*Job, bool) {
	var latest *Job
	for _, j := range t.jobs {
		if latest == nil || j.ID > latest.ID {
			latest = j
		}
	}
	return latest, latest != nil
}

// ByPid finds the job owning the given process id.
func (t *Table) ByPid(pid int) (*Job, bool) {
	for _, j := range t.jobs {
		if _, ok := j.pending[pid]; ok {
			return j, true
		}
	}
	return nil, false
}

// Remove drops a job from the table. Jobs are removed once Done and
// reported.
func (t *Table) Remove(id int) {
	delete(t.jobs, id)
	if len(t.jobs) == 0 {
		t.nextID = 1
	}
}

// Jobs returns the active jobs ordered by identifier.
func (t *Table) Jobs() []*Job {
	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}
