package job

import (
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"

	"mar.sh/marsh/core/env"
	"mar.sh/marsh/core/parse"
)

// IO is the stdio triple handed to a spawned stage or a builtin. Real
// files, so pipeline stages get their descriptors without copier
// goroutines.
type IO struct {
	In  *os.File
	Out *os.File
	Err *os.File
}

// StdIO returns the shell's own stdio.
func StdIO() IO {
	return IO{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// Builtins intercepts commands that must run inside the shell process.
// Only single-stage foreground pipelines are eligible.
type Builtins interface {
	IsBuiltin(name string) bool
	Run(argv []string, stdio IO) int
}

// Executor turns parsed pipelines into process groups and supervises them.
// It is driven from the single interpreter loop; child state changes are
// drained synchronously via Reap at defined reconciliation points.
type Executor struct {
	Env      *env.Store
	Jobs     *Table
	Builtins Builtins
	// Report surfaces per-command errors; execution continues.
	Report func(error)
	Stdio  IO

	tty       *os.File
	shellPgid int
}

// New creates an Executor over the given store and stdio.
func New(store *env.Store, stdio IO) *Executor {
	e := &Executor{
		Env:   store,
		Jobs:  NewTable(),
		Stdio: stdio,
	}
	e.Report = func(err error) {
		fmt.Fprintf(stdio.Err, "marsh: %v\n", err)
	}
	return e
}

// EnableJobControl turns on foreground terminal handoff against the given
// controlling terminal.
func (e *Executor) EnableJobControl(tty *os.File) {
	e.tty = tty
	e.shellPgid = unix.Getpgrp()
}

// RunSequence executes sequence items strictly left to right, applying
// `&&`/`||` short-circuiting against the previous item's status. The
// return value is the status of the last item that ran.
func (e *Executor) RunSequence(seq *parse.Sequence) int {
	status := 0
	for i, item := range seq.Items {
		if i > 0 {
			if item.Op == parse.ConnAndIf && status != 0 {
				continue
			}
			if item.Op == parse.ConnOrIf && status == 0 {
				continue
			}
		}
		status = e.RunPipeline(item.Pipeline)
	}
	return status
}

// RunPipeline spawns one process group for the pipeline. Foreground
// pipelines are waited for; background ones are registered in the job
// table and return immediately.
func (e *Executor) RunPipeline(p *parse.Pipeline) int {
	if len(p.Stages) == 0 {
		return 0
	}

	// Builtins must run in the shell's own process to mutate its state,
	// so they are never pipeline-spawnable.
	if first := p.Stages[0]; len(p.Stages) == 1 && !p.Background &&
		e.Builtins != nil && e.Builtins.IsBuiltin(first.Argv[0]) {
		return e.runBuiltin(first)
	}

	j := e.launch(p)

	if p.Background {
		if !j.Finished() {
			id := e.Jobs.Add(j)
			fmt.Fprintf(e.Stdio.Err, "[%d] %d\n", id, j.Pgid)
		}
		return 0
	}
	if j.Finished() {
		return j.ExitStatus()
	}
	return e.waitForeground(j)
}

func (e *Executor) runBuiltin(cmd *parse.SimpleCommand) int {
	stdio, opened, err := applyRedirs(cmd, e.Stdio)
	if err != nil {
		e.Report(err)
		return ExitFailure
	}
	defer closeAll(opened)

	return e.Builtins.Run(cmd.Argv, stdio)
}

// launch starts every stage before any stage is awaited; neighbors run
// concurrently with OS pipe buffers providing backpressure.
func (e *Executor) launch(p *parse.Pipeline) *Job {
	n := len(p.Stages)
	j := newJob(p.String(), n)

	var carry *os.File // read end of the pipe feeding the next stage
	for i, stage := range p.Stages {
		stdio := e.Stdio
		if carry != nil {
			stdio.In = carry
		}

		var nextCarry, pw *os.File
		if i < n-1 {
			pr, w, err := os.Pipe()
			if err != nil {
				e.Report(err)
				j.setStageStatus(i, ExitFailure)
				if carry != nil {
					carry.Close()
					carry = nil
				}
				continue
			}
			nextCarry, pw = pr, w
			stdio.Out = pw
		}

		e.startStage(j, i, stage, stdio)

		// The children own their descriptor copies now.
		if carry != nil {
			carry.Close()
		}
		if pw != nil {
			pw.Close()
		}
		carry = nextCarry
	}
	return j
}

// startStage resolves, wires and spawns one stage. Failures abort only
// this stage; the rest of the pipeline keeps running.
func (e *Executor) startStage(j *Job, stage int, cmd *parse.SimpleCommand, stdio IO) {
	stdio, opened, err := applyRedirs(cmd, stdio)
	if err != nil {
		e.Report(err)
		j.setStageStatus(stage, ExitFailure)
		return
	}
	defer closeAll(opened)

	path, err := LookPath(e.Env, cmd.Argv[0])
	if err != nil {
		e.Report(err)
		status := ExitNotFound
		var perm *PermissionError
		if errors.As(err, &perm) {
			status = ExitNoPerm
		}
		j.setStageStatus(stage, status)
		return
	}

	proc := &osexec.Cmd{
		Path:   path,
		Args:   cmd.Argv,
		Stdin:  stdio.In,
		Stdout: stdio.Out,
		Stderr: stdio.Err,
		Env:    e.Env.Environ(),
		SysProcAttr: &syscall.SysProcAttr{
			// All stages share one process group led by the first pid.
			Setpgid: true,
			Pgid:    j.Pgid,
		},
	}
	if err := proc.Start(); err != nil {
		e.Report(fmt.Errorf("%s: %w", cmd.Argv[0], err))
		j.setStageStatus(stage, ExitFailure)
		return
	}
	j.addProcess(proc.Process.Pid, stage)
}

// applyRedirs opens redirection targets; redirections override pipe
// wiring at the edges of the pipeline.
func applyRedirs(cmd *parse.SimpleCommand, stdio IO) (IO, []*os.File, error) {
	var opened []*os.File
	for _, r := range cmd.Redirs {
		var fd *os.File
		var err error
		switch r.Mode {
		case parse.RedirRead:
			fd, err = os.Open(r.Path)
		case parse.RedirAppend:
			fd, err = os.OpenFile(r.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		default:
			fd, err = os.OpenFile(r.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		}
		if err != nil {
			closeAll(opened)
			return stdio, nil, &RedirectionError{Path: r.Path, Err: err}
		}
		opened = append(opened, fd)
		if r.Mode == parse.RedirRead {
			stdio.In = fd
		} else {
			stdio.Out = fd
		}
	}
	return stdio, opened, nil
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// waitForeground blocks until every live stage exits or the group is
// stopped. Terminal control is granted to the group for the duration and
// reclaimed afterwards.
func (e *Executor) waitForeground(j *Job) int {
	restore := e.grantTerminal(j.Pgid)
	stopForwarding := e.forwardSignals(j.Pgid)

	stopped := false
	for _, pid := range j.Pids {
		if _, live := j.pending[pid]; !live {
			continue
		}
		if e.waitPid(j, pid) {
			stopped = true
		}
	}

	stopForwarding()
	restore()

	if stopped {
		j.State = Stopped
		if j.ID == 0 {
			e.Jobs.Add(j)
		}
		fmt.Fprintf(e.Stdio.Err, "\n[%d]+  Stopped\t%s\n", j.ID, j.Line)
		return exitStopped
	}

	if j.ID != 0 {
		// A resumed job that ran to completion leaves the table.
		e.Jobs.Remove(j.ID)
	}
	j.State = Done
	return j.ExitStatus()
}

// waitPid reaps one pid, returning true if it stopped rather than exited.
func (e *Executor) waitPid(j *Job, pid int) (stopped bool) {
	for {
		var ws unix.WaitStatus
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			j.markExited(pid, ExitFailure)
			return false
		}

		switch {
		case ws.Stopped():
			return true
		case ws.Exited():
			j.markExited(pid, ws.ExitStatus())
			return false
		case ws.Signaled():
			j.markExited(pid, exitSignalBase+int(ws.Signal()))
			return false
		}
	}
}

// grantTerminal hands the terminal to the job's group, returning the
// restore action. Failure degrades to signal forwarding rather than
// aborting the run.
func (e *Executor) grantTerminal(pgid int) (restore func()) {
	if e.tty == nil {
		return func() {}
	}
	if err := tcsetpgrp(e.tty, pgid); err != nil {
		e.Report(&JobControlError{Op: "grant terminal", Err: err})
		return func() {}
	}
	return func() {
		if err := tcsetpgrp(e.tty, e.shellPgid); err != nil {
			e.Report(&JobControlError{Op: "reclaim terminal", Err: err})
		}
	}
}

// forwardSignals relays interrupts delivered to the shell onto the
// foreground group while it runs. With terminal handoff in effect the
// kernel routes keyboard signals directly and this is a no-op.
func (e *Executor) forwardSignals(pgid int) (stop func()) {
	sigc := make(chan os.Signal, 4)
	signal.Notify(sigc, os.Interrupt)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case s := <-sigc:
				if sig, ok := s.(syscall.Signal); ok {
					_ = unix.Kill(-pgid, sig)
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		signal.Stop(sigc)
		close(done)
	}
}

// Reap drains pending child state changes without blocking. It is called
// before each prompt; jobs whose state changed are returned for the
// caller to report. Done jobs remain in the table until removed by the
// caller.
func (e *Executor) Reap() []*Job {
	var changed []*Job
	seen := map[*Job]bool{}

	note := func(j *Job) {
		if !seen[j] {
			seen[j] = true
			changed = append(changed, j)
		}
	}

	for {
		var ws unix.WaitStatus
		pid, err := unix.Wait4(-1, &ws, unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil || pid <= 0 {
			break
		}

		j, ok := e.Jobs.ByPid(pid)
		if !ok {
			continue
		}
		switch {
		case ws.Stopped():
			j.State = Stopped
			note(j)
		case ws.Continued():
			j.State = Running
		case ws.Exited():
			j.markExited(pid, ws.ExitStatus())
			if j.Finished() {
				note(j)
			}
		case ws.Signaled():
			j.markExited(pid, exitSignalBase+int(ws.Signal()))
			if j.Finished() {
				note(j)
			}
		}
	}
	return changed
}

// Continue resumes a stopped job in the foreground or background. id 0
// selects the most recent job.
func (e *Executor) Continue(id int, foreground bool) (int, error) {
	var j *Job
	var ok bool
	if id == 0 {
		j, ok = e.Jobs.Latest()
	} else {
		j, ok = e.Jobs.Get(id)
	}
	if !ok {
		return ExitFailure, fmt.Errorf("no such job: %d", id)
	}

	if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
		return ExitFailure, fmt.Errorf("continue job %d: %w", j.ID, err)
	}
	j.State = Running

	if !foreground {
		fmt.Fprintf(e.Stdio.Err, "[%d] %s &\n", j.ID, j.Line)
		return 0, nil
	}

	fmt.Fprintln(e.Stdio.Err, j.Line)
	return e.waitForeground(j), nil
}
