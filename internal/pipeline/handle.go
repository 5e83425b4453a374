package pipeline

import (
	"os/exec"
	"sync"

	"github.com/harrison/dirstat/internal/models"
)

// Worker roles
const (
	RoleProducer  = "producer"
	RoleFilter    = "filter"
	RoleConverter = "converter"
)

// WorkerHandle tracks one started worker until it has been waited on.
type WorkerHandle struct {
	role   string
	cmd    *exec.Cmd
	once   sync.Once
	waited bool
	status models.WorkerStatus
}

func newWorkerHandle(role string, cmd *exec.Cmd) *WorkerHandle {
	return &WorkerHandle{role: role, cmd: cmd}
}

// Role returns the worker role.
func (h *WorkerHandle) Role() string {
	return h.role
}

// PID returns the process id of the worker.
func (h *WorkerHandle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Wait blocks until the worker exits and returns its status. The process is
// reaped exactly once; later calls return the recorded status.
func (h *WorkerHandle) Wait() models.WorkerStatus {
	h.once.Do(func() {
		err := h.cmd.Wait()
		code := -1
		if h.cmd.ProcessState != nil {
			code = h.cmd.ProcessState.ExitCode()
		}
		h.status = models.WorkerStatus{
			Role:     h.role,
			PID:      h.PID(),
			ExitCode: code,
			Err:      err,
		}
		h.waited = true
	})
	return h.status
}

// Waited reports whether the worker has been reaped.
func (h *WorkerHandle) Waited() bool {
	return h.waited
}
