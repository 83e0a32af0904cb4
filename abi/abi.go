// Package abi holds the numbers shared between user programs and the
// process-control syscall layer.
package abi

// Fail is the single failure value returned to user space. Causes are not
// distinguishable from the return value alone.
const Fail int32 = -1

const (
	SysFork        = 1
	SysExit        = 2
	SysWait        = 3
	SysKill        = 6
	SysGetpid      = 11
	SysSbrk        = 12
	SysSleep       = 13
	SysUptime      = 14
	SysWaitpid     = 23
	SysSetpriority = 24
)

// Options accepted by waitpid.
const (
	WNOHANG = 1
)

// Errno values. They never reach user space; they are attached to log lines
// so a failure cause can be told apart when tracing.
const (
	EPERM  = 1
	ESRCH  = 3
	EINTR  = 4
	ECHILD = 10
	EAGAIN = 11
	ENOMEM = 12
	EFAULT = 14
	EINVAL = 22
	ENOSYS = 38
)
