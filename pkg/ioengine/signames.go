package ioengine

// signalNames is the fixed SIGHUP(1)..SIGSYS(31) name table used for the
// "*" annotation, ported verbatim from iolog.c's sa_names array. Index 0 is
// unused; signal 9 (SIGKILL) and 19 (SIGSTOP) are kept in the table even
// though they can never actually be caught, matching the original's
// uniform registration loop.
var signalNames = [32]string{
	1:  "SIGHUP",
	2:  "SIGINT",
	3:  "SIGQUIT",
	4:  "SIGILL",
	5:  "SIGTRAP",
	6:  "SIGABRT",
	7:  "SIGBUS",
	8:  "SIGFPE",
	9:  "SIGKILL",
	10: "SIGUSR1",
	11: "SIGSEGV",
	12: "SIGUSR2",
	13: "SIGPIPE",
	14: "SIGALRM",
	15: "SIGTERM",
	16: "SIGSTKFLT",
	17: "SIGCHLD",
	18: "SIGCONT",
	19: "SIGSTOP",
	20: "SIGTSTP",
	21: "SIGTTIN",
	22: "SIGTTOU",
	23: "SIGURG",
	24: "SIGXCPU",
	25: "SIGXFSZ",
	26: "SIGVTALRM",
	27: "SIGPROF",
	28: "SIGWINCH",
	29: "SIGIO",
	30: "SIGPWR",
	31: "SIGSYS",
}

func signalName(n int) string {
	if n >= 0 && n < len(signalNames) {
		return signalNames[n]
	}
	return ""
}
