package mi

// IsTerminated inspects a batch of decoded events and reports whether the
// debuggee or the debugger itself has terminated. Checks run in order over
// the whole batch, first match wins:
//
//  1. a notify record for an exited thread group,
//  2. a result record with class "exit" (GDB itself quit),
//  3. a stopped notification whose reason is a normal exit.
//
// A stop caused by a signal (e.g. SIGSEGV) is deliberately not terminal:
// the crash state must remain inspectable. An empty batch is always
// terminated — no response at all is indistinguishable from subprocess
// death for control purposes.
func IsTerminated(events []Event) bool {
	if len(events) == 0 {
		return true
	}
	for i := range events {
		e := &events[i]
		if e.Kind == KindNotify && e.Class == ClassThreadGroupExit {
			return true
		}
		if e.Kind == KindResult && e.Class == ClassExit {
			return true
		}
		if e.Kind == KindNotify && e.Class == ClassStopped {
			switch e.Reason() {
			case "exited-normally", "exited":
				return true
			}
		}
	}
	return false
}
