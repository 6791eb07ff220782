package extrasafe

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ThreadState reads the kernel's enforcement state for the calling thread
// from procfs. Pin the goroutine with runtime.LockOSThread for the answer to
// be about a specific thread.
func ThreadState() (EnforcementState, error) {
	return readSeccompState("/proc/thread-self/status")
}

// ThreadStates enumerates all threads of the process and reports the
// enforcement state per thread id. Threads may come and go during the
// enumeration; vanished threads are skipped.
func ThreadStates() (map[int]EnforcementState, error) {
	tasks, err := os.ReadDir("/proc/self/task")
	if err != nil {
		return nil, fmt.Errorf("extrasafe: enumerate threads: %w", err)
	}
	states := make(map[int]EnforcementState, len(tasks))
	for _, task := range tasks {
		tid, err := strconv.Atoi(task.Name())
		if err != nil {
			continue
		}
		s, err := readSeccompState("/proc/self/task/" + task.Name() + "/status")
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		states[tid] = s
	}
	return states, nil
}

// readSeccompState parses the Seccomp field of a procfs status file:
// 0 is disabled, 1 is strict mode, 2 is filter mode.
func readSeccompState(path string) (EnforcementState, error) {
	f, err := os.Open(path)
	if err != nil {
		return Unrestricted, err
	}
	defer f.Close()

	s := bufio.NewScanner(f)
	for s.Scan() {
		line := s.Bytes()
		if !bytes.HasPrefix(line, []byte("Seccomp:")) {
			continue
		}
		mode := strings.TrimSpace(string(line[len("Seccomp:"):]))
		if mode == "0" {
			return Unrestricted, nil
		}
		return Restricted, nil
	}
	if err := s.Err(); err != nil {
		return Unrestricted, err
	}
	return Unrestricted, fmt.Errorf("extrasafe: no Seccomp field in %s", path)
}
