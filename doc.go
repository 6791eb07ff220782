// Package extrasafe composes named allow-lists of syscalls into one
// seccomp-BPF filter and installs it irreversibly into the current thread or
// process.
//
// Policies are built from rule sets: cohesive bundles of syscall
// allow-rules, each representing one capability such as basic I/O,
// networking or thread creation. The builtins package ships ready-made
// profiles; the config package loads custom rule sets from YAML.
//
//	ctx := extrasafe.New()
//	for _, rs := range []extrasafe.RuleSet{
//		builtins.BasicCapabilities{},
//		builtins.NewSystemIO().AllowStdout().AllowStderr(),
//		builtins.NewTime().AllowGettime(),
//	} {
//		if err := ctx.Enable(rs); err != nil {
//			log.Fatal(err)
//		}
//	}
//	if err := ctx.ApplyToAllThreads(); err != nil {
//		log.Fatal(err)
//	}
//
// Once applied, any syscall outside the policy is denied: the policy is
// default-deny and the kernel does not allow an installed filter to be
// removed or relaxed. A second policy can only narrow the first.
package extrasafe
