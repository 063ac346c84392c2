/*
Package ops implements the Ops Surface: the 27 host capabilities a
package script calls through the Execution Environment's bindings.

	fetch, read_file, metadata, write_file, rename,
	remove_file, create_dir, remove_dir, read_dir,
	current_function,
	log_trace, log_warn, log_error, log_debug, log_info,
	get_input, get_variable_args, set_value, is_sandboxed,
	start_command, wait_command, sleep, send_signal, signal_group,
	rsync, rsync_wait, rsync_progress

Every filesystem op resolves its volume id through pkg/volume and checks
the result against pkg/pathpolicy before touching disk; every op that can
mutate also checks the target volume's readonly flag first. Process and
logging ops forward to pkg/rpcclient when a Container RPC Client is
present. Without one, process ops fail with "No RpcClient for command
operations" and logging ops write to the host logger instead.

pkg/jsengine binds each Context method onto a fresh goja runtime per call;
this package has no knowledge of the scripting engine itself.
*/
package ops
