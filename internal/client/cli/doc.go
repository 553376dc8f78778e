// Package cli implements the blog command-line client.
//
//	blog [global flags] <command> [command flags] [args]
//
// Global flags are described in package config. Commands:
//
//	register    create an account and log in
//	login       log in and store the session token
//	logout      forget the stored session token
//	status      show the stored session without contacting the server
//	whoami      show the logged-in account
//	create      publish a post
//	get <id>    show one post
//	list        list posts, newest first
//	update <id> change the title and/or content of an own post
//	delete <id> delete an own post
//	unregister  delete the logged-in account and all its posts
//	shell       read commands interactively
//
// Exit status is 0 on success, 1 for caller errors (bad usage, validation,
// conflicts, bad credentials, missing session, forbidden, not found) and 2
// when the server failed or could not be reached. Errors are printed to
// stderr as "error: <KIND>: <message>".
package cli
