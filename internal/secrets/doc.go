// Package secrets redacts credentials from text before it is sent to the
// completion service.
//
// Uploaded learning material is often pasted from terminals, lab sheets or
// config files. Anything that looks like a key, token or password is replaced
// with a fixed placeholder so it never leaves the process inside a prompt.
package secrets
