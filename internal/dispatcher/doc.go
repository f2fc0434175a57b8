// Package dispatcher turns an operator command into exactly one framed
// write on the link, or into a rejection when the link is not Connected.
package dispatcher
