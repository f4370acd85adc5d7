// Package auth holds the public types of the deskauth session core: the
// authenticated User and its capability set, backend Session projections,
// the local AccountLock, the error taxonomy, and the stateless permission
// evaluator used by screens to gate actions.
package auth
