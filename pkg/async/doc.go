// Package async provides a safe goroutine wrapper with panic recovery,
// deadline enforcement, and structured error logging.
//
// SessionReconciler runs every reconciliation through SafeGo so that a
// panicking store client or subscriber cannot take down the process, and so
// that reconciliation work is always bounded by its deadline.
package async
