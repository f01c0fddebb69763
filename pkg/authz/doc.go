// Package authz decides whether a session may perform an operation or see
// a UI surface. All decisions flow through a single policy table mapping
// roles to capabilities and surfaces to required capabilities; there are no
// ad hoc role string comparisons anywhere else. A denial is a plain value,
// never an error. Unknown roles resolve to the least-privileged known role.
package authz
