// Package enforcement decides whether a consumption charge is accepted.
//
// The Enforcer resolves the budget configuration governing a payer and
// validates a proposed amount against the remaining balance of the
// current period window. Resolution walks three scopes in order: a
// config bound to the payer itself, a config bound to the payer's
// parent (one level, no recursion), and a config bound to the org unit
// of the employee linked to the payer. A payer with no matching config
// is not budget-controlled and every charge is accepted.
//
// Permission gating runs before any balance arithmetic: a disabled
// payer or an employee without an org unit is rejected even when the
// balance would cover the charge.
package enforcement
