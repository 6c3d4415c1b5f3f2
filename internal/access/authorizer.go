// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 MediaBroker Contributors

package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/mediabroker/mediabroker/internal/access/audit"
	"github.com/mediabroker/mediabroker/internal/uri"
)

// Decision is the outcome of authorizing one open-uri request.
type Decision struct {
	Allowed bool
	Reason  string
	Rule    string
}

// Err returns nil for an allow and an AUTHORIZATION_DENIED error carrying the
// reason for a deny.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return oops.In("access").
		Code(CodeAuthorizationDenied).
		With("rule", d.Rule).
		Errorf("%s", d.Reason)
}

// Authorizer evaluates a RuleSet against open-uri requests.
type Authorizer struct {
	rules  RuleSet
	audit  *audit.Logger
	logger *slog.Logger
}

// AuthorizerOption configures an Authorizer.
type AuthorizerOption func(*Authorizer)

// WithAuditLogger hands every decision to l.
func WithAuditLogger(l *audit.Logger) AuthorizerOption {
	return func(a *Authorizer) { a.audit = l }
}

// WithLogger sets the logger used for debug output.
func WithLogger(l *slog.Logger) AuthorizerOption {
	return func(a *Authorizer) { a.logger = l }
}

// NewAuthorizer creates an Authorizer over rules.
func NewAuthorizer(rules RuleSet, opts ...AuthorizerOption) *Authorizer {
	a := &Authorizer{rules: rules, logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Rules returns the rule set in evaluation order.
func (a *Authorizer) Rules() RuleSet { return a.rules }

// Authorize decides whether c may open rawURI. It never fails: a malformed
// URI or an unmatched request is a deny.
func (a *Authorizer) Authorize(ctx context.Context, c Context, rawURI string) Decision {
	return a.authorize(ctx, "", c, rawURI)
}

// AuthenticateOpenURIRequest is Authorize with the client name recorded in
// the audit trail.
func (a *Authorizer) AuthenticateOpenURIRequest(ctx context.Context, client string, c Context, rawURI string) Decision {
	return a.authorize(ctx, client, c, rawURI)
}

func (a *Authorizer) authorize(ctx context.Context, client string, c Context, rawURI string) Decision {
	start := time.Now()

	var (
		d    Decision
		kind audit.Kind
	)
	parsed, err := uri.Parse(rawURI)
	switch {
	case err != nil:
		d = Decision{Rule: RuleMalformedURI, Reason: err.Error()}
		kind = audit.KindDeny
	default:
		req := Request{Context: c, URI: parsed}
		if rule, ok := a.rules.Evaluate(req); ok {
			d = Decision{Allowed: true, Rule: rule.Name, Reason: rule.Reason(req)}
			kind = audit.KindAllow
		} else {
			d = Decision{Rule: RuleDeny, Reason: "not allowed to access: " + rawURI}
			kind = audit.KindDefaultDeny
		}
	}

	recordDecision(d)
	a.logger.DebugContext(ctx, "open-uri decision",
		"client", client,
		"label", c.Name(),
		"uri", rawURI,
		"allowed", d.Allowed,
		"rule", d.Rule,
	)

	if a.audit != nil {
		pkg, _ := c.PackageName()
		a.audit.Log(ctx, audit.Entry{
			Client:     client,
			Label:      c.Name(),
			Package:    pkg,
			URI:        rawURI,
			Kind:       kind,
			Rule:       d.Rule,
			Reason:     d.Reason,
			DurationUS: time.Since(start).Microseconds(),
			Timestamp:  start,
		})
	}
	return d
}
