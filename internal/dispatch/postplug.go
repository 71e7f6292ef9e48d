// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/postwright/postwright/internal/telemetry"
	"github.com/postwright/postwright/internal/validator"
	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// PostPlugInvocation asks for a PostPlug to run against one post.
type PostPlugInvocation struct {
	Identifier string
	PostID     string
	// Integration is the integration type the post was published to.
	Integration string
	Values      map[string]string
}

// ActionError is a failure returned or raised by a PostPlug's bound action.
// Callers match it with errors.As regardless of the codes carried by Err.
type ActionError struct {
	Identifier  string
	Integration string
	Err         error
}

func (e *ActionError) Error() string { return e.Err.Error() }

func (e *ActionError) Unwrap() error { return e.Err }

// PostPlugRunner runs PostPlugs on demand, after a post is published.
type PostPlugRunner struct {
	validator  *validator.Validator
	dispatcher Dispatcher
	observer   telemetry.Observer
	now        func() time.Time
}

// NewPostPlugRunner returns a runner reading the validator's catalog. A nil
// observer discards records.
func NewPostPlugRunner(v *validator.Validator, d Dispatcher, observer telemetry.Observer) *PostPlugRunner {
	if observer == nil {
		observer = telemetry.Nop
	}
	return &PostPlugRunner{validator: v, dispatcher: d, observer: observer, now: time.Now}
}

// Invoke validates inv and calls the bound action. Validation failures are
// returned without invoking anything. Action failures are reported to the
// observer and returned as an *ActionError wrapped with
// CodeDispatchInvokeFailure.
func (r *PostPlugRunner) Invoke(ctx context.Context, inv PostPlugInvocation) error {
	if err := r.validator.CheckType("type", capability.KindPostPlug, inv.Identifier); err != nil {
		return pwerr.Wrap(err, pwerr.CodeValidatorTypeInvalid, "post-plug not available",
			pwerr.FieldPostPlug(inv.Identifier))
	}

	entry, ok := r.validator.Catalog().PostPlug(inv.Identifier)
	if !ok {
		return pwerr.New(pwerr.CodeRegistryEntryNotFound, "post-plug not found: "+inv.Identifier,
			pwerr.FieldPostPlug(inv.Identifier))
	}
	desc := entry.Descriptor()
	if !desc.AppliesTo(inv.Integration) {
		return pwerr.New(pwerr.CodeDispatchNotApplicable,
			fmt.Sprintf("post-plug %q does not apply to integration %q", inv.Identifier, inv.Integration),
			pwerr.FieldPostPlug(inv.Identifier), pwerr.FieldIntegration(inv.Integration))
	}

	values := inv.Values
	if values == nil {
		values = map[string]string{}
	}
	if err := r.validator.CheckFields(capability.KindPostPlug, inv.Identifier, values); err != nil {
		return err
	}

	client, err := r.dispatcher.ResolveIntegrationType(ctx, inv.Integration)
	if err != nil {
		return err
	}

	call := capability.PostPlugCall{
		Identifier:      inv.Identifier,
		PostID:          inv.PostID,
		IntegrationType: inv.Integration,
		Values:          values,
		Integration:     client,
	}
	err = runPostPlug(ctx, entry.Action(), call)

	kind := telemetry.KindPostPlugSucceeded
	if err != nil {
		kind = telemetry.KindPostPlugFailed
	}
	r.observer.Report(ctx, telemetry.NewRecord(kind, inv.Identifier, entry.Owner(), 0, err, r.now()))

	if err != nil {
		actionErr := &ActionError{Identifier: inv.Identifier, Integration: inv.Integration, Err: err}
		return pwerr.Wrap(actionErr, pwerr.CodeDispatchInvokeFailure, "post-plug "+inv.Identifier+" failed",
			pwerr.FieldPostPlug(inv.Identifier), pwerr.FieldIntegration(inv.Integration))
	}
	return nil
}

// runPostPlug calls fn with panic recovery.
func runPostPlug(ctx context.Context, fn capability.PostPlugFunc, call capability.PostPlugCall) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("post-plug panic recovered",
				"post_plug", call.Identifier,
				"panic", r,
				"stack", string(debug.Stack()))
			err = pwerr.Errorf(pwerr.CodeDispatchInvokeFailure, "post-plug panic: %v", r)
		}
	}()
	return fn(ctx, call)
}
