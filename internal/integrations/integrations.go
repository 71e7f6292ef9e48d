// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

// Package integrations holds the compiled-in integration modules. Each
// module declares the Plugs and PostPlugs of one social platform; the work
// itself is always delegated to the capability.Integration the dispatcher
// resolves.
package integrations

import (
	"context"
	"maps"

	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// Builtin returns the compiled-in modules in registration order.
func Builtin() []capability.Module {
	return []capability.Module{
		X{},
		Threads{},
		TikTok{},
		YouTube{},
	}
}

// Types returns the integration types of the built-in modules.
func Types() []string {
	mods := Builtin()
	out := make([]string, len(mods))
	for i, m := range mods {
		out[i] = m.Identifier()
	}
	return out
}

var (
	likesField = capability.FieldSpec{
		Name:        "likes",
		Description: "Number of likes the post must reach",
		Type:        capability.FieldTypeNumber,
		Placeholder: "100",
		Validation:  `^[0-9]{1,7}$`,
	}
	replyField = capability.FieldSpec{
		Name:        "post",
		Description: "Content of the reply",
		Type:        capability.FieldTypeRichText,
		Placeholder: "Thanks for all the love!",
		Validation:  `^[\s\S]{1,500}$`,
	}
)

func execute(ctx context.Context, integration capability.Integration, req capability.Request) error {
	if integration == nil {
		return pwerr.New(pwerr.CodeDispatchIntegrationNotFound, "no integration client for action "+req.Action)
	}
	return integration.Execute(ctx, req)
}

// forward returns a PlugFunc issuing action with the configured values.
func forward(action string) capability.PlugFunc {
	return func(ctx context.Context, call capability.PlugCall) error {
		values := maps.Clone(call.Values)
		if values == nil {
			values = map[string]string{}
		}
		return execute(ctx, call.Integration, capability.Request{Action: action, Values: values})
	}
}

// forwardPost returns a PostPlugFunc issuing action against the post.
func forwardPost(action string) capability.PostPlugFunc {
	return func(ctx context.Context, call capability.PostPlugCall) error {
		return execute(ctx, call.Integration, capability.Request{
			Action: action,
			PostID: call.PostID,
			Values: maps.Clone(call.Values),
		})
	}
}
