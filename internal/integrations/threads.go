// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package integrations

import "github.com/postwright/postwright/pkg/capability"

// Threads declares the Threads capabilities. Its first comment comes from
// the X module, which lists threads in PickIntegration.
type Threads struct{}

func (Threads) Identifier() string { return "threads" }

func (Threads) Declare(d *capability.Declarations) {
	d.Plug(capability.PlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "auto-plug-threads",
			Title:       "Auto plug post",
			Description: "When a post reaches a certain number of likes, add another post to it so followers get a notification",
			Fields:      []capability.FieldSpec{likesField, replyField},
		},
		RunEveryMilliseconds: 21_600_000,
		TotalRuns:            3,
		MethodName:           "autoPlugPost",
	})
	d.HandlePlug("autoPlugPost", forward("reply"))
}
