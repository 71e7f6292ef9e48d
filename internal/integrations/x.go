// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package integrations

import (
	"context"
	"strings"

	"github.com/postwright/postwright/pkg/capability"
)

// X declares the X (formerly Twitter) capabilities.
type X struct{}

func (X) Identifier() string { return "x" }

func (x X) Declare(d *capability.Declarations) {
	d.Plug(capability.PlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "auto-repost-x",
			Title:       "Auto Repost Posts",
			Description: "When a post reaches a certain number of likes, repost it to increase engagement",
			Fields:      []capability.FieldSpec{likesField},
		},
		RunEveryMilliseconds: 21_600_000,
		TotalRuns:            3,
		MethodName:           "autoRepostPost",
	})
	d.Plug(capability.PlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "auto-plug-x",
			Title:       "Auto plug post",
			Description: "When a post reaches a certain number of likes, add another post to it so followers get a notification",
			Fields:      []capability.FieldSpec{likesField, replyField},
		},
		RunEveryMilliseconds: 21_600_000,
		TotalRuns:            3,
		MethodName:           "autoPlugPost",
	})
	d.PostPlug(capability.PostPlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "first-comment",
			Title:       "First comment",
			Description: "Reply to the post right after it is published",
			Fields: []capability.FieldSpec{{
				Name:        "comment",
				Description: "Text of the first comment",
				Type:        capability.FieldTypeString,
				Validation:  `^[\s\S]{1,280}$`,
			}},
		},
		PickIntegration: []string{"x", "threads"},
		MethodName:      "firstComment",
	})

	d.HandlePlug("autoRepostPost", forward("repost"))
	d.HandlePlug("autoPlugPost", forward("reply"))
	d.HandlePostPlug("firstComment", x.firstComment)
}

func (X) firstComment(ctx context.Context, call capability.PostPlugCall) error {
	return execute(ctx, call.Integration, capability.Request{
		Action: "comment",
		PostID: call.PostID,
		Values: map[string]string{"comment": strings.TrimSpace(call.Values["comment"])},
	})
}
