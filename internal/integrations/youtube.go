// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package integrations

import "github.com/postwright/postwright/pkg/capability"

// YouTube declares the YouTube capabilities.
type YouTube struct{}

func (YouTube) Identifier() string { return "youtube" }

func (YouTube) Declare(d *capability.Declarations) {
	d.Plug(capability.PlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "youtube-poll-status",
			Title:       "Poll publish status",
			Description: "Check whether uploaded videos finished processing",
		},
		RunEveryMilliseconds: 120_000,
		TotalRuns:            15,
		MethodName:           "pollStatus",
	})
	d.PostPlug(capability.PostPlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "youtube-shorts",
			Title:       "Publish as Short",
			Description: "Publish a vertical cut of the video as a YouTube Short",
			Fields: []capability.FieldSpec{{
				Name:        "title",
				Description: "Title of the Short",
				Type:        capability.FieldTypeString,
				Validation:  `^.{1,100}$`,
			}},
		},
		PickIntegration: []string{"youtube"},
		MethodName:      "shorts",
	})

	d.HandlePlug("pollStatus", forward("poll-status"))
	d.HandlePostPlug("shorts", forwardPost("publish-short"))
}
