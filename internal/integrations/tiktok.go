// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Postwright Contributors

package integrations

import (
	"context"
	"strings"

	"github.com/postwright/postwright/pkg/capability"
	pwerr "github.com/postwright/postwright/pkg/errors"
)

// TikTok declares the TikTok capabilities.
type TikTok struct{}

func (TikTok) Identifier() string { return "tiktok" }

func (t TikTok) Declare(d *capability.Declarations) {
	d.Plug(capability.PlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "tiktok-poll-status",
			Title:       "Poll publish status",
			Description: "Check whether uploaded videos finished processing",
		},
		RunEveryMilliseconds: 60_000,
		TotalRuns:            30,
		MethodName:           "pollStatus",
	})
	d.PostPlug(capability.PostPlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "add-hashtags",
			Title:       "Add hashtags",
			Description: "Append hashtags to the caption after publishing",
			Fields: []capability.FieldSpec{{
				Name:        "hashtags",
				Description: "Space separated hashtags",
				Type:        capability.FieldTypeString,
				Placeholder: "#launch #buildinpublic",
				Validation:  `^#?[\p{L}\p{N}_]+( +#?[\p{L}\p{N}_]+)*$`,
			}},
		},
		PickIntegration: []string{"tiktok"},
		MethodName:      "addHashtags",
	})
	d.PostPlug(capability.PostPlugDescriptor{
		Descriptor: capability.Descriptor{
			Identifier:  "tiktok-clip",
			Title:       "Clip highlight",
			Description: "Cut a short highlight from the published video",
			Fields: []capability.FieldSpec{{
				Name:        "seconds",
				Description: "Length of the clip in seconds",
				Type:        capability.FieldTypeNumber,
				Validation:  `^([1-9]|[1-5][0-9]|60)$`,
			}},
		},
		PickIntegration: []string{"tiktok"},
		MethodName:      "clip",
	})

	d.HandlePlug("pollStatus", forward("poll-status"))
	d.HandlePostPlug("addHashtags", t.addHashtags)
	d.HandlePostPlug("clip", forwardPost("clip"))
}

func (TikTok) addHashtags(ctx context.Context, call capability.PostPlugCall) error {
	tags := NormalizeHashtags(call.Values["hashtags"])
	if len(tags) == 0 {
		return pwerr.New(pwerr.CodeValidatorFieldsInvalid, "no hashtags to add")
	}
	return execute(ctx, call.Integration, capability.Request{
		Action: "append-caption",
		PostID: call.PostID,
		Values: map[string]string{"hashtags": strings.Join(tags, " ")},
	})
}

// NormalizeHashtags splits s on whitespace, prefixes each tag with "#" and
// drops case-insensitive duplicates, keeping the first spelling.
func NormalizeHashtags(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, f := range strings.Fields(s) {
		tag := "#" + strings.TrimLeft(f, "#")
		if tag == "#" {
			continue
		}
		key := strings.ToLower(tag)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, tag)
	}
	return out
}
