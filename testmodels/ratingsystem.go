/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package testmodels

import (
	"github.com/go-openapi/strfmt"

	"github.com/suparena/entitymap/registry"
	"github.com/suparena/entitymap/scalar"
	"github.com/suparena/entitymap/validation"
)

type RatingSystem struct {

	// Timestamp when the rating system was created.
	// Required: true
	// Format: date-time
	CreatedAt *strfmt.DateTime `json:"CreatedAt"`

	// A description of the rating system.
	// Required: true
	Description *string `json:"Description"`

	// Unique identifier for the rating system.
	// Required: true
	ID *string `json:"Id"`

	// Name of the rating system.
	// Required: true
	Name *string `json:"Name"`

	// site Url
	SiteURL string `json:"SiteUrl,omitempty"`

	// Timestamp when the rating system was last updated.
	// Required: true
	// Format: date-time
	UpdatedAt *strfmt.DateTime `json:"UpdatedAt"`
}

func describeRatingSystem(d *registry.Descriptor) {
	d.Field("ID", scalar.String).Key().Column("Id").Validate(validation.StringLength(scalar.OpLessOrEqual, 36, false))
	d.Field("Name", scalar.String).Validate(validation.Required(), validation.StringLength(scalar.OpLessOrEqual, 100, false))
	d.Field("Description", scalar.String).Validate(validation.Required())
	d.Field("SiteURL", scalar.String).Column("SiteUrl").Validate(validation.Tag("omitempty,url"))
	d.Field("CreatedAt", scalar.DateTime).Validate(validation.Required())
	d.Field("UpdatedAt", scalar.DateTime).Validate(validation.Required())
	d.UniqueIndex("Name")
}
