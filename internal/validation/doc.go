// Skyrank - Personalized Flight Offer Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/skyrank

/*
Package validation validates API request bodies and configuration structs
with go-playground/validator v10.

Field names in errors come from the json tag (falling back to koanf, then
the Go field name), so messages match the wire format:

	traveler_id is required when email is absent

Custom tags:

	identifier  1-128 characters of [A-Za-z0-9._:@-]

Errors convert to the API error envelope with ToAPIError; the code is
always VALIDATION_ERROR.
*/
package validation
