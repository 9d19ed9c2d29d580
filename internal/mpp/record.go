// Package mpp models the missing person posters served by the Extraviados MX
// registry API.
package mpp

import (
	"encoding/json"
	"strings"
)

// DefaultSiteURL is the public origin of the registry.
const DefaultSiteURL = "https://extraviados.mx"

// Record is one missing person poster (an "mpp") and its case metadata.
// Optional fields are nil when the registry sends null.
type Record struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`

	Name                string   `json:"mp_name"`
	Height              *float64 `json:"mp_height"`
	Weight              *float64 `json:"mp_weight"`
	PhysicalBuild       string   `json:"mp_physical_build"`
	Complexion          string   `json:"mp_complexion"`
	Sex                 string   `json:"mp_sex"`
	DateOfBirth         *Date    `json:"mp_dob"`
	AgeWhenDisappeared  int      `json:"mp_age_when_disappeared"`
	EyesDescription     string   `json:"mp_eyes_description"`
	HairDescription     string   `json:"mp_hair_description"`
	OutfitDescription   string   `json:"mp_outfit_description"`
	IdentifyingFeatures string   `json:"mp_identifying_characteristics"`
	Circumstances       string   `json:"circumstances_behind_dissapearance"`

	MissingFrom string `json:"missing_from"`
	MissingDate *Date  `json:"missing_date"`
	Found       bool   `json:"found"`
	AlertType   string `json:"alert_type"`
	State       string `json:"po_state"`

	PostURL             string `json:"po_post_url"`
	PostPublicationDate *Date  `json:"po_post_publication_date"`
	PosterURL           string `json:"po_poster_url"`
	IsMultiple          bool   `json:"is_multiple"`

	UpdatedAt *Timestamp `json:"updated_at"`
	CreatedAt *Timestamp `json:"created_at"`
}

// ParseRecord extracts a Record from one decoded element of a listing
// response. Every key must be present; null values are allowed.
func ParseRecord(raw map[string]json.RawMessage) (Record, error) {
	var r Record
	d := decoder{fields: raw}

	r.ID = d.id("id")
	d.value("slug", &r.Slug)
	d.value("mp_name", &r.Name)
	d.value("mp_height", &r.Height)
	d.value("mp_weight", &r.Weight)
	d.value("mp_physical_build", &r.PhysicalBuild)
	d.value("mp_complexion", &r.Complexion)
	d.value("mp_sex", &r.Sex)
	r.DateOfBirth = d.date("mp_dob")
	d.value("mp_age_when_disappeared", &r.AgeWhenDisappeared)
	d.value("mp_eyes_description", &r.EyesDescription)
	d.value("mp_hair_description", &r.HairDescription)
	d.value("mp_outfit_description", &r.OutfitDescription)
	d.value("mp_identifying_characteristics", &r.IdentifyingFeatures)
	d.value("circumstances_behind_dissapearance", &r.Circumstances)
	d.value("missing_from", &r.MissingFrom)
	r.MissingDate = d.date("missing_date")
	d.value("found", &r.Found)
	d.value("alert_type", &r.AlertType)
	d.value("po_state", &r.State)
	d.value("po_post_url", &r.PostURL)
	r.PostPublicationDate = d.date("po_post_publication_date")
	d.value("po_poster_url", &r.PosterURL)
	d.value("is_multiple", &r.IsMultiple)
	r.UpdatedAt = d.timestamp("updated_at")
	r.CreatedAt = d.timestamp("created_at")

	if d.err != nil {
		return Record{}, d.err
	}
	return r, nil
}

// AbsoluteURL returns the record's public page on the registry site.
func (r Record) AbsoluteURL(siteURL string) string {
	return strings.TrimRight(siteURL, "/") + "/" + r.Slug + "/"
}

// PostContentURL returns the registry endpoint serving the pre-rendered
// Facebook post body for the record.
func (r Record) PostContentURL(siteURL string) string {
	return r.AbsoluteURL(siteURL) + "facebook-post/"
}

// DisplayName is the name used in logs.
func (r Record) DisplayName() string {
	return strings.ToUpper(r.Name)
}

// decoder pulls typed fields out of a raw JSON object, keeping the first
// error and ignoring every call after it.
type decoder struct {
	fields map[string]json.RawMessage
	err    error
}

func (d *decoder) lookup(key string) (json.RawMessage, bool) {
	if d.err != nil {
		return nil, false
	}
	raw, ok := d.fields[key]
	if !ok {
		d.err = SchemaError{Key: key}
		return nil, false
	}
	return raw, true
}

func (d *decoder) value(key string, dst any) {
	raw, ok := d.lookup(key)
	if !ok {
		return
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		d.err = SchemaError{Key: key, Err: err}
	}
}

// id accepts both string and numeric identifiers and keeps them opaque.
func (d *decoder) id(key string) string {
	raw, ok := d.lookup(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		d.err = SchemaError{Key: key, Err: err}
		return ""
	}
	return n.String()
}

func (d *decoder) optionalString(key string) (string, bool) {
	var s *string
	d.value(key, &s)
	if d.err != nil || s == nil {
		return "", false
	}
	return *s, true
}

func (d *decoder) date(key string) *Date {
	s, ok := d.optionalString(key)
	if !ok {
		return nil
	}
	v, err := ParseDate(s)
	if err != nil {
		d.err = DateFormatError{Key: key, Value: s, Err: err}
		return nil
	}
	return &v
}

func (d *decoder) timestamp(key string) *Timestamp {
	s, ok := d.optionalString(key)
	if !ok {
		return nil
	}
	v, err := ParseTimestamp(s)
	if err != nil {
		d.err = DateFormatError{Key: key, Value: s, Err: err}
		return nil
	}
	return &v
}
