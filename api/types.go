package api

import "encoding/json"

// DocList is the set of project documentation slugs. An empty list is a
// valid result.
type DocList struct {
	Slugs []string `json:"slugs"`
}

// Doc is one project's markdown documentation.
type Doc struct {
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Version is the backend build version.
type Version struct {
	Version string `json:"version"`
}

// Email is one address of a user.
type Email struct {
	Value   string `json:"value"`
	Primary bool   `json:"primary,omitempty"`
}

// Name holds the parts of a user's name.
type Name struct {
	GivenName  string `json:"given_name,omitempty"`
	FamilyName string `json:"family_name,omitempty"`
}

// User is the current user record. Decoding accepts both the SCIM
// camelCase form (userName, displayName, givenName) and the snake_case
// form; encoding always produces snake_case.
type User struct {
	ID          string  `json:"id"`
	UserName    string  `json:"user_name"`
	DisplayName string  `json:"display_name"`
	Active      bool    `json:"active"`
	Emails      []Email `json:"emails,omitempty"`
	Name        *Name   `json:"name,omitempty"`
}

// PrimaryEmail returns the primary address, the first one, or UserName.
func (u User) PrimaryEmail() string {
	for _, e := range u.Emails {
		if e.Primary {
			return e.Value
		}
	}
	if len(u.Emails) > 0 {
		return u.Emails[0].Value
	}
	return u.UserName
}

type wireName struct {
	GivenName      string `json:"given_name"`
	FamilyName     string `json:"family_name"`
	GivenNameSCIM  string `json:"givenName"`
	FamilyNameSCIM string `json:"familyName"`
}

type wireUser struct {
	ID              string    `json:"id"`
	UserName        string    `json:"user_name"`
	DisplayName     string    `json:"display_name"`
	UserNameSCIM    string    `json:"userName"`
	DisplayNameSCIM string    `json:"displayName"`
	Active          bool      `json:"active"`
	Emails          []Email   `json:"emails"`
	Name            *wireName `json:"name"`
}

// UnmarshalJSON decodes either casing.
func (u *User) UnmarshalJSON(data []byte) error {
	var w wireUser
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*u = User{
		ID:          w.ID,
		UserName:    firstNonEmpty(w.UserName, w.UserNameSCIM),
		DisplayName: firstNonEmpty(w.DisplayName, w.DisplayNameSCIM),
		Active:      w.Active,
		Emails:      w.Emails,
	}
	if w.Name != nil {
		u.Name = &Name{
			GivenName:  firstNonEmpty(w.Name.GivenName, w.Name.GivenNameSCIM),
			FamilyName: firstNonEmpty(w.Name.FamilyName, w.Name.FamilyNameSCIM),
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
