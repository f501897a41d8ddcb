package domain

// Credential is one GPM profile's account record loaded from the
// credentials workbook. Immutable after load.
type Credential struct {
	ProfileID   string
	ProfileName string
	Email       string
	Password    string
}

// Key returns the identity used for result upserts: the human-facing
// profile name when present, otherwise the GPM profile id.
func (c Credential) Key() string {
	if c.ProfileName != "" {
		return c.ProfileName
	}
	return c.ProfileID
}
