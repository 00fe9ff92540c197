// idcprov/types/user.go
package types

// ExpectedHeader is the only header line the provisioner accepts.
const ExpectedHeader = "email,username,display_name,given_name,family_name"

// CSVColumns lists the required columns in header order.
var CSVColumns = []string{"email", "username", "display_name", "given_name", "family_name"}

const (
	MaxUsernameLength = 128
	PrincipalTypeUser = "USER"
)

// ReservedUsernames are rejected by IAM Identity Center.
var ReservedUsernames = []string{"Administrator", "AWSAdministrators"}

// UserRecord is one candidate identity read from a data row.
type UserRecord struct {
	Line        int    `json:"line" yaml:"line"`
	Email       string `json:"email" yaml:"email"`
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"display_name" yaml:"display_name"`
	GivenName   string `json:"given_name" yaml:"given_name"`
	FamilyName  string `json:"family_name" yaml:"family_name"`
}

// Fields returns the record values keyed by column name.
func (u UserRecord) Fields() map[string]string {
	return map[string]string{
		"email":        u.Email,
		"username":     u.Username,
		"display_name": u.DisplayName,
		"given_name":   u.GivenName,
		"family_name":  u.FamilyName,
	}
}

// MissingFields reports the required columns that are empty, in header order.
func (u UserRecord) MissingFields() []string {
	fields := u.Fields()
	var missing []string
	for _, col := range CSVColumns {
		if fields[col] == "" {
			missing = append(missing, col)
		}
	}
	return missing
}
