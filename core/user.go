package core

type (
	// Profile is what an identity provider returns for a signed-in person.
	Profile struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Email  string `json:"email"`
		Avatar string `json:"avatar"`
	}

	// User is a Profile bound to a session token.
	User struct {
		Profile
		Token string `json:"token,omitempty"`
	}
)
