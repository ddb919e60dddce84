package identity

// tokenResponse is the OpenID Connect token endpoint reply.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// userRepresentation is the subset of the Keycloak user representation the
// importer reads and writes.
type userRepresentation struct {
	ID            string  `json:"id,omitempty"`
	Username      string  `json:"username"`
	Email         *string `json:"email,omitempty"`
	FirstName     string  `json:"firstName,omitempty"`
	LastName      string  `json:"lastName,omitempty"`
	Enabled       bool    `json:"enabled"`
	EmailVerified bool    `json:"emailVerified"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type roleRepresentation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
