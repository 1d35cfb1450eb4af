package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the structure of the JSON Web Token (JWT) claims for the chat relay.
// It includes standard claims required by the JWT specification and the identity
// claims the WebSocket admission check reads.
type Payload struct {
	// StandardClaims embeds the necessary JWT standard fields such as Exp (Expiration),
	// Iat (Issued At), and Iss (Issuer). These are crucial for token validity checks.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the stable unique identifier for the participant (a guest ID or a
	// registered user ID, depending on the issuing collaborator).
	ID string `json:"id"`

	// Nickname is the participant's display name, echoed back in the
	// connection acknowledgment.
	Nickname string `json:"nickname"`
}
