package models

// Credential is stored key material resolved from a credential-store
// token. The private key is only ever held in memory by providers.
type Credential struct {
	TokenID       string
	GatewayID     string
	LoginUserName string
	PrivateKey    []byte
	PublicKey     []byte
	Passphrase    string
}
