package repository

import "hpc-gateway/core/models"

// CredentialRepository reads login credentials from the relational
// credential store. Tokens are handed out by the credential-store
// service; the engine only ever resolves them to key material.
type CredentialRepository struct {
	db *DB
}

// NewCredentialRepository creates a new credential repository
func NewCredentialRepository(db *DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// GetCredential resolves a (gateway, token) pair to stored key material
func (r *CredentialRepository) GetCredential(gatewayID, tokenID string) (*models.Credential, error) {
	query := `
		SELECT token_id, gateway_id, login_user_name, private_key, public_key, passphrase
		FROM credentials
		WHERE gateway_id = $1 AND token_id = $2
	`
	var cred models.Credential
	err := r.db.QueryRow(query, gatewayID, tokenID).Scan(
		&cred.TokenID,
		&cred.GatewayID,
		&cred.LoginUserName,
		&cred.PrivateKey,
		&cred.PublicKey,
		&cred.Passphrase,
	)
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
