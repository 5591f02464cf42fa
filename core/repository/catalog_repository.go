package repository

import (
	"encoding/json"

	"hpc-gateway/core/models"
)

// CatalogRepository reads the application-catalog descriptors the
// engine consumes: compute resources, gateway profiles, deployments,
// interfaces and job-submission records. The catalog is owned by the
// registry services; descriptors are stored as JSON documents keyed
// by kind and ID, so catalog schema changes never ripple into the
// engine.
type CatalogRepository struct {
	db *DB
}

// Document kinds in the app_catalog table.
const (
	kindComputeResource       = "COMPUTE_RESOURCE"
	kindGatewayProfile        = "GATEWAY_RESOURCE_PROFILE"
	kindAppDeployment         = "APPLICATION_DEPLOYMENT"
	kindAppInterface          = "APPLICATION_INTERFACE"
	kindSSHJobSubmission      = "SSH_JOB_SUBMISSION"
	kindLocalJobSubmission    = "LOCAL_JOB_SUBMISSION"
	kindUnicoreJobSubmission  = "UNICORE_JOB_SUBMISSION"
	kindCloudJobSubmission    = "CLOUD_JOB_SUBMISSION"
)

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(db *DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) getDocument(kind, id string, out interface{}) error {
	var doc []byte
	err := r.db.QueryRow(`SELECT doc FROM app_catalog WHERE kind = $1 AND id = $2`, kind, id).Scan(&doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(doc, out)
}

// PutDocument stores or replaces a catalog descriptor
func (r *CatalogRepository) PutDocument(kind, id string, in interface{}) error {
	doc, err := json.Marshal(in)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO app_catalog (kind, id, doc) VALUES ($1, $2, $3)
		ON CONFLICT (kind, id) DO UPDATE SET doc = EXCLUDED.doc
	`
	_, err = r.db.Exec(query, kind, id, doc)
	return err
}

// GetComputeResource retrieves a compute resource description
func (r *CatalogRepository) GetComputeResource(id string) (*models.ComputeResourceDescription, error) {
	var cr models.ComputeResourceDescription
	if err := r.getDocument(kindComputeResource, id, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

// GetGatewayResourceProfile retrieves a gateway's resource profile
func (r *CatalogRepository) GetGatewayResourceProfile(gatewayID string) (*models.GatewayResourceProfile, error) {
	var profile models.GatewayResourceProfile
	if err := r.getDocument(kindGatewayProfile, gatewayID, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetApplicationDeployment retrieves an application deployment description
func (r *CatalogRepository) GetApplicationDeployment(id string) (*models.ApplicationDeploymentDescription, error) {
	var dep models.ApplicationDeploymentDescription
	if err := r.getDocument(kindAppDeployment, id, &dep); err != nil {
		return nil, err
	}
	return &dep, nil
}

// GetApplicationInterface retrieves an application interface description
func (r *CatalogRepository) GetApplicationInterface(id string) (*models.ApplicationInterfaceDescription, error) {
	var iface models.ApplicationInterfaceDescription
	if err := r.getDocument(kindAppInterface, id, &iface); err != nil {
		return nil, err
	}
	return &iface, nil
}

// GetSSHJobSubmission retrieves an SSH submission record by interface ID
func (r *CatalogRepository) GetSSHJobSubmission(interfaceID string) (*models.SSHJobSubmission, error) {
	var sub models.SSHJobSubmission
	if err := r.getDocument(kindSSHJobSubmission, interfaceID, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetLocalJobSubmission retrieves a LOCAL submission record by interface ID
func (r *CatalogRepository) GetLocalJobSubmission(interfaceID string) (*models.LocalSubmission, error) {
	var sub models.LocalSubmission
	if err := r.getDocument(kindLocalJobSubmission, interfaceID, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetUnicoreJobSubmission retrieves a UNICORE submission record by interface ID
func (r *CatalogRepository) GetUnicoreJobSubmission(interfaceID string) (*models.UnicoreJobSubmission, error) {
	var sub models.UnicoreJobSubmission
	if err := r.getDocument(kindUnicoreJobSubmission, interfaceID, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetCloudJobSubmission retrieves a CLOUD submission record by interface ID
func (r *CatalogRepository) GetCloudJobSubmission(interfaceID string) (*models.CloudJobSubmission, error) {
	var sub models.CloudJobSubmission
	if err := r.getDocument(kindCloudJobSubmission, interfaceID, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}
