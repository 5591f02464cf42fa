package scheduler

import (
	"log"
	"sort"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

// PreferredJobSubmissionProtocol resolves the submission protocol for
// the process: the gateway's explicit preference when one exists,
// otherwise the protocol of the first submission interface ordered by
// priority.
func PreferredJobSubmissionProtocol(pctx *engine.ProcessContext) (models.JobSubmissionProtocol, error) {
	if pctx.Preference != nil && pctx.Preference.PreferredJobSubmissionProtocol != "" {
		return pctx.Preference.PreferredJobSubmissionProtocol, nil
	}
	interfaces := pctx.ComputeResource.JobSubmissionInterfaces
	if len(interfaces) == 0 {
		return "", &engine.ConfigurationError{
			Msg: "compute resource " + pctx.ComputeResource.HostName + " has no job submission interfaces",
		}
	}
	sorted := make([]models.JobSubmissionInterface, len(interfaces))
	copy(sorted, interfaces)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PriorityOrder < sorted[j].PriorityOrder
	})
	return sorted[0].Protocol, nil
}

// PreferredJobSubmissionInterface selects the concrete submission
// interface for the protocol: matching interfaces sorted ascending by
// priority order, first wins.
func PreferredJobSubmissionInterface(pctx *engine.ProcessContext, protocol models.JobSubmissionProtocol) (*models.JobSubmissionInterface, error) {
	var matches []models.JobSubmissionInterface
	for _, iface := range pctx.ComputeResource.JobSubmissionInterfaces {
		if iface.Protocol == protocol {
			matches = append(matches, iface)
		}
	}
	if len(matches) == 0 {
		return nil, &engine.ConfigurationError{
			Msg: "no " + string(protocol) + " submission interface on compute resource " + pctx.ComputeResource.HostName,
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].PriorityOrder < matches[j].PriorityOrder
	})
	return &matches[0], nil
}

// ResourceJobManager fetches the job-submission record for the
// selected interface and extracts its resource-job-manager
// descriptor. Returns nil when none is found; callers treat nil as
// "unknown job manager" rather than an error, so a catalog failure
// here is logged and swallowed.
func ResourceJobManager(pctx *engine.ProcessContext) *models.ResourceJobManager {
	if pctx.SubmissionInterface == nil {
		return nil
	}
	interfaceID := pctx.SubmissionInterface.JobSubmissionInterfaceID
	switch pctx.SubmissionProtocol {
	case models.SubmissionProtocolSSH, models.SubmissionProtocolSSHFork:
		sub, err := pctx.Catalog.GetSSHJobSubmission(interfaceID)
		if err != nil {
			log.Printf("Failed to retrieve SSH job submission %s: %v", interfaceID, err)
			return nil
		}
		return sub.ResourceJobManager
	case models.SubmissionProtocolLocal:
		sub, err := pctx.Catalog.GetLocalJobSubmission(interfaceID)
		if err != nil {
			log.Printf("Failed to retrieve local job submission %s: %v", interfaceID, err)
			return nil
		}
		return sub.ResourceJobManager
	}
	return nil
}
