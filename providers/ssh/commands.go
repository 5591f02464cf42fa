package ssh

import (
	"regexp"
	"strings"

	"hpc-gateway/core/models"
)

// defaultCommands are the stock binaries per resource manager, used
// when the catalog record carries no explicit command template.
var defaultCommands = map[models.ResourceJobManagerType]map[models.JobManagerCommand]string{
	models.ResourceJobManagerPBS: {
		models.JobManagerCommandSubmission: "qsub",
		models.JobManagerCommandMonitoring: "qstat",
		models.JobManagerCommandDeletion:   "qdel",
		models.JobManagerCommandShowQueue:  "qstat -q",
	},
	models.ResourceJobManagerSlurm: {
		models.JobManagerCommandSubmission: "sbatch",
		models.JobManagerCommandMonitoring: "squeue -h -o %T -j",
		models.JobManagerCommandDeletion:   "scancel",
		models.JobManagerCommandShowQueue:  "squeue",
	},
	models.ResourceJobManagerLSF: {
		models.JobManagerCommandSubmission: "bsub <",
		models.JobManagerCommandMonitoring: "bjobs",
		models.JobManagerCommandDeletion:   "bkill",
		models.JobManagerCommandShowQueue:  "bqueues",
	},
	models.ResourceJobManagerUGE: {
		models.JobManagerCommandSubmission: "qsub",
		models.JobManagerCommandMonitoring: "qstat -j",
		models.JobManagerCommandDeletion:   "qdel",
		models.JobManagerCommandShowQueue:  "qstat -g c",
	},
}

// jobManagerCommand resolves the command for a slot: the catalog's
// template wins, then the stock binary, prefixed with the manager's
// bin path when one is set.
func jobManagerCommand(rjm *models.ResourceJobManager, slot models.JobManagerCommand) string {
	managerType := models.ResourceJobManagerPBS
	var binPath string
	if rjm != nil {
		managerType = rjm.Type
		binPath = strings.TrimRight(rjm.JobManagerBinPath, "/")
		if cmd, ok := rjm.JobManagerCommands[slot]; ok && cmd != "" {
			if binPath != "" && !strings.HasPrefix(cmd, "/") {
				return binPath + "/" + cmd
			}
			return cmd
		}
	}
	cmd := defaultCommands[managerType][slot]
	if binPath != "" {
		return binPath + "/" + cmd
	}
	return cmd
}

var (
	slurmJobIDPattern = regexp.MustCompile(`Submitted batch job (\d+)`)
	lsfJobIDPattern   = regexp.MustCompile(`Job <(\d+)>`)
	ugeJobIDPattern   = regexp.MustCompile(`Your job (\d+)`)
)

// parseJobID extracts the job id from the submission command output
func parseJobID(managerType models.ResourceJobManagerType, output string) string {
	switch managerType {
	case models.ResourceJobManagerSlurm:
		if m := slurmJobIDPattern.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	case models.ResourceJobManagerLSF:
		if m := lsfJobIDPattern.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	case models.ResourceJobManagerUGE:
		if m := ugeJobIDPattern.FindStringSubmatch(output); m != nil {
			return m[1]
		}
	}
	// PBS prints the bare job id on the first line.
	if i := strings.IndexByte(output, '\n'); i >= 0 {
		output = output[:i]
	}
	return strings.TrimSpace(output)
}

// parseJobState maps the monitoring command output to a job state.
// Unknown tokens read as ACTIVE so the monitor keeps polling rather
// than finalizing a job it cannot classify.
func parseJobState(managerType models.ResourceJobManagerType, output string) models.JobState {
	output = strings.ToUpper(output)
	switch managerType {
	case models.ResourceJobManagerSlurm:
		switch {
		case strings.Contains(output, "PENDING"):
			return models.JobStateQueued
		case strings.Contains(output, "RUNNING"), strings.Contains(output, "COMPLETING"):
			return models.JobStateActive
		case strings.Contains(output, "COMPLETED"):
			return models.JobStateComplete
		case strings.Contains(output, "FAILED"), strings.Contains(output, "TIMEOUT"), strings.Contains(output, "NODE_FAIL"):
			return models.JobStateFailed
		case strings.Contains(output, "CANCELLED"):
			return models.JobStateCanceled
		}
	case models.ResourceJobManagerLSF:
		switch {
		case strings.Contains(output, "PEND"):
			return models.JobStateQueued
		case strings.Contains(output, "RUN"):
			return models.JobStateActive
		case strings.Contains(output, "DONE"):
			return models.JobStateComplete
		case strings.Contains(output, "EXIT"):
			return models.JobStateFailed
		}
	default: // PBS and UGE single-letter states
		for _, token := range strings.Fields(output) {
			switch token {
			case "Q", "H", "W", "QW", "HQW":
				return models.JobStateQueued
			case "R", "E", "T", "RUNNING":
				return models.JobStateActive
			case "C", "F":
				return models.JobStateComplete
			}
		}
	}
	return models.JobStateActive
}
