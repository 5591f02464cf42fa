package descriptor

import (
	"fmt"
	"math"
	"math/rand"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"hpc-gateway/core/engine"
	"hpc-gateway/core/models"
)

// jobNameOffset keeps generated job names well away from small
// integers so they do not collide with operator-assigned names.
const jobNameOffset = 99999999

// CreateJobDescriptor translates the resolved process/task models plus
// compute-resource preference into a resource-manager-agnostic job
// specification. Deterministic for identical inputs except for the
// random job name.
func CreateJobDescriptor(pctx *engine.ProcessContext, tctx *engine.TaskContext) (*JobDescriptor, error) {
	proc := pctx.Process
	d := &JobDescriptor{
		InputDirectory:    pctx.InputDir,
		OutputDirectory:   pctx.OutputDir,
		ExecutablePath:    pctx.AppDeployment.ExecutablePath,
		StandardOutFile:   pctx.StdoutLocation,
		StandardErrorFile: pctx.StderrLocation,
		WorkingDirectory:  pctx.WorkingDir,
		ShellName:         "/bin/bash",
		AllEnvExport:      true,
	}

	if addr := mailAddresses(pctx); addr != "" {
		d.MailAddress = addr
	}

	if pctx.Preference != nil {
		if acct := pctx.Preference.AllocationProjectNumber; acct != "" {
			d.AccountString = acct
		}
		// A reservation outside its [start,end) window is dropped,
		// not an error.
		if res := activeReservation(pctx.Preference, time.Now()); res != "" {
			d.Reservation = res
		}
	}

	// Schedulers on some resources reject job names starting with a
	// digit, so every generated name begins with a letter.
	d.JobName = "A" + strconv.Itoa(generateJobName())

	d.InputValues = commandLineValues(proc.Inputs, proc.Outputs)
	if pctx.Preference != nil {
		d.UserName = pctx.Preference.LoginUserName
	}

	scheduling := proc.ResourceSchedule
	if scheduling.QueueName != "" {
		d.QueueName = scheduling.QueueName
	}
	if scheduling.NodeCount > 0 {
		d.Nodes = scheduling.NodeCount
	}
	if scheduling.TotalCPUCount > 0 && scheduling.NodeCount > 0 {
		d.ProcessesPerNode = scheduling.TotalCPUCount / scheduling.NodeCount
		d.CPUCount = scheduling.TotalCPUCount
	}

	wallTime := scheduling.WallTimeLimit
	if sub := tctx.Task.SubTask.JobSubmission; sub != nil && sub.WallTimeLimit > 0 {
		wallTime = sub.WallTimeLimit
	}
	if wallTime > 0 {
		if pctx.ResourceJobManager != nil && pctx.ResourceJobManager.Type == models.ResourceJobManagerLSF {
			d.MaxWallTime = MaxWallTimeCalculatorForLSF(wallTime)
		} else {
			d.MaxWallTime = MaxWallTimeCalculator(wallTime)
		}
	}
	if scheduling.TotalPhysicalMemory > 0 {
		d.UsedMemory = strconv.Itoa(scheduling.TotalPhysicalMemory)
	}

	if pctx.Preference != nil {
		if qos := QoSForQueue(pctx.Preference.QualityOfService, scheduling.QueueName); qos != "" {
			d.QoS = qos
		}
	}

	d.ModuleLoadCommands = orderedCommands(pctx.AppDeployment.ModuleLoadCmds, nil)
	sub := commandSubstituter(pctx)
	d.PreJobCommands = orderedCommands(pctx.AppDeployment.PreJobCommands, sub)
	d.PostJobCommands = orderedCommands(pctx.AppDeployment.PostJobCommands, sub)

	if par := pctx.AppDeployment.Parallelism; par != "" && par != models.ParallelismSerial {
		prefix := ""
		if pctx.ResourceJobManager != nil {
			prefix = pctx.ResourceJobManager.ParallelismPrefixes[par]
		}
		if prefix == "" {
			return nil, &engine.ConfigurationError{
				Msg: fmt.Sprintf("no parallelism prefix configured for %s on %s", par, pctx.ComputeResource.HostName),
			}
		}
		d.JobSubmitter = prefix
	}

	return d, nil
}

// mailAddresses merges monitor, gateway-configured and user-requested
// notification addresses. Duplicates are kept as given.
func mailAddresses(pctx *engine.ProcessContext) string {
	var emails []string
	if pctx.MonitorEmailAddress != "" {
		emails = append(emails, pctx.MonitorEmailAddress)
	}
	emails = append(emails, pctx.NotificationEmails...)
	if pctx.Process.EnableEmailNotification {
		emails = append(emails, pctx.Process.EmailAddresses...)
	}
	return strings.Join(emails, ",")
}

// activeReservation returns the preference's reservation string only
// when now falls inside [start, end).
func activeReservation(pref *models.ComputeResourcePreference, now time.Time) string {
	if pref.ReservationName == "" {
		return ""
	}
	start, end := pref.ReservationStartTime, pref.ReservationEndTime
	if start.IsZero() || end.IsZero() || !start.Before(end) {
		return ""
	}
	if now.Before(start) || !now.Before(end) {
		return ""
	}
	return pref.ReservationName
}

func generateJobName() int {
	n := rand.Intn(math.MaxInt32) + jobNameOffset
	if n < 0 {
		n = -n
	}
	return n
}

// commandLineValues assembles the ordered command-line value list:
// inputs sorted by InputOrder first, then outputs, keeping only
// entries flagged for the command line. URI values are reduced to
// their basename; URI collections are space-joined basenames.
func commandLineValues(inputs []models.InputDataObject, outputs []models.OutputDataObject) []string {
	sorted := make([]models.InputDataObject, len(inputs))
	copy(sorted, inputs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InputOrder < sorted[j].InputOrder
	})

	var values []string
	for _, in := range sorted {
		if !in.RequiredToCommandLine {
			continue
		}
		if in.ApplicationArgument != "" {
			values = append(values, in.ApplicationArgument)
		}
		if in.Value == "" {
			continue
		}
		switch in.Type {
		case models.DataTypeURI:
			values = append(values, path.Base(in.Value))
		case models.DataTypeURICollection:
			parts := strings.Fields(in.Value)
			for i, p := range parts {
				parts[i] = path.Base(p)
			}
			values = append(values, strings.Join(parts, " "))
		default:
			values = append(values, in.Value)
		}
	}

	for _, out := range outputs {
		if out.ApplicationArgument != "" {
			values = append(values, out.ApplicationArgument)
		}
		if out.Value != "" && out.RequiredToCommandLine && out.Type == models.DataTypeURI {
			values = append(values, path.Base(out.Value))
		}
	}
	return values
}

func orderedCommands(cmds []models.CommandObject, sub *strings.Replacer) []string {
	sorted := make([]models.CommandObject, len(cmds))
	copy(sorted, cmds)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CommandOrder < sorted[j].CommandOrder
	})
	var out []string
	for _, c := range sorted {
		cmd := c.Command
		if sub != nil {
			cmd = sub.Replace(cmd)
		}
		out = append(out, cmd)
	}
	return out
}

func commandSubstituter(pctx *engine.ProcessContext) *strings.Replacer {
	return strings.NewReplacer(
		"$workingDir", pctx.WorkingDir,
		"$inputDir", pctx.InputDir,
		"$outputDir", pctx.OutputDir,
	)
}

// MaxWallTimeCalculator renders minutes as a batch-queue wall-time
// string, HH:MM:SS style.
func MaxWallTimeCalculator(maxWallTime int) string {
	if maxWallTime < 60 {
		return fmt.Sprintf("00:%02d:00", maxWallTime)
	}
	return fmt.Sprintf("%d:%02d:00", maxWallTime/60, maxWallTime%60)
}

// MaxWallTimeCalculatorForLSF renders minutes in the H:MM form LSF
// expects instead of HH:MM:SS.
func MaxWallTimeCalculatorForLSF(maxWallTime int) string {
	if maxWallTime < 60 {
		return fmt.Sprintf("00:%02d", maxWallTime)
	}
	return fmt.Sprintf("%d:%02d", maxWallTime/60, maxWallTime%60)
}

// QoSForQueue extracts the quality-of-service value for a queue from
// the gateway's "queueName=value,..." string. Empty when no entry
// matches.
func QoSForQueue(qualityOfService, queueName string) string {
	if qualityOfService == "" || queueName == "" {
		return ""
	}
	re, err := regexp.Compile(regexp.QuoteMeta(queueName) + "=([^,]*)")
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(qualityOfService)
	if m == nil {
		return ""
	}
	return m[1]
}
