package descriptor

import (
	"fmt"
	"strings"

	"hpc-gateway/core/models"
)

// RenderScript renders the submission script for the target resource
// job manager. Directive syntax differs per manager; the body (module
// loads, pre-job commands, launch line, post-job commands) is shared.
func RenderScript(d *JobDescriptor, managerType models.ResourceJobManagerType) string {
	var b strings.Builder
	shell := d.ShellName
	if shell == "" {
		shell = "/bin/bash"
	}
	b.WriteString("#!" + shell + "\n")

	switch managerType {
	case models.ResourceJobManagerSlurm:
		writeSlurmDirectives(&b, d)
	case models.ResourceJobManagerLSF:
		writeLSFDirectives(&b, d)
	case models.ResourceJobManagerUGE:
		writeUGEDirectives(&b, d)
	case models.ResourceJobManagerPBS:
		writePBSDirectives(&b, d)
	case models.ResourceJobManagerFork:
		// No batch system, plain shell.
	default:
		writePBSDirectives(&b, d)
	}
	b.WriteString("\n")

	for _, cmd := range d.ModuleLoadCommands {
		b.WriteString(cmd + "\n")
	}
	if d.WorkingDirectory != "" {
		b.WriteString("cd " + d.WorkingDirectory + "\n")
	}
	for _, cmd := range d.PreJobCommands {
		b.WriteString(cmd + "\n")
	}

	launch := d.ExecutablePath
	if d.JobSubmitter != "" {
		launch = d.JobSubmitter + " " + launch
	}
	if len(d.InputValues) > 0 {
		launch += " " + strings.Join(d.InputValues, " ")
	}
	if managerType == models.ResourceJobManagerFork {
		// Batch managers redirect through directives; a fork target
		// redirects inline.
		if d.StandardOutFile != "" {
			launch += " 1>" + d.StandardOutFile
		}
		if d.StandardErrorFile != "" {
			launch += " 2>" + d.StandardErrorFile
		}
	}
	b.WriteString(launch + "\n")

	for _, cmd := range d.PostJobCommands {
		b.WriteString(cmd + "\n")
	}
	return b.String()
}

func writePBSDirectives(b *strings.Builder, d *JobDescriptor) {
	directive := func(format string, args ...interface{}) {
		b.WriteString("#PBS " + fmt.Sprintf(format, args...) + "\n")
	}
	if d.JobName != "" {
		directive("-N %s", d.JobName)
	}
	if d.QueueName != "" {
		directive("-q %s", d.QueueName)
	}
	if d.AccountString != "" {
		directive("-A %s", d.AccountString)
	}
	if d.MaxWallTime != "" {
		directive("-l walltime=%s", d.MaxWallTime)
	}
	if d.Nodes > 0 && d.ProcessesPerNode > 0 {
		directive("-l nodes=%d:ppn=%d", d.Nodes, d.ProcessesPerNode)
	}
	if d.UsedMemory != "" {
		directive("-l mem=%smb", d.UsedMemory)
	}
	if d.StandardOutFile != "" {
		directive("-o %s", d.StandardOutFile)
	}
	if d.StandardErrorFile != "" {
		directive("-e %s", d.StandardErrorFile)
	}
	if d.MailAddress != "" {
		directive("-M %s", d.MailAddress)
		directive("-m bea")
	}
	if d.Reservation != "" {
		directive("-l advres=%s", d.Reservation)
	}
	if d.QoS != "" {
		directive("-l qos=%s", d.QoS)
	}
	if d.AllEnvExport {
		directive("-V")
	}
}

func writeSlurmDirectives(b *strings.Builder, d *JobDescriptor) {
	directive := func(format string, args ...interface{}) {
		b.WriteString("#SBATCH " + fmt.Sprintf(format, args...) + "\n")
	}
	if d.JobName != "" {
		directive("-J %s", d.JobName)
	}
	if d.QueueName != "" {
		directive("-p %s", d.QueueName)
	}
	if d.AccountString != "" {
		directive("-A %s", d.AccountString)
	}
	if d.MaxWallTime != "" {
		directive("-t %s", d.MaxWallTime)
	}
	if d.Nodes > 0 {
		directive("-N %d", d.Nodes)
	}
	if d.CPUCount > 0 {
		directive("-n %d", d.CPUCount)
	}
	if d.UsedMemory != "" {
		directive("--mem=%sM", d.UsedMemory)
	}
	if d.StandardOutFile != "" {
		directive("-o %s", d.StandardOutFile)
	}
	if d.StandardErrorFile != "" {
		directive("-e %s", d.StandardErrorFile)
	}
	if d.MailAddress != "" {
		directive("--mail-user=%s", d.MailAddress)
		directive("--mail-type=ALL")
	}
	if d.Reservation != "" {
		directive("--reservation=%s", d.Reservation)
	}
	if d.QoS != "" {
		directive("--qos=%s", d.QoS)
	}
	if d.AllEnvExport {
		directive("--export=ALL")
	}
}

func writeLSFDirectives(b *strings.Builder, d *JobDescriptor) {
	directive := func(format string, args ...interface{}) {
		b.WriteString("#BSUB " + fmt.Sprintf(format, args...) + "\n")
	}
	if d.JobName != "" {
		directive("-J %s", d.JobName)
	}
	if d.QueueName != "" {
		directive("-q %s", d.QueueName)
	}
	if d.AccountString != "" {
		directive("-P %s", d.AccountString)
	}
	if d.MaxWallTime != "" {
		directive("-W %s", d.MaxWallTime)
	}
	if d.CPUCount > 0 {
		directive("-n %d", d.CPUCount)
	}
	if d.Nodes > 0 && d.ProcessesPerNode > 0 {
		directive("-R \"span[ptile=%d]\"", d.ProcessesPerNode)
	}
	if d.UsedMemory != "" {
		directive("-M %s", d.UsedMemory)
	}
	if d.StandardOutFile != "" {
		directive("-o %s", d.StandardOutFile)
	}
	if d.StandardErrorFile != "" {
		directive("-e %s", d.StandardErrorFile)
	}
	if d.MailAddress != "" {
		directive("-u %s", d.MailAddress)
		directive("-B -N")
	}
}

func writeUGEDirectives(b *strings.Builder, d *JobDescriptor) {
	directive := func(format string, args ...interface{}) {
		b.WriteString("#$ " + fmt.Sprintf(format, args...) + "\n")
	}
	if d.JobName != "" {
		directive("-N %s", d.JobName)
	}
	if d.QueueName != "" {
		directive("-q %s", d.QueueName)
	}
	if d.AccountString != "" {
		directive("-A %s", d.AccountString)
	}
	if d.MaxWallTime != "" {
		directive("-l h_rt=%s", d.MaxWallTime)
	}
	if d.StandardOutFile != "" {
		directive("-o %s", d.StandardOutFile)
	}
	if d.StandardErrorFile != "" {
		directive("-e %s", d.StandardErrorFile)
	}
	if d.MailAddress != "" {
		directive("-M %s", d.MailAddress)
		directive("-m bea")
	}
	if d.AllEnvExport {
		directive("-V")
	}
}
