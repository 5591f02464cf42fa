package descriptor

import "encoding/xml"

// JobDescriptor is the transient, resource-manager-agnostic job
// specification built per submission attempt. It is never persisted;
// only the rendered script artifact and the resulting job record are.
// The XML form is what the script-templating collaborator consumes.
type JobDescriptor struct {
	XMLName xml.Name `xml:"JobDescriptor"`

	JobName           string `xml:"jobName,omitempty"`
	WorkingDirectory  string `xml:"workingDirectory,omitempty"`
	InputDirectory    string `xml:"inputDirectory,omitempty"`
	OutputDirectory   string `xml:"outputDirectory,omitempty"`
	ExecutablePath    string `xml:"executablePath,omitempty"`
	StandardOutFile   string `xml:"standardOutFile,omitempty"`
	StandardErrorFile string `xml:"standardErrorFile,omitempty"`
	QueueName         string `xml:"queueName,omitempty"`

	Nodes            int    `xml:"nodes,omitempty"`
	ProcessesPerNode int    `xml:"processesPerNode,omitempty"`
	CPUCount         int    `xml:"cpuCount,omitempty"`
	MaxWallTime      string `xml:"maxWallTime,omitempty"`
	UsedMemory       string `xml:"usedMem,omitempty"`

	MailAddress   string `xml:"mailAddress,omitempty"`
	AccountString string `xml:"acountString,omitempty"`
	Reservation   string `xml:"reservation,omitempty"`
	QoS           string `xml:"qualityOfService,omitempty"`

	ShellName    string `xml:"shellName,omitempty"`
	AllEnvExport bool   `xml:"exportAllEnv"`
	UserName     string `xml:"userName,omitempty"`

	InputValues        []string `xml:"inputs>input,omitempty"`
	ModuleLoadCommands []string `xml:"moduleLoadCommands>command,omitempty"`
	PreJobCommands     []string `xml:"preJobCommands>command,omitempty"`
	PostJobCommands    []string `xml:"postJobCommands>command,omitempty"`

	// JobSubmitter is the parallelism launch prefix (mpirun etc.)
	// placed before the executable for non-serial applications.
	JobSubmitter string `xml:"jobSubmitterCommand,omitempty"`
}

// ToXML renders the descriptor for the script-templating collaborator
func (d *JobDescriptor) ToXML() (string, error) {
	out, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out), nil
}
